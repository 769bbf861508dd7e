package xhttp

import (
	"time"

	"github.com/valyala/fasthttp"
	"github.com/whatsmanager/campaign-gateway/pkg/logger"
)

type ServerOption struct {
	Handler            RequestHandler
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ReadBufferSize     int
	WriteBufferSize    int
	MaxRequestBodySize int
	Concurrency        int
	NoDefaultServer    bool
}

var DefaultServerOption = ServerOption{
	Handler: func(ctx *RequestCtx) {
		ctx.Error(StatusText(StatusNotFound), StatusNotFound)
	},
	ReadTimeout:        time.Millisecond * 2500,
	WriteTimeout:       time.Millisecond * 2500,
	IdleTimeout:        time.Second * 10,
	ReadBufferSize:     1024 * 4,
	WriteBufferSize:    1024 * 4,
	MaxRequestBodySize: 4 * 1024 * 1024,
	Concurrency:        30_000,
	NoDefaultServer:    true,
}

type Server struct {
	Server      *fasthttp.Server
	Router      *Router
	middlewares []MiddlewareFunc
}

func NewServer(opt ServerOption) *Server {
	s := &fasthttp.Server{
		Handler:               opt.Handler,
		ReadTimeout:           opt.ReadTimeout,
		WriteTimeout:          opt.WriteTimeout,
		IdleTimeout:           opt.IdleTimeout,
		ReadBufferSize:        opt.ReadBufferSize,
		WriteBufferSize:       opt.WriteBufferSize,
		MaxRequestBodySize:    opt.MaxRequestBodySize,
		Concurrency:           opt.Concurrency,
		NoDefaultServerHeader: opt.NoDefaultServer,
		NoDefaultDate:         true,
		NoDefaultContentType:  true,
		CloseOnShutdown:       true,
		LogAllErrors:          true,
		Logger:                logger.GetLogger(),
	}
	return &Server{Server: s}
}

func (s *Server) Use(m MiddlewareFunc) {
	s.middlewares = append(s.middlewares, m)
}

// ListenAndServe wires router and middleware chain and blocks serving.
func (s *Server) ListenAndServe(addr string) error {
	h := s.Server.Handler
	if s.Router != nil {
		h = s.Router.Handler
	}
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		h = s.middlewares[i](h)
	}
	s.Server.Handler = h

	logger.Info("[xhttp] listening", "addr", addr)
	return s.Server.ListenAndServe(addr)
}

func (s *Server) Shutdown() {
	if err := s.Server.Shutdown(); err != nil {
		logger.Error("[xhttp] shutdown error", "error", err)
	}
}

// CreateServer returns a bare server with its own router, used for
// auxiliary listeners such as the metrics endpoint.
func CreateServer() *Server {
	s := NewServer(DefaultServerOption)
	s.Router = CreateDefaultRouter()
	return s
}

func (s *Server) GET(path string, h RequestHandler) {
	if s.Router == nil {
		s.Router = CreateDefaultRouter()
	}
	s.Router.GET(path, h)
}
