package main

import (
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Mock WhatsApp provider for local end-to-end runs. It accepts the same
// request shape the gateway's provider client speaks and walks accepted
// messages through queued, sent, delivered and read over time so the
// reconciliation sweep has something to observe.

type SendMessageRequest struct {
	From      string   `json:"from" binding:"required"`
	To        string   `json:"to" binding:"required"`
	Body      string   `json:"body"`
	MediaURLs []string `json:"media_urls"`
}

type SendMessageResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	To           string `json:"to"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type StatusResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type storedMessage struct {
	sid        string
	to         string
	acceptedAt time.Time
	failed     bool
}

// MockProvider simulates the upstream messaging API. deliveryRate is the
// fraction of accepted messages that eventually deliver, statusStep is how
// long each delivery stage takes.
type MockProvider struct {
	mu           sync.Mutex
	messages     map[string]*storedMessage
	deliveryRate float64
	statusStep   time.Duration
	rejectRate   float64
	rng          *rand.Rand
}

func NewMockProvider(deliveryRate, rejectRate float64, statusStep time.Duration) *MockProvider {
	return &MockProvider{
		messages:     make(map[string]*storedMessage),
		deliveryRate: deliveryRate,
		rejectRate:   rejectRate,
		statusStep:   statusStep,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *MockProvider) accept(to string) (*storedMessage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rng.Float64() < p.rejectRate {
		return nil, false
	}
	msg := &storedMessage{
		sid:        "SM" + uuid.New().String()[:16],
		to:         to,
		acceptedAt: time.Now(),
		failed:     p.rng.Float64() >= p.deliveryRate,
	}
	p.messages[msg.sid] = msg
	return msg, true
}

// status derives the current delivery stage from the message age.
func (p *MockProvider) status(sid string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg, ok := p.messages[sid]
	if !ok {
		return "", false
	}

	age := time.Since(msg.acceptedAt)
	switch {
	case age < p.statusStep:
		return "queued", true
	case age < 2*p.statusStep:
		return "sent", true
	case msg.failed:
		return "undelivered", true
	case age < 3*p.statusStep:
		return "delivered", true
	default:
		return "read", true
	}
}

type Handler struct {
	provider *MockProvider
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, SendMessageResponse{
			ErrorCode:    "21201",
			ErrorMessage: "invalid request: " + err.Error(),
		})
		return
	}

	msg, ok := h.provider.accept(req.To)
	if !ok {
		log.Warn().Str("to", req.To).Msg("message rejected")
		c.JSON(http.StatusBadRequest, SendMessageResponse{
			ErrorCode:    "63016",
			ErrorMessage: "message rejected by provider",
		})
		return
	}

	log.Info().
		Str("sid", msg.sid).
		Str("to", req.To).
		Int("media", len(req.MediaURLs)).
		Msg("message accepted")

	c.JSON(http.StatusCreated, SendMessageResponse{
		SID:    msg.sid,
		Status: "queued",
		To:     req.To,
	})
}

func (h *Handler) GetStatus(c *gin.Context) {
	sid := c.Param("sid")
	status, ok := h.provider.status(sid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	c.JSON(http.StatusOK, StatusResponse{SID: sid, Status: status})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"delivery_rate": h.provider.deliveryRate,
		"timestamp":     time.Now(),
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request processed")
	})

	v1 := router.Group("/v1")
	{
		v1.POST("/messages", handler.SendMessage)
		v1.GET("/messages/:sid", handler.GetStatus)
	}
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 0.95)
	rejectRate := getEnvFloat("REJECT_RATE", 0)
	statusStep := getEnvDuration("STATUS_STEP", 10*time.Second)

	log.Info().
		Str("port", port).
		Float64("delivery_rate", deliveryRate).
		Float64("reject_rate", rejectRate).
		Dur("status_step", statusStep).
		Msg("starting mock WhatsApp provider")

	provider := NewMockProvider(deliveryRate, rejectRate, statusStep)
	router := SetupRouter(&Handler{provider: provider})

	if err := router.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
