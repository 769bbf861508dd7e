package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/whatsmanager/campaign-gateway/pkg/logger"
)

const whatsappPrefix = "whatsapp:"

type Config struct {
	BaseURL            string
	AccountSID         string
	AuthToken          string
	From               string
	MessagesPerSecond  float64
	DefaultCountryCode string
	DefaultPhoneLength int
	Timeout            time.Duration
	MaxConns           int
}

// SendResult is the per-message outcome of one provider call. Success=false
// with a non-empty ErrorCode means the provider rejected the message;
// Success=false with an empty code is a transport or configuration failure.
type SendResult struct {
	Success    bool
	SID        string
	Status     string
	To         string
	MediaCount int
	ErrorCode  string
	Error      string
}

// Client talks to the WhatsApp messaging provider. Every network call goes
// through the rate limiter first.
type Client struct {
	cfg     Config
	http    *fasthttp.Client
	limiter *RateLimiter
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 64
	}

	c := &Client{
		cfg:     cfg,
		limiter: NewRateLimiter(cfg.MessagesPerSecond),
		http: &fasthttp.Client{
			MaxConnsPerHost:     cfg.MaxConns,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}

	if c.IsConfigured() {
		logger.Info("provider client initialized", "base_url", cfg.BaseURL, "from", cfg.From)
	} else {
		logger.Warn("provider client missing credentials, sends will fail fast")
	}

	return c
}

// IsConfigured reports whether credentials are present. Without them every
// send short-circuits to a structured failure, never a network call.
func (c *Client) IsConfigured() bool {
	return c.cfg.BaseURL != "" && c.cfg.AccountSID != "" && c.cfg.AuthToken != ""
}

// RateLimiter exposes the limiter for callers that pace non-send work
// against the same budget.
func (c *Client) RateLimiter() *RateLimiter {
	return c.limiter
}

type sendRequest struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	Body      string   `json:"body"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

type sendResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	To           string `json:"to"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Send delivers one message. The destination is auto-prefixed with the
// whatsapp: addressing scheme, media URLs are filtered to the first 10
// non-empty entries.
func (c *Client) Send(ctx context.Context, to string, body string, mediaURLs []string) SendResult {
	if !c.IsConfigured() {
		return SendResult{Success: false, Error: "provider client is not configured"}
	}

	if !strings.HasPrefix(to, whatsappPrefix) {
		to = whatsappPrefix + to
	}

	var valid []string
	for _, u := range mediaURLs {
		if u == "" {
			continue
		}
		valid = append(valid, u)
		if len(valid) == MaxMediaPerMessage {
			break
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return SendResult{Success: false, Error: fmt.Sprintf("rate limit wait aborted: %v", err)}
	}

	reqBody, err := json.Marshal(sendRequest{
		From:      c.cfg.From,
		To:        to,
		Body:      body,
		MediaURLs: valid,
	})
	if err != nil {
		return SendResult{Success: false, Error: fmt.Sprintf("marshal request: %v", err)}
	}

	status, respBody, err := c.doRequest(ctx, "POST", "/v1/messages", reqBody)
	if err != nil {
		logger.Error("provider send failed", "to", to, "error", err)
		return SendResult{Success: false, Error: err.Error()}
	}

	var resp sendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return SendResult{Success: false, Error: fmt.Sprintf("unmarshal response: %v", err)}
	}

	if status != fasthttp.StatusOK && status != fasthttp.StatusCreated {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("unexpected status code: %d", status)
		}
		logger.Error("provider rejected message", "to", to, "error_code", resp.ErrorCode, "error", msg)
		return SendResult{Success: false, ErrorCode: resp.ErrorCode, Error: msg}
	}

	logger.Info("message accepted by provider", "to", to, "sid", resp.SID, "media_count", len(valid))

	return SendResult{
		Success:    true,
		SID:        resp.SID,
		Status:     resp.Status,
		To:         resp.To,
		MediaCount: len(valid),
	}
}

type statusResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// GetStatus fetches the current delivery status for a provider SID. Any
// failure is treated as "no new information": it returns ok=false and
// never an error.
func (c *Client) GetStatus(ctx context.Context, sid string) (string, bool) {
	if !c.IsConfigured() || sid == "" {
		return "", false
	}

	status, respBody, err := c.doRequest(ctx, "GET", "/v1/messages/"+sid, nil)
	if err != nil || status != fasthttp.StatusOK {
		logger.Warn("provider status fetch failed", "sid", sid, "status", status, "error", err)
		return "", false
	}

	var resp statusResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", false
	}
	if resp.Status == "" {
		return "", false
	}

	return resp.Status, true
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Basic "+basicAuth(c.cfg.AccountSID, c.cfg.AuthToken))

	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.cfg.Timeout)
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return resp.StatusCode(), result, nil
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}
