package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:            baseURL,
		AccountSID:         "AC_test",
		AuthToken:          "secret",
		From:               "whatsapp:+14155238886",
		MessagesPerSecond:  1000,
		DefaultCountryCode: "+502",
		DefaultPhoneLength: 8,
		Timeout:            2 * time.Second,
	})
}

func TestClient_Send(t *testing.T) {
	t.Run("successful send returns sid", func(t *testing.T) {
		var got sendRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/messages", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(sendResponse{SID: "SM123", Status: "queued", To: got.To})
		}))
		defer srv.Close()

		client := testClient(srv.URL)
		res := client.Send(context.Background(), "+50212345678", "hola", nil)

		require.True(t, res.Success)
		assert.Equal(t, "SM123", res.SID)
		assert.Equal(t, "whatsapp:+50212345678", got.To)
	})

	t.Run("destination already prefixed is untouched", func(t *testing.T) {
		var got sendRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			_ = json.NewEncoder(w).Encode(sendResponse{SID: "SM1", Status: "queued"})
		}))
		defer srv.Close()

		client := testClient(srv.URL)
		client.Send(context.Background(), "whatsapp:+50212345678", "hola", nil)
		assert.Equal(t, "whatsapp:+50212345678", got.To)
	})

	t.Run("media urls truncated to provider cap", func(t *testing.T) {
		var got sendRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			_ = json.NewEncoder(w).Encode(sendResponse{SID: "SM1", Status: "queued"})
		}))
		defer srv.Close()

		urls := make([]string, 0, 13)
		urls = append(urls, "") // empty entries are dropped, not counted
		for i := 0; i < 12; i++ {
			urls = append(urls, "https://files.example.com/f.jpg")
		}

		client := testClient(srv.URL)
		res := client.Send(context.Background(), "+50212345678", "hola", urls)

		require.True(t, res.Success)
		assert.Len(t, got.MediaURLs, MaxMediaPerMessage)
		assert.Equal(t, MaxMediaPerMessage, res.MediaCount)
	})

	t.Run("provider error is structured", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(sendResponse{ErrorCode: "63016", ErrorMessage: "template not approved"})
		}))
		defer srv.Close()

		client := testClient(srv.URL)
		res := client.Send(context.Background(), "+50212345678", "hola", nil)

		require.False(t, res.Success)
		assert.Equal(t, "63016", res.ErrorCode)
		assert.Equal(t, "template not approved", res.Error)
	})

	t.Run("unconfigured client short-circuits", func(t *testing.T) {
		client := NewClient(Config{MessagesPerSecond: 1000})
		res := client.Send(context.Background(), "+50212345678", "hola", nil)

		require.False(t, res.Success)
		assert.Empty(t, res.ErrorCode)
		assert.Contains(t, res.Error, "not configured")
	})

	t.Run("network failure is a generic error", func(t *testing.T) {
		client := testClient("http://127.0.0.1:1")
		res := client.Send(context.Background(), "+50212345678", "hola", nil)

		require.False(t, res.Success)
		assert.Empty(t, res.ErrorCode)
		assert.NotEmpty(t, res.Error)
	})
}

func TestClient_GetStatus(t *testing.T) {
	t.Run("returns provider status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/messages/SM9", r.URL.Path)
			_ = json.NewEncoder(w).Encode(statusResponse{SID: "SM9", Status: "delivered"})
		}))
		defer srv.Close()

		client := testClient(srv.URL)
		status, ok := client.GetStatus(context.Background(), "SM9")
		require.True(t, ok)
		assert.Equal(t, "delivered", status)
	})

	t.Run("failure yields no information, not an error", func(t *testing.T) {
		client := testClient("http://127.0.0.1:1")
		status, ok := client.GetStatus(context.Background(), "SM9")
		assert.False(t, ok)
		assert.Empty(t, status)
	})

	t.Run("empty sid is skipped", func(t *testing.T) {
		client := testClient("http://127.0.0.1:1")
		_, ok := client.GetStatus(context.Background(), "")
		assert.False(t, ok)
	})
}

func TestClient_ValidatePhone(t *testing.T) {
	client := testClient("http://example.com")

	t.Run("local number gets country code", func(t *testing.T) {
		res := client.ValidatePhone("1234-5678")
		require.True(t, res.Valid)
		assert.Equal(t, "+50212345678", res.Formatted)
	})

	t.Run("full number keeps its digits", func(t *testing.T) {
		res := client.ValidatePhone("+1 (415) 523-8886")
		require.True(t, res.Valid)
		assert.Equal(t, "+14155238886", res.Formatted)
	})

	t.Run("too short is invalid", func(t *testing.T) {
		res := client.ValidatePhone("12345")
		assert.False(t, res.Valid)
		assert.NotEmpty(t, res.Error)
	})

	t.Run("too long is invalid", func(t *testing.T) {
		res := client.ValidatePhone("12345678901234567890")
		assert.False(t, res.Valid)
	})
}

func TestRateLimiter_Wait(t *testing.T) {
	limiter := NewRateLimiter(50)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Wait(context.Background()))
	}
	elapsed := time.Since(start)

	// 5 calls at 50/s must span at least (5-1)/50 = 80ms
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
}

func TestValidateMediaURL(t *testing.T) {
	cases := []struct {
		name  string
		url   string
		valid bool
	}{
		{"image url", "https://files.example.com/photo.jpg", true},
		{"pdf with query", "https://files.example.com/doc.pdf?token=abc", true},
		{"empty", "", false},
		{"no scheme", "files.example.com/photo.jpg", false},
		{"bad extension", "https://files.example.com/script.exe", false},
		{"no extension", "https://files.example.com/photo", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ValidateMediaURL(tc.url)
			assert.Equal(t, tc.valid, res.Valid)
		})
	}
}
