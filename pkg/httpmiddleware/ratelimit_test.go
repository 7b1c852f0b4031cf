package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := serve(handler, "192.168.1.1:12345", nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:9999", nil).Code)
	}

	w := serve(handler, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "rate_limited", body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_Keys(t *testing.T) {
	t.Run("DifferentIPs", func(t *testing.T) {
		handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())
		assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:1234", nil).Code)
		assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.2:1234", nil).Code)
		assert.Equal(t, http.StatusTooManyRequests, serve(handler, "10.0.0.1:5678", nil).Code)
	})

	t.Run("CustomKeyFunc", func(t *testing.T) {
		handler := RateLimit(RateLimitConfig{
			Max:     1,
			Window:  time.Minute,
			KeyFunc: func(r *http.Request) string { return r.Header.Get("api_key") },
		})(okHandler())
		assert.Equal(t, http.StatusOK, serve(handler, "", map[string]string{"api_key": "key-a"}).Code)
		assert.Equal(t, http.StatusTooManyRequests, serve(handler, "", map[string]string{"api_key": "key-a"}).Code)
		assert.Equal(t, http.StatusOK, serve(handler, "", map[string]string{"api_key": "key-b"}).Code)
	})

	t.Run("XForwardedFor", func(t *testing.T) {
		handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())
		xff := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}
		assert.Equal(t, http.StatusOK, serve(handler, "192.168.1.1:4444", xff).Code)
		assert.Equal(t, http.StatusTooManyRequests, serve(handler, "192.168.1.2:5555", xff).Code)
	})
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	remaining, _, _, ok := rl.allow("a", now)
	require.True(t, ok)
	assert.Equal(t, 1, remaining)

	remaining, reset, _, ok := rl.allow("a", now)
	require.True(t, ok)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, time.Minute, reset)

	_, _, retryAfter, ok := rl.allow("a", now)
	require.False(t, ok)
	assert.Equal(t, 30*time.Second, retryAfter)

	// One token is refilled every Window/Max.
	_, _, _, ok = rl.allow("a", now.Add(31*time.Second))
	assert.True(t, ok)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	rl.allow("idle", now)
	rl.allow("active", now.Add(50*time.Second))

	rl.cleanup(now.Add(time.Minute))
	assert.NotContains(t, rl.visitors, "idle")
	assert.Contains(t, rl.visitors, "active")
}
