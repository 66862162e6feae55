package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, 1)
	assert.False(t, rl.Enabled())
	for range 100 {
		assert.True(t, rl.Allow("10.0.0.1"))
	}
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(1, 3)
	rl.now = func() time.Time { return now }

	for i := range 3 {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d within burst", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"))

	// Other clients have their own bucket.
	assert.True(t, rl.Allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(100, 100)
	rl.now = func() time.Time { return now }

	rl.Allow("idle")
	now = now.Add(limiterIdleTTL + time.Minute)
	for i := range limiterSweepEvery {
		rl.Allow(fmt.Sprintf("client-%d", i%10))
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.clients, "idle")
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	handler := rl.Middleware(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/verify", nil)
	req.RemoteAddr = "192.0.2.7:51000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Same host, different source port.
	req.RemoteAddr = "192.0.2.7:51001"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", clientKey(req))

	// chi's RealIP rewrites RemoteAddr without a port.
	req.RemoteAddr = "203.0.113.9"
	assert.Equal(t, "203.0.113.9", clientKey(req))
}
