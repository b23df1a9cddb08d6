package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLimiter(t *testing.T, cfg *RateLimitConfig) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)
	return rl
}

func TestTokenBucket(t *testing.T) {
	rl := testLimiter(t, &RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             2,
		BlockDuration:     time.Second,
		BucketTTL:         time.Hour,
	})
	bucket := rl.getBucket("k", 2, 1)
	now := bucket.lastUpdate

	ok, info := rl.tryConsume(bucket, 1, now)
	require.True(t, ok)
	require.Equal(t, 1, info.Remaining)
	ok, _ = rl.tryConsume(bucket, 1, now)
	require.True(t, ok)

	ok, info = rl.tryConsume(bucket, 1, now)
	require.False(t, ok)
	require.Equal(t, "rate", info.LimitType)

	// blocked even after a refill until the block expires
	ok, info = rl.tryConsume(bucket, 1, now.Add(500*time.Millisecond))
	require.False(t, ok)
	require.Equal(t, "blocked", info.LimitType)

	ok, _ = rl.tryConsume(bucket, 1, now.Add(2*time.Second))
	require.True(t, ok)
}

func TestCleanupDropsIdleBuckets(t *testing.T) {
	rl := testLimiter(t, DefaultRateLimitConfig())
	rl.Allow("1.2.3.4")
	require.Equal(t, 1, rl.GetStats().TotalBuckets)

	rl.cleanup(time.Now().Add(2 * time.Hour))
	require.Equal(t, 0, rl.GetStats().TotalBuckets)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := testLimiter(t, &RateLimitConfig{
		RequestsPerSecond: 0.001,
		Burst:             10,
		WritesPerSecond:   0.001,
		WriteBurst:        1,
		BlockDuration:     time.Minute,
		BucketTTL:         time.Hour,
	})
	handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(method string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/sell", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, do(http.MethodPost).Code)
	rec := do(http.MethodPost)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	// reads use their own bucket
	require.Equal(t, http.StatusOK, do(http.MethodGet).Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:1234"
	require.Equal(t, "192.168.1.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "10.1.1.1")
	require.Equal(t, "10.1.1.1", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "8.8.8.8, 10.0.0.1")
	require.Equal(t, "8.8.8.8", ClientIP(req))
}
