package api

import (
	"context"
	"errors"
	"gymbook/internal/config"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bucketScripter stands in for Redis: each key gets `capacity` tokens and never refills.
type bucketScripter struct {
	mu       sync.Mutex
	capacity int64
	used     map[string]int64
	keys     []string
	err      error
}

func (b *bucketScripter) take(keys []string) *redis.Cmd {
	if b.err != nil {
		return redis.NewCmdResult(nil, b.err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := keys[0]
	b.keys = append(b.keys, key)
	if b.used[key] >= b.capacity {
		return redis.NewCmdResult([]interface{}{int64(0), int64(0), int64(1500)}, nil)
	}
	b.used[key]++
	return redis.NewCmdResult([]interface{}{int64(1), b.capacity - b.used[key], int64(0)}, nil)
}

func (b *bucketScripter) Eval(_ context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return b.take(keys)
}

func (b *bucketScripter) EvalSha(_ context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return b.take(keys)
}

func (b *bucketScripter) EvalRO(_ context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return b.take(keys)
}

func (b *bucketScripter) EvalShaRO(_ context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	return b.take(keys)
}

func (b *bucketScripter) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (b *bucketScripter) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func newLimitedRouter(cfg config.RateLimitConfig, rdb redis.Scripter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(cfg, rdb, slog.New(slog.NewTextHandler(io.Discard, nil))))
	router.GET("/limited", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return router
}

func hit(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var limitCfg = config.RateLimitConfig{
	Enabled:        true,
	Prefix:         "rl",
	Capacity:       2,
	RefillTokens:   1,
	RefillInterval: time.Second,
	TTL:            time.Minute,
}

func TestRateLimitRejectsWhenBucketEmpty(t *testing.T) {
	fake := &bucketScripter{capacity: 2, used: map[string]int64{}}
	router := newLimitedRouter(limitCfg, fake)

	for i := 0; i < 2; i++ {
		w := hit(router, "10.0.0.1:5000")
		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := hit(router, "10.0.0.1:5000")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	// A different client has its own bucket.
	w = hit(router, "10.0.0.2:5000")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, fake.keys, "rl:ip:10.0.0.2")
}

func TestRateLimitFailsOpen(t *testing.T) {
	fake := &bucketScripter{capacity: 0, used: map[string]int64{}, err: errors.New("dial tcp: connection refused")}
	router := newLimitedRouter(limitCfg, fake)

	for i := 0; i < 5; i++ {
		w := hit(router, "10.0.0.1:5000")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimitDisabled(t *testing.T) {
	fake := &bucketScripter{capacity: 0, used: map[string]int64{}}
	cfg := limitCfg
	cfg.Enabled = false
	router := newLimitedRouter(cfg, fake)

	w := hit(router, "10.0.0.1:5000")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, fake.keys)

	router = newLimitedRouter(limitCfg, nil)
	w = hit(router, "10.0.0.1:5000")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateKeyPrefersUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "192.0.2.7:1234"
	assert.Equal(t, "rl:ip:192.0.2.7", rateKey("rl", c))

	c.Set(ContextUserIDKey, "abc123")
	assert.Equal(t, "rl:user:abc123", rateKey("rl", c))
}
