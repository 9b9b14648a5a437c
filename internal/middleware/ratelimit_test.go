package middleware_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"agrimarket-backend/internal/middleware"
	"agrimarket-backend/test/helpers"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	limiter := middleware.NewMemoryLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(ctx, "10.0.0.1"), "request %d", i+1)
	}
	assert.False(t, limiter.Allow(ctx, "10.0.0.1"))

	// budgets are per key
	assert.True(t, limiter.Allow(ctx, "10.0.0.2"))
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("NilClient", func(t *testing.T) {
		limiter := middleware.NewRedisLimiter(nil, "test:", 1, time.Minute, nil)
		for i := 0; i < 5; i++ {
			assert.True(t, limiter.Allow(ctx, "10.0.0.1"))
		}
	})

	t.Run("Unreachable", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 100 * time.Millisecond,
			MaxRetries:  -1,
		})
		defer client.Close()

		limiter := middleware.NewRedisLimiter(client, "test:", 1, time.Minute, helpers.NewTestLogger())
		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow(ctx, "10.0.0.1"))
		}
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RateLimit(middleware.NewMemoryLimiter(2, time.Minute), "Rate limit exceeded"))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, helpers.MakeRequest(router, "GET", "/", nil, nil).Code)
	assert.Equal(t, http.StatusOK, helpers.MakeRequest(router, "GET", "/", nil, nil).Code)

	w := helpers.MakeRequest(router, "GET", "/", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Rate limit exceeded", helpers.DecodeObject(t, w)["message"])
}
