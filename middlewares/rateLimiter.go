package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// RateLimiter is a fixed window request counter per client IP kept in Redis.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := rateLimitPrefix + c.ClientIP()
	ctx := c.Request.Context()

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		_ = c.Error(err)
		utils.ErrorStatus(c, http.StatusInternalServerError, "rate limiter unavailable")
		return
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			_ = c.Error(err)
			utils.ErrorStatus(c, http.StatusInternalServerError, "rate limiter unavailable")
			return
		}
	}

	if count > rl.limit {
		utils.ErrorStatus(c, http.StatusTooManyRequests,
			fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())))
		return
	}
	c.Next()
}
