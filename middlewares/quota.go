package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type QuotaRule struct {
	Limit  int                       // requests allowed per window
	Window time.Duration             // fixed window, starts at the first request
	KeyFn  func(*gin.Context) string // "" skips the quota for this request
}

// WriteQuotaKey counts POST and DELETE per client IP per day.
func WriteQuotaKey(c *gin.Context) string {
	switch c.Request.Method {
	case http.MethodPost, http.MethodDelete:
		return fmt.Sprintf("quota:writes:ip:%s:day", c.ClientIP())
	default:
		return ""
	}
}

// Quota is a redis INCR/EXPIRE counter. Redis errors let the request through.
func Quota(rdb *redis.Client, rule QuotaRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rule.KeyFn(c)
		if key == "" || rule.Limit <= 0 {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		n, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}
		if n == 1 {
			_ = rdb.Expire(ctx, key, rule.Window).Err()
		}
		if int(n) > rule.Limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Usage quota exceeded. Please try again later.",
			})
			return
		}
		c.Header("X-Quota-Used", fmt.Sprintf("%d/%d", n, rule.Limit))
		c.Next()
	}
}
