package api

import (
	"net/http"

	"Mnemo/pkg/ratelimiter"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware 创建一个 Gin 中间件，对所有记忆接口做全局限流。
// 超出限额的请求直接返回 429，不进入存储层。
func RateLimitMiddleware(limiter ratelimiter.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "请求过于频繁，请稍后再试"})
			c.Abort()
			return
		}
		c.Next()
	}
}
