package api

import (
	"net/http"

	"Mnemo/pkg/ratelimiter"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all the routes for the memory service.
// A nil limiter disables rate limiting.
func RegisterRoutes(router *gin.Engine, api *API, limiter ratelimiter.RateLimiter) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	if limiter != nil {
		v1.Use(RateLimitMiddleware(limiter))
	}

	memory := v1.Group("/memory")
	{
		memory.POST("/context", api.RetrieveContextHandler)
		memory.POST("/turns", api.PersistTurnHandler)
		memory.POST("/slices", api.SubmitSliceHandler)
		memory.GET("/sessions/:id/stats", api.StatsHandler)
		memory.DELETE("/sessions/:id", api.ClearSessionHandler)
		memory.DELETE("/users/:id/facts", api.ClearFactsHandler)
		memory.PUT("/users/:id/goals", api.SetGoalHandler)
	}

	v1.POST("/validate", api.ValidateHandler)
}
