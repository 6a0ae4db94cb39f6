package api

import (
	"net/http"

	"Mnemo/internal/memory/consumer"
	"Mnemo/internal/memory/service"
	"Mnemo/internal/models"
	"Mnemo/internal/validator"
	"Mnemo/pkg/logger"

	"github.com/gin-gonic/gin"
)

// API provides handlers for the memory service.
type API struct {
	coordinator *service.Coordinator
	validator   *validator.Validator
	publisher   *consumer.SlicePublisher // nil in local mode; extraction runs inline
	logger      *logger.Logger
}

// NewAPI creates a new API handler.
func NewAPI(coordinator *service.Coordinator, v *validator.Validator, publisher *consumer.SlicePublisher, logger *logger.Logger) *API {
	return &API{
		coordinator: coordinator,
		validator:   v,
		publisher:   publisher,
		logger:      logger,
	}
}

// RetrieveContextHandler returns the memory bundle for one conversation turn.
func (a *API) RetrieveContextHandler(c *gin.Context) {
	var payload struct {
		SessionID string `json:"session_id" binding:"required"`
		UserID    string `json:"user_id" binding:"required"`
		Query     string `json:"query"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	ctx, err := a.coordinator.RetrieveContext(c.Request.Context(), payload.SessionID, payload.UserID, payload.Query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve context"})
		return
	}

	c.JSON(http.StatusOK, ctx)
}

// PersistTurnHandler appends one turn to a session's history.
func (a *API) PersistTurnHandler(c *gin.Context) {
	var payload struct {
		SessionID string      `json:"session_id" binding:"required"`
		Turn      models.Turn `json:"turn" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if err := a.coordinator.PersistTurn(c.Request.Context(), payload.SessionID, payload.Turn); err != nil {
		// Write failures surface; a silently dropped turn corrupts history.
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to persist turn"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session_id": payload.SessionID})
}

// SubmitSliceHandler accepts a finished conversation slice for fact
// extraction. In distributed mode the slice goes through Kafka and the call
// returns immediately; in local mode extraction runs inline.
func (a *API) SubmitSliceHandler(c *gin.Context) {
	var slice models.ConversationSlice
	if err := c.ShouldBindJSON(&slice); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if a.publisher != nil {
		if err := a.publisher.Publish(c.Request.Context(), slice); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue slice"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"session_id": slice.SessionID})
		return
	}

	stored, err := a.coordinator.ExtractAndStoreFacts(c.Request.Context(), slice)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to extract facts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": slice.SessionID, "stored": stored})
}

// StatsHandler reports what the memory tiers hold for a session/user pair.
func (a *API) StatsHandler(c *gin.Context) {
	sessionID := c.Param("id")
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	stats, err := a.coordinator.Stats(c.Request.Context(), sessionID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to collect stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ClearSessionHandler drops a session's episodic history.
func (a *API) ClearSessionHandler(c *gin.Context) {
	sessionID := c.Param("id")
	if err := a.coordinator.ClearSession(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to clear session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
}

// ClearFactsHandler drops every semantic fact stored for a user.
func (a *API) ClearFactsHandler(c *gin.Context) {
	userID := c.Param("id")
	if err := a.coordinator.ClearUserFacts(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to clear facts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID})
}

// SetGoalHandler stores or updates one procedural goal for a user.
func (a *API) SetGoalHandler(c *gin.Context) {
	userID := c.Param("id")

	var payload struct {
		Key   string `json:"key" binding:"required"`
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	goal := &models.Goal{UserID: userID, Key: payload.Key, Value: payload.Value}
	if err := a.coordinator.SetGoal(c.Request.Context(), goal); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to store goal"})
		return
	}
	c.JSON(http.StatusOK, goal)
}

// ValidateHandler checks the numeric claims in a generated response against
// tool output and optionally rewrites the text when claims fail.
func (a *API) ValidateHandler(c *gin.Context) {
	var payload struct {
		Text        string             `json:"text" binding:"required"`
		ToolResults models.ToolResults `json:"tool_results"`
		Correct     bool               `json:"correct"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	result := a.validator.ValidateResponse(payload.Text, payload.ToolResults)
	if payload.Correct && !result.Passed {
		a.validator.Correct(payload.Text, result)
	}

	c.JSON(http.StatusOK, result)
}
