// Package session serves the session metadata endpoints.
package session

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docchat/internal/domain"
	"docchat/internal/service"
)

// Handler handles session metadata requests
type Handler struct {
	sessionService *service.SessionService
	logger         *zap.Logger
}

// NewHandler creates a new session handler
func NewHandler(sessionService *service.SessionService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sessionService: sessionService, logger: logger}
}

// RegisterRoutes registers session routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/sessions/:id", h.Get)
	r.POST("/sessions/:id", h.Create)
	r.PUT("/sessions/:id", h.Update)
	r.GET("/sessions/:id/turns", h.Turns)
}

// Get returns a session's metadata.
func (h *Handler) Get(c *gin.Context) {
	state, err := h.sessionService.GetState(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Create creates the session if absent. Idempotent: POSTing an existing
// id returns the existing state rather than duplicating it.
func (h *Handler) Create(c *gin.Context) {
	state, created, err := h.sessionService.EnsureState(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, state)
}

// Update overwrites a session's mutable metadata.
func (h *Handler) Update(c *gin.Context) {
	var body domain.SessionState
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	state, err := h.sessionService.UpdateState(c.Param("id"), body.DocumentCount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Turns returns a session's turn log for one thread (query parameter
// "thread", defaulting to the session's default thread).
func (h *Handler) Turns(c *gin.Context) {
	turns, err := h.sessionService.Turns(c.Param("id"), c.Query("thread"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	c.JSON(http.StatusOK, gin.H{"turns": turns})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	h.logger.Error("session request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Session store unavailable"})
}
