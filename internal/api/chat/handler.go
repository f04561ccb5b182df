package chat

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docchat/internal/domain"
	"docchat/internal/observability"
	"docchat/internal/service"
)

// Handler handles the streaming chat endpoint
type Handler struct {
	chatService *service.ChatService
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewHandler creates a new chat handler
func NewHandler(chatService *service.ChatService, metrics *observability.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{chatService: chatService, metrics: metrics, logger: logger}
}

// RegisterRoutes registers chat routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chat", h.Chat)
}

// Chat handles a chat request and streams the response as SSE. All
// request validation happens before the stream is opened; validation
// failures answer with a plain 400 JSON body.
func (h *Handler) Chat(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No session ID provided"})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No query provided"})
		return
	}
	if req.ModelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No model ID provided"})
		return
	}

	ctx := c.Request.Context()
	stream, err := h.chatService.ChatStream(ctx, &req)
	if err != nil {
		h.logger.Error("failed to start chat stream",
			zap.String("session_id", req.SessionID), zap.Error(err))
		status := http.StatusInternalServerError
		msg := "Failed to start chat"
		if errors.Is(err, domain.ErrUpstream) {
			status = http.StatusBadGateway
			msg = "Generation flow unavailable"
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	SetSSEHeaders(c)
	h.metrics.ActiveStreams.Inc()
	defer h.metrics.ActiveStreams.Dec()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-stream:
			if !ok {
				return false
			}
			if err := WriteFrame(w, ev); err != nil {
				// Best effort: one error frame, then the connection is
				// simply closed.
				h.logger.Error("failed to write stream frame", zap.Error(err))
				WriteFrame(w, domain.StreamEvent{Type: domain.EventError, Error: "stream serialization failed"})
				return false
			}
			return true
		}
	})
}
