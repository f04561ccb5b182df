// Package docs serves the document upload and retrieval endpoints.
package docs

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docchat/internal/config"
	"docchat/internal/domain"
	"docchat/internal/repository"
	"docchat/internal/service"
)

// Handler handles document upload and file retrieval
type Handler struct {
	cfg           *config.Config
	ingestService *service.IngestService
	files         *repository.FileStore
	logger        *zap.Logger
}

// NewHandler creates a new docs handler
func NewHandler(cfg *config.Config, ingestService *service.IngestService, files *repository.FileStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{cfg: cfg, ingestService: ingestService, files: files, logger: logger}
}

// RegisterRoutes registers document routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/upload", h.Upload)
	r.GET("/files/:id", h.GetFile)
}

// Upload accepts a multipart payload with a single file field and ingests
// it, answering with the session id. Size limits are enforced before any
// processing starts.
func (h *Handler) Upload(c *gin.Context) {
	if cl := c.Request.ContentLength; cl > 0 && cl > h.cfg.Ingest.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}

	sessionID := c.PostForm("sessionId")

	result, err := h.ingestService.UploadDocument(c.Request.Context(), sessionID, file)
	if err != nil {
		h.logger.Error("upload failed",
			zap.String("file", file.Filename), zap.Error(err))
		switch {
		case errors.Is(err, domain.ErrTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		case errors.Is(err, domain.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file name"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ingest document"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetFile streams a stored document back. The composite identifier is
// sessionId::fileName; the file name is validated against a strict
// allow-list before any filesystem access.
func (h *Handler) GetFile(c *gin.Context) {
	id := c.Param("id")

	parts := strings.SplitN(id, "::", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file identifier"})
		return
	}
	sessionID, fileName := parts[0], parts[1]

	path, err := h.files.Path(sessionID, fileName)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file name"})
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		default:
			h.logger.Error("file lookup failed", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		}
		return
	}

	c.FileAttachment(path, fileName)
}
