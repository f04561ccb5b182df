package chat

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"

	"docchat/internal/domain"
)

// SetSSEHeaders configures the response for Server-Sent Events. Must run
// before the first write. X-Accel-Buffering disables proxy buffering so
// each frame reaches the client immediately.
func SetSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// WriteFrame serializes one stream event in SSE wire format:
// "event: <kind>\ndata: <JSON>\n\n".
func WriteFrame(w io.Writer, ev domain.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}
