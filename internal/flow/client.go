// Package flow provides the HTTP client for the external
// retrieval+generation engine. The engine answers a chat request with a
// stream of newline-delimited JSON events which the client decodes and
// republishes on a channel.
package flow

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"docchat/internal/service"
)

// maxEventBytes bounds a single event line; retrieved source payloads can
// be large.
const maxEventBytes = 1 << 20

// Client implements service.Flow against a remote generation engine.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a flow client. A timeout of zero disables the overall
// request deadline (streams are bounded by the caller's context instead).
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Stream posts the request to the engine and decodes its event stream.
// The returned channel closes when the engine finishes, errors, or the
// context is cancelled; no event is delivered after closure.
func (c *Client) Stream(ctx context.Context, req service.FlowRequest) (<-chan service.FlowEvent, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal flow request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/generate/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build flow request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call generation flow: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("generation flow returned %d: %s", resp.StatusCode, msg)
	}

	events := make(chan service.FlowEvent, 16)
	go c.decode(ctx, resp.Body, events)
	return events, nil
}

func (c *Client) decode(ctx context.Context, body io.ReadCloser, events chan<- service.FlowEvent) {
	defer close(events)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxEventBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var ev service.FlowEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			c.logger.Warn("undecodable flow event", zap.Error(err))
			continue
		}

		select {
		case <-ctx.Done():
			return
		case events <- ev:
		}

		// Terminal kinds end the stream even if the engine keeps the
		// connection open.
		if ev.Type == service.FlowEventDone || ev.Type == service.FlowEventError {
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		select {
		case <-ctx.Done():
		case events <- service.FlowEvent{Type: service.FlowEventError, Error: "generation stream interrupted"}:
			c.logger.Error("flow stream read failed", zap.Error(err))
		}
	}
}
