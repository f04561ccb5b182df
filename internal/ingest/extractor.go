package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// PlainTextExtractor handles text media types locally. Anything it cannot
// decode as text must go through the external extraction service.
type PlainTextExtractor struct{}

// Extract returns the slice as a string for text-like media types.
func (PlainTextExtractor) Extract(_ context.Context, data []byte, mediaType string) (string, error) {
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(mediaType, ";", 2)[0]))
	switch {
	case strings.HasPrefix(mt, "text/"),
		mt == "application/json",
		mt == "application/xml",
		mt == "",
		mt == "application/octet-stream" && utf8.Valid(data):
		return string(data), nil
	}
	return "", fmt.Errorf("unsupported media type %q", mediaType)
}

// HTTPExtractor calls a remote extraction service with one byte range per
// request. The service receives the raw slice and the declared media type
// and responds with extracted plain text.
type HTTPExtractor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPExtractor creates an extractor client for the given service URL.
func NewHTTPExtractor(baseURL string) *HTTPExtractor {
	return &HTTPExtractor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Extract posts one slice to the extraction service.
func (e *HTTPExtractor) Extract(ctx context.Context, data []byte, mediaType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/extract", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build extract request: %w", err)
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", mediaType)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call extraction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("extraction service returned %d: %s", resp.StatusCode, body)
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read extraction response: %w", err)
	}
	return string(text), nil
}
