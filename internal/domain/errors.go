package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidRequest indicates a missing or malformed request field
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTooLarge indicates a file or history exceeding a configured bound
	ErrTooLarge = errors.New("payload exceeds configured maximum")
	// ErrStorage indicates a session store I/O failure; not retried internally
	ErrStorage = errors.New("storage unavailable")
	// ErrUpstream indicates an external generation or retrieval failure
	ErrUpstream = errors.New("upstream flow failed")
)
