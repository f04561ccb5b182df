package service

import (
	"context"

	"go.uber.org/zap"

	"docchat/internal/domain"
)

// Flow event kinds produced by the external retrieval+generation flow.
const (
	FlowEventToken     = "token"
	FlowEventSources   = "sources"
	FlowEventToolCall  = "tool_call"
	FlowEventToolCalls = "tool_calls"
	FlowEventError     = "error"
	FlowEventDone      = "done"
)

// FlowEvent is one intermediate event yielded by the generation flow.
type FlowEvent struct {
	Type        string                  `json:"type"`
	Content     string                  `json:"content,omitempty"`
	Sources     []domain.SourceInfo     `json:"sources,omitempty"`
	Invocation  *domain.ToolInvocation  `json:"toolCall,omitempty"`
	Invocations []domain.ToolInvocation `json:"toolCalls,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

// FlowRequest is the input handed to the generation flow.
type FlowRequest struct {
	Query     string                    `json:"query"`
	SessionID string                    `json:"sessionId"`
	ModelID   string                    `json:"modelId"`
	History   []domain.ConversationTurn `json:"history,omitempty"`
	Tools     []string                  `json:"tools,omitempty"`
}

// Flow is the external retrieval+generation collaborator. Stream returns a
// channel of intermediate events which the implementation closes when the
// flow finishes. Implementations must honor ctx cancellation: work already
// dispatched may complete in the background, but no event may be delivered
// after the channel closes.
type Flow interface {
	Stream(ctx context.Context, req FlowRequest) (<-chan FlowEvent, error)
}

// Indexer is the external retrieval index. It receives fragments in
// ordinal order and makes them queryable for the session.
type Indexer interface {
	Index(ctx context.Context, fragments []domain.Fragment) error
}

// LogIndexer is a stand-in Indexer for running without a retrieval index.
// It only records what would have been indexed.
type LogIndexer struct {
	logger *zap.Logger
}

// NewLogIndexer creates a LogIndexer.
func NewLogIndexer(logger *zap.Logger) *LogIndexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogIndexer{logger: logger}
}

// Index logs the fragment batch and drops it.
func (i *LogIndexer) Index(_ context.Context, fragments []domain.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}
	i.logger.Info("index fragments",
		zap.String("session_id", fragments[0].SessionID),
		zap.String("file", fragments[0].FileName),
		zap.Int("count", len(fragments)),
	)
	return nil
}
