package domain

import "time"

// Turn roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ConversationTurn is one immutable entry in a session's turn log.
// Content is expressed as one or more text segments.
type ConversationTurn struct {
	Role      string    `json:"role"` // user, model
	Segments  []string  `json:"segments"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Text joins the turn's segments into a single string.
func (t ConversationTurn) Text() string {
	if len(t.Segments) == 1 {
		return t.Segments[0]
	}
	out := ""
	for i, s := range t.Segments {
		if i > 0 {
			out += "\n"
		}
		out += s
	}
	return out
}

// HistoryMessage is one entry of the client's message log as received on
// the wire. Content arrives in mixed shapes (string, array of strings, or
// an object with a "text" field) and is normalized exactly once at ingress.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ChatRequest is the body of the chat endpoint.
type ChatRequest struct {
	Query     string           `json:"query"`
	SessionID string           `json:"sessionId"`
	ModelID   string           `json:"modelId"`
	History   []HistoryMessage `json:"history,omitempty"`
	Tools     []string         `json:"tools,omitempty"`
}

// Stream event kinds. Exactly one final_response (or a terminal error)
// closes a stream; nothing is emitted after closure.
const (
	EventChunk           = "chunk"
	EventSources         = "sources"
	EventToolInvocation  = "tool_invocation"
	EventToolInvocations = "tool_invocations"
	EventError           = "error"
	EventFinalResponse   = "final_response"
)

// SourceInfo is one retrieved citation attached to a sources event.
type SourceInfo struct {
	Source  string  `json:"source"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score"`
}

// ToolInvocation records one tool call made by the generation flow.
type ToolInvocation struct {
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
	Result string         `json:"result,omitempty"`
}

// StreamEvent is one typed frame in the outbound multiplexed response
// channel. Only the fields relevant to the event's Type are set.
type StreamEvent struct {
	Type        string           `json:"type"`
	Content     string           `json:"content,omitempty"`
	Sources     []SourceInfo     `json:"sources,omitempty"`
	Invocation  *ToolInvocation  `json:"toolInvocation,omitempty"`
	Invocations []ToolInvocation `json:"toolInvocations,omitempty"`
	Error       string           `json:"error,omitempty"`

	// final_response payload
	SessionID string `json:"sessionId,omitempty"`
	Response  string `json:"response,omitempty"`
}

// UploadResult is the body returned by the upload endpoint.
type UploadResult struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}
