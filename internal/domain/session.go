package domain

import "time"

// DefaultThreadID is the conversation thread used when a client does not
// address a specific thread within a session.
const DefaultThreadID = "default"

// Session is the durable unit of conversational and document-ingestion
// state, addressed by an opaque identifier. The identifier is immutable
// once created; LastActivity never moves backwards.
type Session struct {
	ID            string         `json:"sessionId"`
	CreatedAt     time.Time      `json:"created"`
	LastActivity  time.Time      `json:"lastActivity"`
	DocumentCount int            `json:"documentCount"`
	Metadata      map[string]any `json:"metadata,omitempty"`

	// Threads maps a conversation-thread id to its ordered turn log.
	// Populated on demand; not every read loads it.
	Threads map[string][]ConversationTurn `json:"threads,omitempty"`
}

// SessionState is the wire shape of the session metadata endpoints.
type SessionState struct {
	SessionID     string    `json:"sessionId"`
	Created       time.Time `json:"created"`
	LastActivity  time.Time `json:"lastActivity"`
	DocumentCount int       `json:"documentCount"`
}

// State projects the session onto its metadata endpoint shape.
func (s *Session) State() SessionState {
	return SessionState{
		SessionID:     s.ID,
		Created:       s.CreatedAt,
		LastActivity:  s.LastActivity,
		DocumentCount: s.DocumentCount,
	}
}
