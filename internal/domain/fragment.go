package domain

import "time"

// Fragment is a bounded-length unit of extracted, retrievable text derived
// from one uploaded document. A fragment belongs to exactly one
// (session, source file) pair and is never mutated after creation.
// Ordinals are strictly increasing within a file; fragment ids are never
// reused, even across retries.
type Fragment struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	FileName   string    `json:"fileName"`
	Ordinal    int       `json:"ordinal"`
	FileOffset int64     `json:"fileOffset"`
	Page       int       `json:"page"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}
