package domain

import "time"

// ConversationLog is an append-only record of a completed call. UserID is
// nil when the caller never identified themselves.
type ConversationLog struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id,omitempty"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}
