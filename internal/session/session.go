// Package session persists chat sessions and their message history.
//
// Sessions carry a denormalized total_messages counter so listing does
// not need a join; every write that touches messages goes through one
// transaction that locks the session row, keeping the counter equal to
// the true message count at all times.
package session

import (
	"errors"
	"time"
)

// Sentinel errors checked with errors.Is().
var (
	// ErrNotFound is returned when a session token resolves to no
	// active row.
	ErrNotFound = errors.New("session not found")

	// ErrMessageNotFound is returned when a message token resolves to
	// no row.
	ErrMessageNotFound = errors.New("message not found")

	// ErrCounterDrift is returned by VerifyCounter when the denormalized
	// counter disagrees with the stored message count.
	ErrCounterDrift = errors.New("session message counter drift")
)

// Session is one conversation thread owned by a user.
type Session struct {
	ID            int64     `json:"-"`
	SessionID     string    `json:"session_id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	Category      string    `json:"category,omitempty"`
	TotalMessages int       `json:"total_messages"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Message is one question/answer exchange within a session. Answer and
// Source stay empty until the question is resolved, so a pipeline can
// log the question first and fill the rest in later.
type Message struct {
	ID        int64     `json:"-"`
	MessageID string    `json:"message_id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
