// Package faq stores curated question/answer entries and matches user
// questions against them.
//
// Questions are unique as stored (case-sensitive); matching lowercases both
// sides. Exact equality wins over substring containment, and within each
// mode ties break to the lowest ID, i.e. the earliest-created entry.
package faq

import (
	"errors"
	"time"
)

// Sentinel errors checked with errors.Is().
var (
	// ErrNotFound indicates the referenced FAQ entry does not exist.
	ErrNotFound = errors.New("faq entry not found")

	// ErrDuplicateQuestion indicates an entry with the same question
	// already exists.
	ErrDuplicateQuestion = errors.New("faq question already exists")
)

// Match types reported for observability.
const (
	MatchExact   = "exact"
	MatchPartial = "partial"
)

// Entry is one curated question/answer pair.
type Entry struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MatchResult is the outcome of matching a question against stored entries.
type MatchResult struct {
	Matched   bool   `json:"matched"`
	Answer    string `json:"answer,omitempty"`
	FAQID     int64  `json:"faq_id,omitempty"`
	Category  string `json:"category,omitempty"`
	MatchType string `json:"match_type,omitempty"`
}
