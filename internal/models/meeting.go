package models

import (
	"time"

	"github.com/google/uuid"
)

// Meeting is a scheduled meeting owned by a user.
// CancelledAt is non-nil exactly when IsCancelled is true.
type Meeting struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Description  *string    `json:"description,omitempty"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      time.Time  `json:"end_date"`
	DocumentPath *string    `json:"document_path,omitempty"`
	IsCancelled  bool       `json:"is_cancelled"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UserID       uuid.UUID  `json:"user_id"`
}

// Cancel marks the meeting cancelled and stamps CancelledAt. Cancellation is
// one-way: an already cancelled meeting keeps its original stamp.
// It reports whether the meeting became cancelled.
func (m *Meeting) Cancel(now time.Time) bool {
	if m.IsCancelled {
		return false
	}
	m.IsCancelled = true
	t := now.UTC()
	m.CancelledAt = &t
	return true
}

// StaleSince reports whether the meeting was cancelled at or before cutoff.
func (m *Meeting) StaleSince(cutoff time.Time) bool {
	return m.IsCancelled && m.CancelledAt != nil && !m.CancelledAt.After(cutoff)
}
