package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DeletedBySystem marks deletions made by the cleanup job.
	DeletedBySystem = "SYSTEM"
	// ReasonAutoCleanup is recorded when the deleted meeting was cancelled.
	ReasonAutoCleanup = "auto-cleanup of cancelled meeting"
	// ReasonManualDeletion is recorded for every other deletion.
	ReasonManualDeletion = "manual deletion"
	// UnknownUserName and UnknownUserEmail stand in when the owner row no longer exists.
	UnknownUserName  = "Unknown User"
	UnknownUserEmail = "unknown@email.com"
)

// MeetingDeleteLog is an immutable snapshot of a meeting taken when it was hard-deleted.
type MeetingDeleteLog struct {
	ID                int64      `json:"id"`
	MeetingID         uuid.UUID  `json:"meeting_id"`
	Title             string     `json:"title"`
	Description       *string    `json:"description,omitempty"`
	StartDate         time.Time  `json:"start_date"`
	EndDate           time.Time  `json:"end_date"`
	DocumentPath      *string    `json:"document_path,omitempty"`
	UserID            uuid.UUID  `json:"user_id"`
	UserName          string     `json:"user_name"`
	UserEmail         string     `json:"user_email"`
	DeletedAt         time.Time  `json:"deleted_at"`
	DeletedBy         string     `json:"deleted_by"`
	DeleteReason      string     `json:"delete_reason"`
	WasCancelled      bool       `json:"was_cancelled"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	OriginalCreatedAt time.Time  `json:"original_created_at"`
}

// DeleteReasonFor classifies a deletion by the meeting's cancellation flag.
func DeleteReasonFor(wasCancelled bool) string {
	if wasCancelled {
		return ReasonAutoCleanup
	}
	return ReasonManualDeletion
}
