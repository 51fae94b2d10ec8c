package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind is the change that caused a notification.
type NotificationKind string

const (
	NotificationMeetingCreated   NotificationKind = "meeting_created"
	NotificationMeetingUpdated   NotificationKind = "meeting_updated"
	NotificationMeetingCancelled NotificationKind = "meeting_cancelled"
	NotificationWelcome          NotificationKind = "welcome"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
	EmailLogStatusSkipped = "skipped"
)

// EmailLog records one delivery attempt of a notification email.
type EmailLog struct {
	ID             uuid.UUID        `json:"id"`
	JobID          string           `json:"job_id"`
	UserID         uuid.UUID        `json:"user_id"`
	MeetingID      *uuid.UUID       `json:"meeting_id,omitempty"`
	Kind           NotificationKind `json:"kind"`
	RecipientEmail string           `json:"recipient_email"`
	Subject        string           `json:"subject,omitempty"`
	Status         string           `json:"status"`
	Attempt        int              `json:"attempt"`
	SentAt         *time.Time       `json:"sent_at,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}
