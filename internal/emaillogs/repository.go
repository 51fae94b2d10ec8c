package emaillogs

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meetingapp/backend/internal/models"
	"github.com/meetingapp/backend/pkg/database"
)

// DefaultListLimit caps ListByUser when the caller passes no limit.
const DefaultListLimit = 50

// Repository handles email_logs persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an email logs repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Create records one delivery attempt and fills ID and CreatedAt.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (job_id, user_id, meeting_id, kind, recipient_email, subject, status, attempt, sent_at, error_message)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, NULLIF($10, ''))
		RETURNING id, created_at`
	err := r.db.QueryRow(ctx, q, el.JobID, el.UserID, el.MeetingID, string(el.Kind), el.RecipientEmail, el.Subject,
		el.Status, el.Attempt, el.SentAt, el.ErrorMessage).Scan(&el.ID, &el.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// ListByUser returns the user's email logs, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.EmailLog, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	const q = `SELECT id, job_id, user_id, meeting_id, kind, recipient_email, subject, status, attempt, sent_at, error_message, created_at
		FROM email_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()
	list := make([]*models.EmailLog, 0)
	for rows.Next() {
		var el models.EmailLog
		var kind string
		var subject, errMsg *string
		if err := rows.Scan(&el.ID, &el.JobID, &el.UserID, &el.MeetingID, &kind, &el.RecipientEmail, &subject,
			&el.Status, &el.Attempt, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan email log: %w", err)
		}
		el.Kind = models.NotificationKind(kind)
		if subject != nil {
			el.Subject = *subject
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
