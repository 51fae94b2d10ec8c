package meetings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meetingapp/backend/internal/models"
	"github.com/meetingapp/backend/pkg/database"
)

const meetingColumns = `id, title, description, start_date, end_date, document_path, is_cancelled, cancelled_at, created_at, user_id`

const deleteLogColumns = `id, meeting_id, title, description, start_date, end_date, document_path, user_id, user_name, user_email,
	deleted_at, deleted_by, delete_reason, was_cancelled, cancelled_at, original_created_at`

// auditInsert snapshots the meeting together with its owner. $1 meeting id, $2 deleted by,
// $3/$4 reasons for cancelled/other rows, $5/$6 placeholders for a missing owner.
// The meeting row is locked so concurrent deletes log it once.
const auditInsert = `INSERT INTO meeting_delete_logs (meeting_id, title, description, start_date, end_date, document_path,
		user_id, user_name, user_email, deleted_at, deleted_by, delete_reason, was_cancelled, cancelled_at, original_created_at)
	SELECT m.id, m.title, m.description, m.start_date, m.end_date, m.document_path,
		m.user_id,
		COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), $5),
		COALESCE(u.email, $6),
		NOW(), $2,
		CASE WHEN m.is_cancelled THEN $3 ELSE $4 END,
		m.is_cancelled, m.cancelled_at, m.created_at
	FROM meetings m LEFT JOIN users u ON u.id = m.user_id
	WHERE m.id = $1
	FOR UPDATE OF m`

// Repository handles meeting persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a meeting repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Create inserts a meeting. m.ID must be set by the caller so linked documents can reference it.
func (r *Repository) Create(ctx context.Context, m *models.Meeting) error {
	const q = `INSERT INTO meetings (id, title, description, start_date, end_date, document_path, is_cancelled, cancelled_at, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`
	err := r.db.QueryRow(ctx, q, m.ID, m.Title, m.Description, m.StartDate, m.EndDate, m.DocumentPath, m.IsCancelled, m.CancelledAt, m.UserID).
		Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

// GetByID returns a meeting or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	const q = `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1`
	return scanMeeting(r.db.QueryRow(ctx, q, id))
}

// Update overwrites the mutable fields.
func (r *Repository) Update(ctx context.Context, m *models.Meeting) error {
	const q = `UPDATE meetings SET title = $2, description = $3, start_date = $4, end_date = $5,
		document_path = $6, is_cancelled = $7, cancelled_at = $8
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, m.ID, m.Title, m.Description, m.StartDate, m.EndDate, m.DocumentPath, m.IsCancelled, m.CancelledAt)
	if err != nil {
		return fmt.Errorf("update meeting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive returns meetings that are not cancelled, soonest first.
func (r *Repository) ListActive(ctx context.Context) ([]*models.Meeting, error) {
	const q = `SELECT ` + meetingColumns + ` FROM meetings WHERE NOT is_cancelled ORDER BY start_date, created_at`
	return r.list(ctx, q)
}

// ListActiveByUser returns the user's meetings that are not cancelled, soonest first.
func (r *Repository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*models.Meeting, error) {
	const q = `SELECT ` + meetingColumns + ` FROM meetings WHERE user_id = $1 AND NOT is_cancelled ORDER BY start_date, created_at`
	return r.list(ctx, q, userID)
}

// ListCancelledBefore returns meetings cancelled at or before cutoff.
func (r *Repository) ListCancelledBefore(ctx context.Context, cutoff time.Time) ([]*models.Meeting, error) {
	const q = `SELECT ` + meetingColumns + ` FROM meetings WHERE is_cancelled AND cancelled_at <= $1 ORDER BY cancelled_at`
	return r.list(ctx, q, cutoff)
}

// IsOwner reports whether userID owns the meeting.
func (r *Repository) IsOwner(ctx context.Context, meetingID, userID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM meetings WHERE id = $1 AND user_id = $2)`
	var ok bool
	if err := r.db.QueryRow(ctx, q, meetingID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check meeting ownership: %w", err)
	}
	return ok, nil
}

// DeleteWithAudit hard-deletes a meeting and writes its audit snapshot in one transaction.
// It reports false when the meeting does not exist.
func (r *Repository) DeleteWithAudit(ctx context.Context, id uuid.UUID, deletedBy string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin meeting delete: %w", err)
	}

	tag, err := tx.Exec(ctx, auditInsert, id, deletedBy,
		models.ReasonAutoCleanup, models.ReasonManualDeletion, models.UnknownUserName, models.UnknownUserEmail)
	if err != nil {
		_ = tx.Rollback(ctx)
		return false, fmt.Errorf("write meeting delete log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id); err != nil {
		_ = tx.Rollback(ctx)
		return false, fmt.Errorf("delete meeting: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit meeting delete: %w", err)
	}
	return true, nil
}

// ListDeleteLogs returns audit entries for meetings the user owned, newest first.
func (r *Repository) ListDeleteLogs(ctx context.Context, userID uuid.UUID) ([]*models.MeetingDeleteLog, error) {
	const q = `SELECT ` + deleteLogColumns + ` FROM meeting_delete_logs WHERE user_id = $1 ORDER BY deleted_at DESC, id DESC`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list meeting delete logs: %w", err)
	}
	defer rows.Close()

	list := make([]*models.MeetingDeleteLog, 0)
	for rows.Next() {
		var l models.MeetingDeleteLog
		if err := rows.Scan(&l.ID, &l.MeetingID, &l.Title, &l.Description, &l.StartDate, &l.EndDate, &l.DocumentPath,
			&l.UserID, &l.UserName, &l.UserEmail, &l.DeletedAt, &l.DeletedBy, &l.DeleteReason, &l.WasCancelled,
			&l.CancelledAt, &l.OriginalCreatedAt); err != nil {
			return nil, fmt.Errorf("scan meeting delete log: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]*models.Meeting, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()
	list := make([]*models.Meeting, 0)
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func scanMeeting(row pgx.Row) (*models.Meeting, error) {
	var m models.Meeting
	err := row.Scan(&m.ID, &m.Title, &m.Description, &m.StartDate, &m.EndDate, &m.DocumentPath,
		&m.IsCancelled, &m.CancelledAt, &m.CreatedAt, &m.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan meeting: %w", err)
	}
	return &m, nil
}
