package files

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

// ErrDuplicateName is returned when a stored file name is already taken.
var ErrDuplicateName = errors.New("stored file name already exists")

const fileColumns = `id, original_file_name, stored_file_name, file_path, file_extension, content_type,
	owner_id, file_type, related_entity_id, original_size, compressed_size, compression_algorithm,
	uploaded_at, last_accessed_at, is_deleted, deleted_at`

// Every read goes through this predicate so soft-deleted rows never surface.
const activeOnly = `is_deleted = FALSE`

// accessPredicate is the single definition of read access: $1 file id, $2 user id.
// The owner can always read; a meeting document is also readable by the owner of its meeting.
const accessPredicate = `f.id = $1 AND f.` + activeOnly + ` AND (
		f.owner_id = $2
		OR (f.file_type = 'MeetingDocument' AND f.related_entity_id IS NOT NULL AND EXISTS (
			SELECT 1 FROM meetings m WHERE m.id = f.related_entity_id AND m.user_id = $2))
	)`

// Repository handles file metadata persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a file metadata repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Create inserts a new active record. rec.ID and rec.UploadedAt must be set.
func (r *Repository) Create(ctx context.Context, rec *models.FileRecord) error {
	const q = `INSERT INTO file_metadata (id, original_file_name, stored_file_name, file_path, file_extension, content_type,
		owner_id, file_type, related_entity_id, original_size, compressed_size, compression_algorithm, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.Exec(ctx, q, rec.ID, rec.OriginalFileName, rec.StoredFileName, rec.FilePath, rec.FileExtension, rec.ContentType,
		rec.OwnerID, string(rec.Category), rec.RelatedEntityID, rec.OriginalSize, rec.CompressedSize, string(rec.CompressionAlgorithm), rec.UploadedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("insert file metadata: %w", err)
	}
	rec.State = models.FileActive
	return nil
}

// GetByID returns an active record or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.FileRecord, error) {
	q := `SELECT ` + fileColumns + ` FROM file_metadata WHERE id = $1 AND ` + activeOnly
	return scanFile(r.db.QueryRow(ctx, q, id))
}

// GetByStoredName returns an active record or ErrNotFound.
func (r *Repository) GetByStoredName(ctx context.Context, name string) (*models.FileRecord, error) {
	q := `SELECT ` + fileColumns + ` FROM file_metadata WHERE stored_file_name = $1 AND ` + activeOnly
	return scanFile(r.db.QueryRow(ctx, q, name))
}

// Update writes the mutable fields of an active record.
func (r *Repository) Update(ctx context.Context, rec *models.FileRecord) error {
	q := `UPDATE file_metadata SET original_file_name = $2, related_entity_id = $3, last_accessed_at = $4
		WHERE id = $1 AND ` + activeOnly
	tag, err := r.db.Exec(ctx, q, rec.ID, rec.OriginalFileName, rec.RelatedEntityID, rec.LastAccessedAt)
	if err != nil {
		return fmt.Errorf("update file metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchAccessed stamps last_accessed_at.
func (r *Repository) TouchAccessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	q := `UPDATE file_metadata SET last_accessed_at = $2 WHERE id = $1 AND ` + activeOnly
	if _, err := r.db.Exec(ctx, q, id, at); err != nil {
		return fmt.Errorf("touch file metadata: %w", err)
	}
	return nil
}

// SoftDelete moves an active record to the deleted state. It reports whether a row changed.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	q := `UPDATE file_metadata SET is_deleted = TRUE, deleted_at = $2 WHERE id = $1 AND ` + activeOnly
	tag, err := r.db.Exec(ctx, q, id, at)
	if err != nil {
		return false, fmt.Errorf("soft delete file metadata: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByOwner returns the owner's active files newest first, optionally limited to one category.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, category *models.FileCategory) ([]*models.FileRecord, error) {
	q := `SELECT ` + fileColumns + ` FROM file_metadata
		WHERE owner_id = $1 AND ` + activeOnly + ` AND ($2::text IS NULL OR file_type = $2)
		ORDER BY uploaded_at DESC`
	var cat *string
	if category != nil {
		s := string(*category)
		cat = &s
	}
	return r.list(ctx, q, ownerID, cat)
}

// ListByRelatedEntity returns active files linked to an entity such as a meeting, newest first.
func (r *Repository) ListByRelatedEntity(ctx context.Context, relatedID uuid.UUID) ([]*models.FileRecord, error) {
	q := `SELECT ` + fileColumns + ` FROM file_metadata
		WHERE related_entity_id = $1 AND ` + activeOnly + `
		ORDER BY uploaded_at DESC`
	return r.list(ctx, q, relatedID)
}

// CanAccess reports whether userID may read the file.
func (r *Repository) CanAccess(ctx context.Context, fileID, userID uuid.UUID) (bool, error) {
	q := `SELECT EXISTS (SELECT 1 FROM file_metadata f WHERE ` + accessPredicate + `)`
	var ok bool
	if err := r.db.QueryRow(ctx, q, fileID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check file access: %w", err)
	}
	return ok, nil
}

// IsOwner reports whether userID uploaded the file.
func (r *Repository) IsOwner(ctx context.Context, fileID, userID uuid.UUID) (bool, error) {
	q := `SELECT EXISTS (SELECT 1 FROM file_metadata WHERE id = $1 AND owner_id = $2 AND ` + activeOnly + `)`
	var ok bool
	if err := r.db.QueryRow(ctx, q, fileID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check file ownership: %w", err)
	}
	return ok, nil
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]*models.FileRecord, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list file metadata: %w", err)
	}
	defer rows.Close()
	list := make([]*models.FileRecord, 0)
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func scanFile(row pgx.Row) (*models.FileRecord, error) {
	var (
		rec         models.FileRecord
		category    string
		compression string
		deleted     bool
	)
	err := row.Scan(&rec.ID, &rec.OriginalFileName, &rec.StoredFileName, &rec.FilePath, &rec.FileExtension, &rec.ContentType,
		&rec.OwnerID, &category, &rec.RelatedEntityID, &rec.OriginalSize, &rec.CompressedSize, &compression,
		&rec.UploadedAt, &rec.LastAccessedAt, &deleted, &rec.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan file metadata: %w", err)
	}
	rec.Category = models.FileCategory(category)
	rec.CompressionAlgorithm = models.CompressionTag(compression)
	rec.State = models.FileActive
	if deleted {
		rec.State = models.FileSoftDeleted
	}
	return &rec, nil
}
