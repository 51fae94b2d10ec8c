package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetingapp/backend/internal/compression"
	"github.com/meetingapp/backend/internal/models"
	"github.com/meetingapp/backend/pkg/storage"
	"github.com/meetingapp/backend/pkg/utils"
)

// MetadataRepository is the persistence the store depends on.
type MetadataRepository interface {
	Create(ctx context.Context, rec *models.FileRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.FileRecord, error)
	GetByStoredName(ctx context.Context, name string) (*models.FileRecord, error)
	TouchAccessed(ctx context.Context, id uuid.UUID, at time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, category *models.FileCategory) ([]*models.FileRecord, error)
	CanAccess(ctx context.Context, fileID, userID uuid.UUID) (bool, error)
	IsOwner(ctx context.Context, fileID, userID uuid.UUID) (bool, error)
}

// Download is a readable file with its metadata. Body holds the original bytes.
type Download struct {
	Record *models.FileRecord
	Body   *bytes.Reader
}

// Store is the only path by which user files reach storage.
type Store struct {
	repo   MetadataRepository
	blobs  storage.BlobStore
	codec  *compression.Codec
	now    func() time.Time
	logger *zap.Logger
}

// NewStore wires the store.
func NewStore(repo MetadataRepository, blobs storage.BlobStore, codec *compression.Codec, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if codec == nil {
		codec = compression.NewCodec(logger)
	}
	return &Store{repo: repo, blobs: blobs, codec: codec, now: time.Now, logger: logger}
}

// GenerateStoredName returns <UTC yyyyMMddHHmmss>_<8 random alnum><ext>.
func GenerateStoredName(original string, now time.Time) (string, error) {
	suffix, err := utils.RandomAlnum(8)
	if err != nil {
		return "", fmt.Errorf("generate file name: %w", err)
	}
	return now.UTC().Format("20060102150405") + "_" + suffix + strings.ToLower(filepath.Ext(original)), nil
}

// Validate runs the upload rules for category without storing anything.
func (s *Store) Validate(u *Upload, category models.FileCategory) (bool, error) {
	return Validate(u, category)
}

// Save validates, compresses and stores u, then records its metadata.
// If the metadata insert fails the blob is removed again.
func (s *Store) Save(ctx context.Context, u *Upload, ownerID uuid.UUID, category models.FileCategory, relatedID *uuid.UUID) (*models.FileRecord, error) {
	ok, err := Validate(u, category)
	if err != nil {
		return nil, fmt.Errorf("validate upload: %w", err)
	}
	if !ok {
		rejectedUploads.WithLabelValues(string(category)).Inc()
		return nil, ErrInvalidFile
	}

	now := s.now().UTC()
	name, err := GenerateStoredName(u.Name, now)
	if err != nil {
		return nil, err
	}

	res, err := s.codec.Compress(u.Content, u.Name)
	if err != nil {
		return nil, fmt.Errorf("prepare upload: %w", err)
	}

	key := storage.Key(string(category), ownerID.String(), name)
	if err := s.blobs.Put(ctx, key, res.Body, res.Size, u.ContentType); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	rec := &models.FileRecord{
		ID:                   uuid.New(),
		OriginalFileName:     filepath.Base(u.Name),
		StoredFileName:       name,
		FilePath:             s.blobs.Location(key),
		FileExtension:        u.Extension(),
		ContentType:          u.ContentType,
		OwnerID:              ownerID,
		Category:             category,
		RelatedEntityID:      relatedID,
		OriginalSize:         u.Size,
		CompressionAlgorithm: res.Tag,
		UploadedAt:           now,
	}
	if res.Tag != models.CompressionNone {
		size := res.Size
		rec.CompressedSize = &size
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Error("orphan blob after failed metadata insert", zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("save file metadata: %w", err)
	}

	uploadsTotal.WithLabelValues(string(category), string(res.Tag)).Inc()
	uploadBytes.WithLabelValues(string(category), "original").Add(float64(rec.OriginalSize))
	uploadBytes.WithLabelValues(string(category), "stored").Add(float64(rec.StoredSize()))
	s.logger.Info("file stored",
		zap.String("file_id", rec.ID.String()),
		zap.String("stored_name", name),
		zap.String("category", string(category)),
		zap.String("owner_id", ownerID.String()),
		zap.Int64("size", rec.OriginalSize),
		zap.String("compression", string(res.Tag)),
	)
	return rec, nil
}

// Get returns the file if userID may read it. Missing and forbidden both yield ErrNotFound.
func (s *Store) Get(ctx context.Context, fileID, userID uuid.UUID) (*Download, error) {
	ok, err := s.repo.CanAccess(ctx, fileID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	rec, err := s.repo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	body, err := s.readBlob(ctx, rec)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.repo.TouchAccessed(ctx, rec.ID, now); err != nil {
		return nil, err
	}
	rec.LastAccessedAt = &now
	downloadsTotal.Inc()
	return &Download{Record: rec, Body: body}, nil
}

func (s *Store) readBlob(ctx context.Context, rec *models.FileRecord) (*bytes.Reader, error) {
	rc, err := s.blobs.Open(ctx, rec.BlobKey())
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			s.logger.Warn("file metadata without blob", zap.String("file_id", rec.ID.String()), zap.String("path", rec.FilePath))
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	defer rc.Close()
	return s.codec.Decompress(rc, rec.CompressionAlgorithm)
}

// GetByStoredName resolves a stored name and delegates to Get.
func (s *Store) GetByStoredName(ctx context.Context, name string, userID uuid.UUID) (*Download, error) {
	rec, err := s.repo.GetByStoredName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, rec.ID, userID)
}

// Delete removes the blob and soft-deletes the record. Only the uploader may delete;
// for anyone else it reports false without touching anything.
func (s *Store) Delete(ctx context.Context, fileID, userID uuid.UUID) (bool, error) {
	owner, err := s.repo.IsOwner(ctx, fileID, userID)
	if err != nil {
		return false, err
	}
	if !owner {
		return false, nil
	}
	rec, err := s.repo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.blobs.Delete(ctx, rec.BlobKey()); err != nil {
		return false, fmt.Errorf("delete blob: %w", err)
	}
	deleted, err := s.repo.SoftDelete(ctx, rec.ID, s.now().UTC())
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("file deleted", zap.String("file_id", rec.ID.String()), zap.String("owner_id", userID.String()))
	}
	return deleted, nil
}

// ListUserFiles returns the user's files newest first.
func (s *Store) ListUserFiles(ctx context.Context, userID uuid.UUID, category *models.FileCategory) ([]*models.FileRecord, error) {
	return s.repo.ListByOwner(ctx, userID, category)
}

// CanAccess reports whether userID may read the file.
func (s *Store) CanAccess(ctx context.Context, fileID, userID uuid.UUID) (bool, error) {
	return s.repo.CanAccess(ctx, fileID, userID)
}

// RemoveByStoredName deletes a file on behalf of the system, skipping the ownership
// check. It is used when a meeting document is replaced. Unknown names are ignored.
func (s *Store) RemoveByStoredName(ctx context.Context, name string) error {
	rec, err := s.repo.GetByStoredName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.blobs.Delete(ctx, rec.BlobKey()); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	_, err = s.repo.SoftDelete(ctx, rec.ID, s.now().UTC())
	return err
}
