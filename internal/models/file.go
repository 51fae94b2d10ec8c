package models

import (
	"time"

	"github.com/google/uuid"
)

// FileCategory is the logical category of a stored file. It decides the allowed
// types and the top-level storage folder.
type FileCategory string

const (
	CategoryProfileImage    FileCategory = "ProfileImage"
	CategoryMeetingDocument FileCategory = "MeetingDocument"
)

// ParseFileCategory accepts the canonical names only.
func ParseFileCategory(s string) (FileCategory, bool) {
	switch FileCategory(s) {
	case CategoryProfileImage, CategoryMeetingDocument:
		return FileCategory(s), true
	}
	return "", false
}

// CompressionTag names the algorithm a blob was stored with.
type CompressionTag string

const (
	CompressionNone CompressionTag = "none"
	CompressionGzip CompressionTag = "gzip"
)

// FileState is the lifecycle state of a file record.
type FileState string

const (
	FileActive      FileState = "active"
	FileSoftDeleted FileState = "deleted"
)

// FileRecord is the metadata of an uploaded file.
type FileRecord struct {
	ID                   uuid.UUID      `json:"id"`
	OriginalFileName     string         `json:"original_file_name"`
	StoredFileName       string         `json:"stored_file_name"`
	FilePath             string         `json:"file_path"`
	FileExtension        string         `json:"file_extension"`
	ContentType          string         `json:"content_type"`
	OwnerID              uuid.UUID      `json:"owner_id"`
	Category             FileCategory   `json:"file_type"`
	RelatedEntityID      *uuid.UUID     `json:"related_entity_id,omitempty"`
	OriginalSize         int64          `json:"original_size"`
	CompressedSize       *int64         `json:"compressed_size,omitempty"`
	CompressionAlgorithm CompressionTag `json:"compression_algorithm"`
	UploadedAt           time.Time      `json:"uploaded_at"`
	LastAccessedAt       *time.Time     `json:"last_accessed_at,omitempty"`
	State                FileState      `json:"state"`
	DeletedAt            *time.Time     `json:"deleted_at,omitempty"`
}

// IsCompressed is derived from the compression tag.
func (f *FileRecord) IsCompressed() bool {
	return f.CompressionAlgorithm != "" && f.CompressionAlgorithm != CompressionNone
}

// BlobKey is the storage key: category/owner/stored name.
func (f *FileRecord) BlobKey() string {
	return string(f.Category) + "/" + f.OwnerID.String() + "/" + f.StoredFileName
}

// StoredSize is the number of bytes actually kept in storage.
func (f *FileRecord) StoredSize() int64 {
	if f.CompressedSize != nil {
		return *f.CompressedSize
	}
	return f.OriginalSize
}
