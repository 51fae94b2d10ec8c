package files

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/meetingapp/backend/internal/models"
)

// MaxFileSize is the largest accepted upload.
const MaxFileSize = 10 * 1024 * 1024

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}

var allowedExtensions = map[models.FileCategory][]string{
	models.CategoryProfileImage: imageExtensions,
	models.CategoryMeetingDocument: append([]string{
		".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".txt",
	}, imageExtensions...),
}

var contentTypes = map[string][]string{
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".png":  {"image/png"},
	".gif":  {"image/gif"},
	".pdf":  {"application/pdf"},
	".doc":  {"application/msword"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	".xls":  {"application/vnd.ms-excel"},
	".xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	".ppt":  {"application/vnd.ms-powerpoint"},
	".pptx": {"application/vnd.openxmlformats-officedocument.presentationml.presentation"},
	".txt":  {"text/plain"},
}

// Magic numbers for the types that have one. Anything else skips the content check.
var signatures = map[string][]byte{
	".jpg":  {0xFF, 0xD8, 0xFF},
	".jpeg": {0xFF, 0xD8, 0xFF},
	".png":  {0x89, 0x50, 0x4E, 0x47},
	".pdf":  {0x25, 0x50, 0x44, 0x46},
	".gif":  {0x47, 0x49, 0x46},
}

const sniffLen = 8

// Upload is a file as received from a client.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.ReadSeeker
}

// Extension returns the lower-cased extension of the declared name, including the dot.
func (u *Upload) Extension() string {
	return strings.ToLower(filepath.Ext(u.Name))
}

// AllowedExtensions lists the accepted extensions for a category.
func AllowedExtensions(category models.FileCategory) []string {
	return append([]string(nil), allowedExtensions[category]...)
}

// Validate checks size, extension, declared content type and leading signature, in that
// order. A rule failure returns (false, nil). The error is reserved for an unreadable
// stream. Content is rewound to its start before returning.
func Validate(u *Upload, category models.FileCategory) (bool, error) {
	if u == nil || u.Size <= 0 || u.Size > MaxFileSize {
		return false, nil
	}

	ext := u.Extension()
	if !slices.Contains(allowedExtensions[category], ext) {
		return false, nil
	}

	mime := strings.ToLower(strings.TrimSpace(u.ContentType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if !slices.Contains(contentTypes[ext], mime) {
		return false, nil
	}

	sig, ok := signatures[ext]
	if !ok {
		return true, nil
	}
	if u.Content == nil {
		return false, errors.New("upload has no content")
	}
	head, err := readHead(u.Content)
	if err != nil {
		return false, err
	}
	return bytes.HasPrefix(head, sig), nil
}

func readHead(r io.ReadSeeker) ([]byte, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload header: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}
	return head[:n], nil
}
