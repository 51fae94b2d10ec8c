package files

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetingapp/backend/internal/middleware"
	"github.com/meetingapp/backend/internal/models"
	"github.com/meetingapp/backend/pkg/response"
)

// MeetingOwnership answers whether a user owns a meeting.
type MeetingOwnership interface {
	IsOwner(ctx context.Context, meetingID, userID uuid.UUID) (bool, error)
}

// FileInfo is the API view of a file record.
type FileInfo struct {
	ID                   uuid.UUID             `json:"id"`
	OriginalFileName     string                `json:"original_file_name"`
	StoredFileName       string                `json:"stored_file_name"`
	FileType             models.FileCategory   `json:"file_type"`
	ContentType          string                `json:"content_type"`
	RelatedEntityID      *uuid.UUID            `json:"related_entity_id,omitempty"`
	OriginalSize         int64                 `json:"original_size"`
	CompressedSize       *int64                `json:"compressed_size,omitempty"`
	IsCompressed         bool                  `json:"is_compressed"`
	CompressionAlgorithm models.CompressionTag `json:"compression_algorithm"`
	UploadedAt           time.Time             `json:"uploaded_at"`
	LastAccessedAt       *time.Time            `json:"last_accessed_at,omitempty"`
}

// NewFileInfo maps a record to its API view.
func NewFileInfo(rec *models.FileRecord) FileInfo {
	return FileInfo{
		ID:                   rec.ID,
		OriginalFileName:     rec.OriginalFileName,
		StoredFileName:       rec.StoredFileName,
		FileType:             rec.Category,
		ContentType:          rec.ContentType,
		RelatedEntityID:      rec.RelatedEntityID,
		OriginalSize:         rec.OriginalSize,
		CompressedSize:       rec.CompressedSize,
		IsCompressed:         rec.IsCompressed(),
		CompressionAlgorithm: rec.CompressionAlgorithm,
		UploadedAt:           rec.UploadedAt,
		LastAccessedAt:       rec.LastAccessedAt,
	}
}

// Handler handles file HTTP endpoints.
type Handler struct {
	store    *Store
	meetings MeetingOwnership
	maxBytes int64
	logger   *zap.Logger
}

// NewHandler creates a files handler. maxBytes caps the request body of uploads.
func NewHandler(store *Store, meetings MeetingOwnership, maxBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBytes <= 0 {
		maxBytes = MaxFileSize
	}
	return &Handler{store: store, meetings: meetings, maxBytes: maxBytes, logger: logger}
}

// LimitBody caps multipart bodies at the upload limit plus room for form fields.
func (h *Handler) LimitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)
	c.Next()
}

// Upload handles POST /api/files/upload (multipart: file, file_type, related_entity_id).
func (h *Handler) Upload(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}
	if !h.parseForm(c) {
		return
	}
	category, ok := models.ParseFileCategory(c.PostForm("file_type"))
	if !ok {
		response.BadRequest(c, "invalid file type")
		return
	}
	var relatedID *uuid.UUID
	if raw := c.PostForm("related_entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid related_entity_id")
			return
		}
		relatedID = &id
	}

	u, closeFile, err := FormUpload(c, "file")
	defer closeFile()
	if err != nil {
		h.badForm(c, err)
		return
	}
	if u == nil {
		response.BadRequest(c, "no file provided")
		return
	}

	if category == models.CategoryMeetingDocument && relatedID != nil {
		owns, err := h.meetings.IsOwner(c.Request.Context(), *relatedID, userID)
		if err != nil {
			h.logger.Error("check meeting ownership", zap.Error(err))
			response.Internal(c, "an error occurred while uploading the file")
			return
		}
		if !owns {
			response.Forbidden(c, "you can only attach documents to your own meetings")
			return
		}
	}

	rec, err := h.store.Save(c.Request.Context(), u, userID, category, relatedID)
	if err != nil {
		if errors.Is(err, ErrInvalidFile) {
			response.BadRequest(c, "invalid file: check size, type and content")
			return
		}
		h.logger.Error("upload file", zap.String("user_id", userID.String()), zap.Error(err))
		response.Internal(c, "an error occurred while uploading the file")
		return
	}
	response.Created(c, NewFileInfo(rec))
}

// Get handles GET /api/files/:id.
func (h *Handler) Get(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid file id")
		return
	}
	dl, err := h.store.Get(c.Request.Context(), id, userID)
	h.serve(c, dl, err)
}

// GetByName handles GET /api/files/by-name/:name.
func (h *Handler) GetByName(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}
	dl, err := h.store.GetByStoredName(c.Request.Context(), c.Param("name"), userID)
	h.serve(c, dl, err)
}

func (h *Handler) serve(c *gin.Context, dl *Download, err error) {
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "file not found or access denied")
			return
		}
		h.logger.Error("read file", zap.Error(err))
		response.Internal(c, "an error occurred while retrieving the file")
		return
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": dl.Record.OriginalFileName})
	c.DataFromReader(http.StatusOK, dl.Body.Size(), dl.Record.ContentType, dl.Body, map[string]string{
		"Content-Disposition": disposition,
	})
}

// Delete handles DELETE /api/files/:id. Only the uploader may delete.
func (h *Handler) Delete(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid file id")
		return
	}
	deleted, err := h.store.Delete(c.Request.Context(), id, userID)
	if err != nil {
		h.logger.Error("delete file", zap.String("file_id", id.String()), zap.Error(err))
		response.Internal(c, "an error occurred while deleting the file")
		return
	}
	if !deleted {
		response.NotFound(c, "file not found or access denied")
		return
	}
	response.OKMessage(c, "file deleted successfully", nil)
}

// MyFiles handles GET /api/files/my-files?file_type=.
func (h *Handler) MyFiles(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}
	var category *models.FileCategory
	if raw := c.Query("file_type"); raw != "" {
		cat, ok := models.ParseFileCategory(raw)
		if !ok {
			response.BadRequest(c, "invalid file type")
			return
		}
		category = &cat
	}
	list, err := h.store.ListUserFiles(c.Request.Context(), userID, category)
	if err != nil {
		h.logger.Error("list files", zap.Error(err))
		response.Internal(c, "an error occurred while retrieving files")
		return
	}
	out := make([]FileInfo, 0, len(list))
	for _, rec := range list {
		out = append(out, NewFileInfo(rec))
	}
	response.OK(c, out)
}

// Validate handles POST /api/files/validate (multipart: file, file_type).
func (h *Handler) Validate(c *gin.Context) {
	if !h.parseForm(c) {
		return
	}
	category, ok := models.ParseFileCategory(c.PostForm("file_type"))
	if !ok {
		response.BadRequest(c, "invalid file type")
		return
	}
	u, closeFile, err := FormUpload(c, "file")
	defer closeFile()
	if err != nil {
		h.badForm(c, err)
		return
	}
	if u == nil {
		response.BadRequest(c, "no file provided")
		return
	}
	valid, err := h.store.Validate(u, category)
	if err != nil {
		h.logger.Error("validate file", zap.Error(err))
		response.Internal(c, "an error occurred while validating the file")
		return
	}
	msg := "file is invalid"
	if valid {
		msg = "file is valid"
	}
	response.OKMessage(c, msg, gin.H{"is_valid": valid, "allowed_extensions": AllowedExtensions(category)})
}

// Access handles GET /api/files/:id/access.
func (h *Handler) Access(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid file id")
		return
	}
	allowed, err := h.store.CanAccess(c.Request.Context(), id, userID)
	if err != nil {
		h.logger.Error("check file access", zap.Error(err))
		response.Internal(c, "an error occurred while checking access")
		return
	}
	response.OK(c, gin.H{"can_access": allowed})
}

func (h *Handler) parseForm(c *gin.Context) bool {
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		h.badForm(c, err)
		return false
	}
	return true
}

func (h *Handler) badForm(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.TooLarge(c, "file exceeds the "+strconv.FormatInt(h.maxBytes>>20, 10)+" MB limit")
		return
	}
	response.BadRequest(c, "invalid multipart form")
}
