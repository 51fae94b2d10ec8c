package meetings

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetingapp/backend/internal/files"
	"github.com/meetingapp/backend/internal/middleware"
	"github.com/meetingapp/backend/pkg/response"
)

// MeetingRequest is the multipart (or JSON) body for create and update.
// Dates are RFC 3339. The optional file part is named "document".
type MeetingRequest struct {
	Title       string    `form:"title" json:"title" binding:"required,max=100"`
	Description *string   `form:"description" json:"description"`
	StartDate   time.Time `form:"start_date" json:"start_date" binding:"required"`
	EndDate     time.Time `form:"end_date" json:"end_date" binding:"required,gtefield=StartDate"`
	IsCancelled bool      `form:"is_cancelled" json:"is_cancelled"`
}

func (r MeetingRequest) input() Input {
	return Input{
		Title:       r.Title,
		Description: r.Description,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		IsCancelled: r.IsCancelled,
	}
}

// Handler handles meeting HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a meeting handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /api/meetings.
func (h *Handler) Create(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}
	req, doc, cleanup, ok := h.bind(c)
	defer cleanup()
	if !ok {
		return
	}
	m, err := h.svc.Create(c.Request.Context(), req.input(), userID, doc)
	if err != nil {
		h.fail(c, "create meeting", err)
		return
	}
	response.Created(c, m)
}

// Update handles PUT /api/meetings/:id.
func (h *Handler) Update(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}
	id, ok := meetingID(c)
	if !ok {
		return
	}
	req, doc, cleanup, ok := h.bind(c)
	defer cleanup()
	if !ok {
		return
	}
	m, err := h.svc.Update(c.Request.Context(), id, userID, req.input(), doc)
	if err != nil {
		h.fail(c, "update meeting", err)
		return
	}
	response.OKMessage(c, "meeting updated successfully", m)
}

// Cancel handles DELETE /api/meetings/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}
	id, ok := meetingID(c)
	if !ok {
		return
	}
	found, err := h.svc.Cancel(c.Request.Context(), id, userID)
	if err != nil {
		h.fail(c, "cancel meeting", err)
		return
	}
	if !found {
		response.NotFound(c, "meeting not found")
		return
	}
	response.OKMessage(c, "meeting cancelled successfully", nil)
}

// List handles GET /api/meetings.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		h.fail(c, "list meetings", err)
		return
	}
	response.OK(c, list)
}

// Mine handles GET /api/meetings/my-meetings.
func (h *Handler) Mine(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}
	list, err := h.svc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "list user meetings", err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/meetings/:id. Only the owner sees the meeting.
func (h *Handler) Get(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}
	id, ok := meetingID(c)
	if !ok {
		return
	}
	m, err := h.svc.Get(c.Request.Context(), id, userID)
	if err != nil {
		h.fail(c, "get meeting", err)
		return
	}
	response.OK(c, m)
}

// PurgeCandidates handles GET /api/meetings/purge-candidates.
func (h *Handler) PurgeCandidates(c *gin.Context) {
	list, err := h.svc.PurgeCandidates(c.Request.Context())
	if err != nil {
		h.fail(c, "list purge candidates", err)
		return
	}
	response.OK(c, list)
}

// Delete handles DELETE /api/meetings/:id.
func (h *Handler) Delete(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}
	id, ok := meetingID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id, userID); err != nil {
		h.fail(c, "delete meeting", err)
		return
	}
	response.OKMessage(c, "meeting deleted successfully", nil)
}

// DeleteLogs handles GET /api/meetings/delete-logs.
func (h *Handler) DeleteLogs(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}
	logs, err := h.svc.DeleteLogs(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "list meeting delete logs", err)
		return
	}
	response.OK(c, logs)
}

func meetingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return uuid.Nil, false
	}
	return id, true
}

// bind decodes the request and opens the optional document. cleanup is always safe to call.
func (h *Handler) bind(c *gin.Context) (MeetingRequest, *files.Upload, func(), bool) {
	var req MeetingRequest
	noop := func() {}
	if err := c.ShouldBind(&req); err != nil {
		h.badRequest(c, err)
		return req, nil, noop, false
	}
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return req, nil, noop, true
	}
	doc, cleanup, err := files.FormUpload(c, "document")
	if err != nil {
		h.badRequest(c, err)
		return req, nil, cleanup, false
	}
	return req, doc, cleanup, true
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.TooLarge(c, "request body too large")
		return
	}
	response.BadRequest(c, "invalid request: "+err.Error())
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "meeting not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, "you can only change your own meetings")
	case errors.Is(err, ErrInvalidMeeting), errors.Is(err, ErrOwnerNotFound):
		response.BadRequest(c, err.Error())
	case errors.Is(err, files.ErrInvalidFile):
		response.BadRequest(c, "invalid document: check size, type and content")
	default:
		h.logger.Error(op, zap.Error(err))
		response.Internal(c, "an error occurred while processing the meeting")
	}
}
