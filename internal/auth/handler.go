package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meetingapp/backend/internal/files"
	"github.com/meetingapp/backend/internal/middleware"
	"github.com/meetingapp/backend/internal/models"
	"github.com/meetingapp/backend/pkg/response"
	"github.com/meetingapp/backend/pkg/utils"
)

// RegisterRequest is the multipart body for POST /api/auth/register.
// The optional file part is named "profile_image".
type RegisterRequest struct {
	FirstName       string `form:"first_name" json:"first_name" binding:"required,max=50"`
	LastName        string `form:"last_name" json:"last_name" binding:"required,max=50"`
	Email           string `form:"email" json:"email" binding:"required,email"`
	PhoneNumber     string `form:"phone_number" json:"phone_number" binding:"required,max=20"`
	Password        string `form:"password" json:"password" binding:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password" binding:"required,eqfield=Password"`
}

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLarge(c, "request body too large")
			return
		}
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	var image *files.Upload
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		u, closeFile, err := files.FormUpload(c, "profile_image")
		defer closeFile()
		if err != nil {
			response.BadRequest(c, "invalid profile image")
			return
		}
		image = u
	}

	session, err := h.svc.Register(c.Request.Context(), Registration{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
	}, image)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			response.Conflict(c, "email already registered")
		case errors.Is(err, files.ErrInvalidFile):
			response.BadRequest(c, "invalid profile image: check size, type and content")
		case errors.Is(err, utils.ErrPasswordTooLong):
			response.BadRequest(c, err.Error())
		default:
			h.logger.Error("register user", zap.Error(err))
			response.Internal(c, "an error occurred while registering user")
		}
		return
	}
	response.Created(c, session)
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	session, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(c, "invalid email or password")
			return
		}
		h.logger.Error("login", zap.Error(err))
		response.Internal(c, "an error occurred while logging in")
		return
	}
	response.OKMessage(c, "login successful", session)
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := middleware.MustUserID(c)
	if !ok {
		return
	}
	user, err := h.svc.Me(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		h.logger.Error("load profile", zap.Error(err))
		response.Internal(c, "an error occurred while loading the profile")
		return
	}
	response.OK(c, user)
}
