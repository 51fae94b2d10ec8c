package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meetingapp/backend/pkg/response"
)

const (
	// ContextUserID is the key for the authenticated user ID (uuid.UUID) in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// TokenValidator verifies a bearer token and returns the principal it was issued to.
type TokenValidator interface {
	ValidateToken(token string) (userID uuid.UUID, email string, err error)
}

// JWT returns a middleware that validates the bearer token and sets the principal in context.
// Requests without a valid token never reach the handler.
func JWT(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		userID, email, err := tokens.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil || userID == uuid.Nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, userID)
		c.Set(ContextUserEmail, email)
		c.Next()
	}
}

// UserID returns the authenticated principal set by JWT.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// MustUserID is UserID for handlers mounted behind JWT. It aborts with 401 if the principal is missing.
func MustUserID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := UserID(c)
	if !ok {
		response.Unauthorized(c, "user not authenticated")
		c.Abort()
	}
	return id, ok
}
