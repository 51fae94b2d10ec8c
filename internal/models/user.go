package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned by user lookups for an unknown id or email.
var ErrUserNotFound = errors.New("user not found")

// User represents a registered account.
type User struct {
	ID               uuid.UUID `json:"id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Email            string    `json:"email"`
	PhoneNumber      string    `json:"phone_number"`
	Password         string    `json:"-"`
	ProfileImagePath *string   `json:"profile_image_path,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID               uuid.UUID `json:"id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	FullName         string    `json:"full_name"`
	Email            string    `json:"email"`
	PhoneNumber      string    `json:"phone_number"`
	ProfileImagePath *string   `json:"profile_image_path,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:               u.ID,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		FullName:         u.FullName(),
		Email:            u.Email,
		PhoneNumber:      u.PhoneNumber,
		ProfileImagePath: u.ProfileImagePath,
		CreatedAt:        u.CreatedAt,
	}
}
