package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meetingapp/backend/internal/models"
	"github.com/meetingapp/backend/pkg/database"
)

const userColumns = `id, first_name, last_name, email, phone_number, password_hash, profile_image_path, created_at`

// Repository handles user persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an auth repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// GetByID returns a user by ID or models.ErrUserNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, q, id))
}

// GetByEmail returns a user by email (case-insensitive) or models.ErrUserNotFound.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = $1`
	return scanUser(r.db.QueryRow(ctx, q, strings.ToLower(email)))
}

// Create inserts a new user and fills ID and CreatedAt. A taken email yields ErrEmailTaken.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (first_name, last_name, email, phone_number, password_hash, profile_image_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	err := r.db.QueryRow(ctx, q, u.FirstName, u.LastName, u.Email, u.PhoneNumber, u.Password, u.ProfileImagePath).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// SetProfileImage stores the stored name of the user's profile image.
func (r *Repository) SetProfileImage(ctx context.Context, id uuid.UUID, storedName string) error {
	const q = `UPDATE users SET profile_image_path = $2 WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, id, storedName)
	if err != nil {
		return fmt.Errorf("set profile image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PhoneNumber, &u.Password, &u.ProfileImagePath, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
