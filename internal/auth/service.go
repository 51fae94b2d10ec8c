package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetingapp/backend/internal/files"
	"github.com/meetingapp/backend/internal/models"
	"github.com/meetingapp/backend/internal/notify"
	"github.com/meetingapp/backend/pkg/utils"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// UserStore is the user persistence the service depends on.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	SetProfileImage(ctx context.Context, id uuid.UUID, storedName string) error
}

// ImageStore saves profile images.
type ImageStore interface {
	Validate(u *files.Upload, category models.FileCategory) (bool, error)
	Save(ctx context.Context, u *files.Upload, ownerID uuid.UUID, category models.FileCategory, relatedID *uuid.UUID) (*models.FileRecord, error)
}

// Notifier accepts best-effort notifications.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}

// Registration holds the fields of a new account.
type Registration struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Password    string
}

// Session is an issued token with the user it belongs to.
type Session struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      models.UserPublic `json:"user"`
}

// Service implements registration, login and profile lookup.
type Service struct {
	users    UserStore
	images   ImageStore
	tokens   *JWTService
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates an auth service. notifier may be nil.
func NewService(users UserStore, images ImageStore, tokens *JWTService, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, images: images, tokens: tokens, notifier: notifier, logger: logger}
}

// Register creates an account. An optional profile image is validated before the account
// is created and stored once the user id exists.
func (s *Service) Register(ctx context.Context, reg Registration, image *files.Upload) (*Session, error) {
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	if _, err := s.users.GetByEmail(ctx, reg.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return nil, err
	}

	if image != nil {
		ok, err := s.images.Validate(image, models.CategoryProfileImage)
		if err != nil {
			return nil, fmt.Errorf("validate profile image: %w", err)
		}
		if !ok {
			return nil, files.ErrInvalidFile
		}
	}

	hash, err := utils.HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		FirstName:   strings.TrimSpace(reg.FirstName),
		LastName:    strings.TrimSpace(reg.LastName),
		Email:       reg.Email,
		PhoneNumber: strings.TrimSpace(reg.PhoneNumber),
		Password:    hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if image != nil {
		s.attachProfileImage(ctx, user, image)
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, notify.For(models.NotificationWelcome, user, nil)); err != nil {
			s.logger.Warn("welcome notification not queued", zap.String("user_id", user.ID.String()), zap.Error(err))
		}
	}
	return s.session(user)
}

// attachProfileImage stores the image for a freshly created user. Failures leave the
// account without an image.
func (s *Service) attachProfileImage(ctx context.Context, user *models.User, image *files.Upload) {
	rec, err := s.images.Save(ctx, image, user.ID, models.CategoryProfileImage, nil)
	if err != nil {
		s.logger.Error("store profile image", zap.String("user_id", user.ID.String()), zap.Error(err))
		return
	}
	if err := s.users.SetProfileImage(ctx, user.ID, rec.StoredFileName); err != nil {
		s.logger.Error("link profile image", zap.String("user_id", user.ID.String()), zap.Error(err))
		return
	}
	user.ProfileImagePath = &rec.StoredFileName
}

// Login checks credentials. Unknown emails and wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.session(user)
}

// Me returns the public profile of the user.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (models.UserPublic, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.UserPublic{}, err
	}
	return user.ToPublic(), nil
}

func (s *Service) session(user *models.User) (*Session, error) {
	token, expires, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expires, User: user.ToPublic()}, nil
}
