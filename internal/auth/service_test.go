package auth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetingapp/backend/internal/files"
	"github.com/meetingapp/backend/internal/models"
	"github.com/meetingapp/backend/internal/notify"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[uuid.UUID]*models.User)}
}

func (m *memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (m *memoryUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = uuid.New()
	u.CreatedAt = time.Now().UTC()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memoryUsers) SetProfileImage(_ context.Context, id uuid.UUID, storedName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	u.ProfileImagePath = &storedName
	return nil
}

// validatingImages applies the real validation rules and records saves.
type validatingImages struct {
	saved   []uuid.UUID
	saveErr error
}

func (v *validatingImages) Validate(u *files.Upload, category models.FileCategory) (bool, error) {
	return files.Validate(u, category)
}

func (v *validatingImages) Save(_ context.Context, u *files.Upload, ownerID uuid.UUID, category models.FileCategory, _ *uuid.UUID) (*models.FileRecord, error) {
	if v.saveErr != nil {
		return nil, v.saveErr
	}
	v.saved = append(v.saved, ownerID)
	return &models.FileRecord{ID: uuid.New(), StoredFileName: "20240101000000_Abcdefgh" + u.Extension(), OwnerID: ownerID, Category: category}, nil
}

type captureNotifier struct {
	sent []notify.Notification
	err  error
}

func (c *captureNotifier) Notify(_ context.Context, n notify.Notification) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, n)
	return nil
}

func pngUpload() *files.Upload {
	body := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 120)...)
	return &files.Upload{Name: "me.png", ContentType: "image/png", Size: int64(len(body)), Content: bytes.NewReader(body)}
}

func sampleRegistration() Registration {
	return Registration{FirstName: "Ada", LastName: "Lovelace", Email: " Ada@Example.com ", PhoneNumber: "+441234", Password: "analytical"}
}

type authFixture struct {
	svc      *Service
	users    *memoryUsers
	images   *validatingImages
	notifier *captureNotifier
}

func newAuthFixture() *authFixture {
	f := &authFixture{users: newMemoryUsers(), images: &validatingImages{}, notifier: &captureNotifier{}}
	f.svc = NewService(f.users, f.images, NewJWTService("secret", 1), f.notifier, nil)
	return f
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	session, err := f.svc.Register(ctx, sampleRegistration(), pngUpload())
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "ada@example.com", session.User.Email)
	assert.Equal(t, "Ada Lovelace", session.User.FullName)
	require.NotNil(t, session.User.ProfileImagePath)
	assert.Equal(t, []uuid.UUID{session.User.ID}, f.images.saved)

	stored := f.users.users[session.User.ID]
	assert.NotEqual(t, "analytical", stored.Password)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, models.NotificationWelcome, f.notifier.sent[0].Kind)

	login, err := f.svc.Login(ctx, "ADA@example.com", "analytical")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, login.User.ID)

	_, err = f.svc.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "nobody@example.com", "analytical")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	me, err := f.svc.Me(ctx, session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", me.FirstName)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, sampleRegistration(), nil)
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, sampleRegistration(), nil)
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.Len(t, f.users.users, 1)
}

func TestRegisterRejectsInvalidImageBeforeCreate(t *testing.T) {
	f := newAuthFixture()
	img := pngUpload()
	img.Name = "me.jpg"
	img.ContentType = "image/jpeg"

	_, err := f.svc.Register(context.Background(), sampleRegistration(), img)
	assert.ErrorIs(t, err, files.ErrInvalidFile)
	assert.Empty(t, f.users.users)
	assert.Empty(t, f.notifier.sent)
}

func TestRegisterSurvivesSideEffectFailures(t *testing.T) {
	f := newAuthFixture()
	f.images.saveErr = errors.New("disk full")
	f.notifier.err = errors.New("redis down")

	session, err := f.svc.Register(context.Background(), sampleRegistration(), pngUpload())
	require.NoError(t, err)
	assert.Nil(t, session.User.ProfileImagePath)
	assert.Len(t, f.users.users, 1)
}
