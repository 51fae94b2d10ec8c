package meetings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetingapp/backend/internal/files"
	"github.com/meetingapp/backend/internal/models"
	"github.com/meetingapp/backend/internal/notify"
)

// DefaultRetention is how long a cancelled meeting is kept before it is purged.
const DefaultRetention = 30 * 24 * time.Hour

// MaxTitleLength bounds Input.Title in characters.
const MaxTitleLength = 100

// Store is the meeting persistence the service depends on.
type Store interface {
	Create(ctx context.Context, m *models.Meeting) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
	Update(ctx context.Context, m *models.Meeting) error
	ListActive(ctx context.Context) ([]*models.Meeting, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*models.Meeting, error)
	ListCancelledBefore(ctx context.Context, cutoff time.Time) ([]*models.Meeting, error)
	DeleteWithAudit(ctx context.Context, id uuid.UUID, deletedBy string) (bool, error)
	ListDeleteLogs(ctx context.Context, userID uuid.UUID) ([]*models.MeetingDeleteLog, error)
}

// Users resolves meeting owners. GetByID returns models.ErrUserNotFound for an unknown id.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Documents stores meeting attachments.
type Documents interface {
	Save(ctx context.Context, u *files.Upload, ownerID uuid.UUID, category models.FileCategory, relatedID *uuid.UUID) (*models.FileRecord, error)
	RemoveByStoredName(ctx context.Context, name string) error
}

// Notifier accepts best-effort notifications.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}

// Input holds the client-editable meeting fields.
type Input struct {
	Title       string
	Description *string
	StartDate   time.Time
	EndDate     time.Time
	IsCancelled bool
}

func (in *Input) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidMeeting)
	}
	if utf8.RuneCountInString(in.Title) > MaxTitleLength {
		return fmt.Errorf("%w: title must be at most %d characters", ErrInvalidMeeting, MaxTitleLength)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidMeeting)
	}
	if in.Description != nil && strings.TrimSpace(*in.Description) == "" {
		in.Description = nil
	}
	return nil
}

// Service implements the meeting lifecycle.
type Service struct {
	store     Store
	users     Users
	docs      Documents
	notifier  Notifier
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a meeting service. A non-positive retention means DefaultRetention.
// notifier may be nil.
func NewService(store Store, users Users, docs Documents, notifier Notifier, retention time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Service{
		store:     store,
		users:     users,
		docs:      docs,
		notifier:  notifier,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// Retention returns the purge window.
func (s *Service) Retention() time.Duration { return s.retention }

// Create stores a new, uncancelled meeting. doc is optional and is stored as a document linked to the meeting.
func (s *Service) Create(ctx context.Context, in Input, ownerID uuid.UUID, doc *files.Upload) (*models.Meeting, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, ErrOwnerNotFound
		}
		return nil, fmt.Errorf("load meeting owner: %w", err)
	}

	m := &models.Meeting{
		ID:          uuid.New(),
		Title:       in.Title,
		Description: in.Description,
		StartDate:   in.StartDate.UTC(),
		EndDate:     in.EndDate.UTC(),
		UserID:      ownerID,
	}
	stored, err := s.saveDocument(ctx, doc, m)
	if err != nil {
		return nil, err
	}
	if stored != "" {
		m.DocumentPath = &stored
	}

	if err := s.store.Create(ctx, m); err != nil {
		s.discardDocument(ctx, stored)
		return nil, err
	}
	s.logger.Info("meeting created", zap.String("meeting_id", m.ID.String()), zap.String("user_id", ownerID.String()))
	s.notify(ctx, models.NotificationMeetingCreated, owner, m)
	return m, nil
}

// Update overwrites the editable fields of the caller's meeting. A supplied doc replaces the
// current document. Cancellation only moves forward: IsCancelled false leaves a cancelled meeting cancelled.
func (s *Service) Update(ctx context.Context, id, actorID uuid.UUID, in Input, doc *files.Upload) (*models.Meeting, error) {
	m, err := s.owned(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	m.Title = in.Title
	m.Description = in.Description
	m.StartDate = in.StartDate.UTC()
	m.EndDate = in.EndDate.UTC()
	cancelled := false
	if in.IsCancelled {
		cancelled = m.Cancel(s.now())
	}

	stored, err := s.saveDocument(ctx, doc, m)
	if err != nil {
		return nil, err
	}
	var previous *string
	if stored != "" {
		previous = m.DocumentPath
		m.DocumentPath = &stored
	}

	if err := s.store.Update(ctx, m); err != nil {
		s.discardDocument(ctx, stored)
		return nil, err
	}
	if previous != nil && *previous != stored {
		s.discardDocument(ctx, *previous)
	}

	kind := models.NotificationMeetingUpdated
	if cancelled {
		kind = models.NotificationMeetingCancelled
	}
	s.logger.Info("meeting updated", zap.String("meeting_id", m.ID.String()), zap.Bool("cancelled", m.IsCancelled))
	s.notifyOwner(ctx, kind, m)
	return m, nil
}

// Cancel marks the caller's meeting cancelled. It reports false for an unknown meeting.
// Cancelling an already cancelled meeting keeps the original timestamp.
func (s *Service) Cancel(ctx context.Context, id, actorID uuid.UUID) (bool, error) {
	m, err := s.owned(ctx, id, actorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !m.Cancel(s.now()) {
		return true, nil
	}
	if err := s.store.Update(ctx, m); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	s.logger.Info("meeting cancelled", zap.String("meeting_id", m.ID.String()))
	s.notifyOwner(ctx, models.NotificationMeetingCancelled, m)
	return true, nil
}

// Get returns the caller's meeting. Meetings of other users read as not found.
func (s *Service) Get(ctx context.Context, id, userID uuid.UUID) (*models.Meeting, error) {
	m, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, ErrNotFound
	}
	return m, nil
}

// ListAll returns every meeting that is not cancelled.
func (s *Service) ListAll(ctx context.Context) ([]*models.Meeting, error) {
	return s.store.ListActive(ctx)
}

// ListByUser returns the user's meetings that are not cancelled.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Meeting, error) {
	return s.store.ListActiveByUser(ctx, userID)
}

// PurgeCandidates returns meetings the next purge would delete.
func (s *Service) PurgeCandidates(ctx context.Context) ([]*models.Meeting, error) {
	return s.store.ListCancelledBefore(ctx, s.cutoff())
}

// PurgeStaleCancelled hard-deletes every meeting cancelled at or before now minus the retention.
// Rows are deleted one at a time so each gets its own audit entry. Failures do not stop the
// run; they are joined into the returned error alongside the count of deleted meetings.
func (s *Service) PurgeStaleCancelled(ctx context.Context) (int, error) {
	cutoff := s.cutoff()
	stale, err := s.store.ListCancelledBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale meetings: %w", err)
	}

	var (
		purged int
		errs   []error
	)
	for _, m := range stale {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		deleted, err := s.store.DeleteWithAudit(ctx, m.ID, models.DeletedBySystem)
		if err != nil {
			s.logger.Error("purge meeting failed", zap.String("meeting_id", m.ID.String()), zap.Error(err))
			errs = append(errs, fmt.Errorf("meeting %s: %w", m.ID, err))
			continue
		}
		if deleted {
			purged++
		}
	}
	s.logger.Info("stale cancelled meetings purged",
		zap.Time("cutoff", cutoff),
		zap.Int("candidates", len(stale)),
		zap.Int("purged", purged),
	)
	return purged, errors.Join(errs...)
}

// Delete hard-deletes the caller's meeting and records who deleted it.
func (s *Service) Delete(ctx context.Context, id, actorID uuid.UUID) error {
	if _, err := s.owned(ctx, id, actorID); err != nil {
		return err
	}
	deleted, err := s.store.DeleteWithAudit(ctx, id, actorID.String())
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	s.logger.Info("meeting deleted", zap.String("meeting_id", id.String()), zap.String("user_id", actorID.String()))
	return nil
}

// DeleteLogs returns the audit entries of the user's deleted meetings, newest first.
func (s *Service) DeleteLogs(ctx context.Context, userID uuid.UUID) ([]*models.MeetingDeleteLog, error) {
	return s.store.ListDeleteLogs(ctx, userID)
}

func (s *Service) cutoff() time.Time {
	return s.now().UTC().Add(-s.retention)
}

func (s *Service) owned(ctx context.Context, id, actorID uuid.UUID) (*models.Meeting, error) {
	m, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.UserID != actorID {
		return nil, ErrForbidden
	}
	return m, nil
}

func (s *Service) saveDocument(ctx context.Context, doc *files.Upload, m *models.Meeting) (string, error) {
	if doc == nil {
		return "", nil
	}
	rec, err := s.docs.Save(ctx, doc, m.UserID, models.CategoryMeetingDocument, &m.ID)
	if err != nil {
		return "", fmt.Errorf("store meeting document: %w", err)
	}
	return rec.StoredFileName, nil
}

func (s *Service) discardDocument(ctx context.Context, stored string) {
	if stored == "" {
		return
	}
	if err := s.docs.RemoveByStoredName(ctx, stored); err != nil {
		s.logger.Warn("remove meeting document", zap.String("stored_name", stored), zap.Error(err))
	}
}

func (s *Service) notifyOwner(ctx context.Context, kind models.NotificationKind, m *models.Meeting) {
	if s.notifier == nil {
		return
	}
	owner, err := s.users.GetByID(ctx, m.UserID)
	if err != nil {
		s.logger.Warn("notification skipped, owner lookup failed", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		return
	}
	s.notify(ctx, kind, owner, m)
}

func (s *Service) notify(ctx context.Context, kind models.NotificationKind, owner *models.User, m *models.Meeting) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, notify.For(kind, owner, m)); err != nil {
		s.logger.Warn("meeting notification not queued",
			zap.String("meeting_id", m.ID.String()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}
