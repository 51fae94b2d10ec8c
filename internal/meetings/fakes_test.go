package meetings

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meetingapp/backend/internal/files"
	"github.com/meetingapp/backend/internal/models"
	"github.com/meetingapp/backend/internal/notify"
)

// memoryStore mirrors Repository, including the audit insert made with every delete.
type memoryStore struct {
	mu        sync.Mutex
	meetings  map[uuid.UUID]*models.Meeting
	users     map[uuid.UUID]*models.User
	logs      []*models.MeetingDeleteLog
	deleteErr map[uuid.UUID]error
	now       func() time.Time
}

func newMemoryStore(now func() time.Time) *memoryStore {
	return &memoryStore{
		meetings:  make(map[uuid.UUID]*models.Meeting),
		users:     make(map[uuid.UUID]*models.User),
		deleteErr: make(map[uuid.UUID]error),
		now:       now,
	}
}

func (s *memoryStore) Create(_ context.Context, m *models.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.CreatedAt = s.now()
	cp := *m
	s.meetings[m.ID] = &cp
	return nil
}

func (s *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memoryStore) Update(_ context.Context, m *models.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[m.ID]; !ok {
		return ErrNotFound
	}
	cp := *m
	s.meetings[m.ID] = &cp
	return nil
}

func (s *memoryStore) filter(keep func(*models.Meeting) bool) []*models.Meeting {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Meeting, 0)
	for _, m := range s.meetings {
		if keep(m) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

func (s *memoryStore) ListActive(context.Context) ([]*models.Meeting, error) {
	return s.filter(func(m *models.Meeting) bool { return !m.IsCancelled }), nil
}

func (s *memoryStore) ListActiveByUser(_ context.Context, userID uuid.UUID) ([]*models.Meeting, error) {
	return s.filter(func(m *models.Meeting) bool { return !m.IsCancelled && m.UserID == userID }), nil
}

func (s *memoryStore) ListCancelledBefore(_ context.Context, cutoff time.Time) ([]*models.Meeting, error) {
	return s.filter(func(m *models.Meeting) bool { return m.StaleSince(cutoff) }), nil
}

func (s *memoryStore) DeleteWithAudit(_ context.Context, id uuid.UUID, deletedBy string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteErr[id]; err != nil {
		return false, err
	}
	m, ok := s.meetings[id]
	if !ok {
		return false, nil
	}
	name, email := models.UnknownUserName, models.UnknownUserEmail
	if u, ok := s.users[m.UserID]; ok {
		name, email = u.FullName(), u.Email
	}
	s.logs = append(s.logs, &models.MeetingDeleteLog{
		ID:                int64(len(s.logs) + 1),
		MeetingID:         m.ID,
		Title:             m.Title,
		Description:       m.Description,
		StartDate:         m.StartDate,
		EndDate:           m.EndDate,
		DocumentPath:      m.DocumentPath,
		UserID:            m.UserID,
		UserName:          name,
		UserEmail:         email,
		DeletedAt:         s.now(),
		DeletedBy:         deletedBy,
		DeleteReason:      models.DeleteReasonFor(m.IsCancelled),
		WasCancelled:      m.IsCancelled,
		CancelledAt:       m.CancelledAt,
		OriginalCreatedAt: m.CreatedAt,
	})
	delete(s.meetings, id)
	return true, nil
}

func (s *memoryStore) ListDeleteLogs(_ context.Context, userID uuid.UUID) ([]*models.MeetingDeleteLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.MeetingDeleteLog, 0)
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].UserID == userID {
			out = append(out, s.logs[i])
		}
	}
	return out, nil
}

// GetByID makes memoryStore usable as the Users dependency too.
type storeUsers struct{ *memoryStore }

func (u storeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

type fakeDocs struct {
	mu      sync.Mutex
	saved   []*models.FileRecord
	removed []string
	saveErr error
	seq     int
}

func (d *fakeDocs) Save(_ context.Context, u *files.Upload, ownerID uuid.UUID, category models.FileCategory, relatedID *uuid.UUID) (*models.FileRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.saveErr != nil {
		return nil, d.saveErr
	}
	d.seq++
	rec := &models.FileRecord{
		ID:               uuid.New(),
		OriginalFileName: u.Name,
		StoredFileName:   "20240101000000_doc" + string(rune('a'+d.seq)) + u.Extension(),
		OwnerID:          ownerID,
		Category:         category,
		RelatedEntityID:  relatedID,
	}
	d.saved = append(d.saved, rec)
	return rec, nil
}

func (d *fakeDocs) RemoveByStoredName(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removed = append(d.removed, name)
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, note notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, note)
	return nil
}

func (n *recordingNotifier) kinds() []models.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.NotificationKind, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

func textUpload(name string) *files.Upload {
	body := []byte("agenda")
	return &files.Upload{Name: name, ContentType: "text/plain", Size: int64(len(body)), Content: bytes.NewReader(body)}
}

var errDatabaseDown = errors.New("database down")
