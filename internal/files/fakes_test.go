package files

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meetingapp/backend/internal/models"
	"github.com/meetingapp/backend/pkg/storage"
)

// memoryRepo mirrors the SQL repository over a map. meetingOwners stands in for the meetings table.
type memoryRepo struct {
	mu            sync.Mutex
	records       map[uuid.UUID]*models.FileRecord
	meetingOwners map[uuid.UUID]uuid.UUID
	createErr     error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		records:       make(map[uuid.UUID]*models.FileRecord),
		meetingOwners: make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *memoryRepo) Create(_ context.Context, rec *models.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.records {
		if existing.StoredFileName == rec.StoredFileName {
			return ErrDuplicateName
		}
	}
	rec.State = models.FileActive
	cp := *rec
	r.records[rec.ID] = &cp
	return nil
}

func (r *memoryRepo) active(id uuid.UUID) (*models.FileRecord, bool) {
	rec, ok := r.records[id]
	if !ok || rec.State != models.FileActive {
		return nil, false
	}
	return rec, true
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.active(id)
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *memoryRepo) GetByStoredName(_ context.Context, name string) (*models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.StoredFileName == name && rec.State == models.FileActive {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) TouchAccessed(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.active(id); ok {
		rec.LastAccessedAt = &at
	}
	return nil
}

func (r *memoryRepo) SoftDelete(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.active(id)
	if !ok {
		return false, nil
	}
	rec.State = models.FileSoftDeleted
	rec.DeletedAt = &at
	return true, nil
}

func (r *memoryRepo) ListByOwner(_ context.Context, ownerID uuid.UUID, category *models.FileCategory) ([]*models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.FileRecord
	for _, rec := range r.records {
		if rec.OwnerID != ownerID || rec.State != models.FileActive {
			continue
		}
		if category != nil && rec.Category != *category {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (r *memoryRepo) CanAccess(_ context.Context, fileID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.active(fileID)
	if !ok {
		return false, nil
	}
	if rec.OwnerID == userID {
		return true, nil
	}
	if rec.Category == models.CategoryMeetingDocument && rec.RelatedEntityID != nil {
		owner, ok := r.meetingOwners[*rec.RelatedEntityID]
		return ok && owner == userID, nil
	}
	return false, nil
}

func (r *memoryRepo) IsOwner(_ context.Context, fileID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.active(fileID)
	return ok && rec.OwnerID == userID, nil
}

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// brokenBlobs fails every write.
type brokenBlobs struct{ storage.BlobStore }

func (brokenBlobs) Put(context.Context, string, io.Reader, int64, string) error {
	return io.ErrShortWrite
}
