package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetingapp/backend/internal/models"
	"github.com/meetingapp/backend/pkg/queue"
)

// enqueueTimeout bounds the Redis round trip so a slow broker never stalls a request.
const enqueueTimeout = 2 * time.Second

// Notification is the job payload for one outbound email.
type Notification struct {
	Kind    models.NotificationKind `json:"kind"`
	UserID  uuid.UUID               `json:"user_id"`
	Email   string                  `json:"email"`
	Name    string                  `json:"name"`
	Meeting *models.Meeting         `json:"meeting,omitempty"`
}

// For builds a notification addressed to user. meeting may be nil.
func For(kind models.NotificationKind, user *models.User, meeting *models.Meeting) Notification {
	n := Notification{Kind: kind, UserID: user.ID, Email: user.Email, Name: user.FullName()}
	if meeting != nil {
		snapshot := *meeting
		n.Meeting = &snapshot
	}
	return n
}

// Enqueuer is the producer side of the job queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType queue.JobType, payload any) (*queue.Job, error)
}

// QueueNotifier hands notifications to the worker through the job queue.
type QueueNotifier struct {
	jobs   Enqueuer
	logger *zap.Logger
}

// NewQueueNotifier creates a notifier backed by the job queue.
func NewQueueNotifier(jobs Enqueuer, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueNotifier{jobs: jobs, logger: logger}
}

// Notify enqueues n. Delivery happens later in the worker.
func (q *QueueNotifier) Notify(ctx context.Context, n Notification) error {
	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	job, err := q.jobs.Enqueue(ctx, queue.JobTypeNotification, n)
	if err != nil {
		return fmt.Errorf("enqueue %s notification: %w", n.Kind, err)
	}
	q.logger.Debug("notification queued",
		zap.String("job_id", job.ID),
		zap.String("kind", string(n.Kind)),
		zap.String("user_id", n.UserID.String()),
	)
	return nil
}
