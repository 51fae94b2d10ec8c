package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/meetingapp/backend/internal/models"
	"github.com/meetingapp/backend/pkg/queue"
)

// ErrUndeliverable marks jobs that can never succeed: unknown type, bad payload, or
// a notification that cannot be rendered. Run dead-letters them without retrying.
var ErrUndeliverable = errors.New("undeliverable notification job")

// JobSource is the consumer side of the job queue.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (bool, error)
	DeadLetter(ctx context.Context, job *queue.Job) error
}

// DeliveryLog records delivery attempts.
type DeliveryLog interface {
	Create(ctx context.Context, el *models.EmailLog) error
}

// Processor renders and sends queued notifications.
type Processor struct {
	jobs    JobSource
	mailer  Sender
	logs    DeliveryLog
	backoff time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewProcessor creates a notification processor.
func NewProcessor(jobs JobSource, mailer Sender, logs DeliveryLog, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		jobs:    jobs,
		mailer:  mailer,
		logs:    logs,
		backoff: queue.RetryBackoff,
		now:     time.Now,
		logger:  logger,
	}
}

// Process delivers one job. A disabled mailer counts as handled.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeNotification {
		return fmt.Errorf("%w: unknown job type %q", ErrUndeliverable, job.Type)
	}
	var n Notification
	if err := json.Unmarshal(job.Payload, &n); err != nil {
		return fmt.Errorf("%w: unmarshal payload: %v", ErrUndeliverable, err)
	}
	msg, err := Render(n)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUndeliverable, err)
	}

	entry := &models.EmailLog{
		JobID:          job.ID,
		UserID:         n.UserID,
		Kind:           n.Kind,
		RecipientEmail: n.Email,
		Subject:        msg.Subject,
		Attempt:        job.Attempt,
	}
	if n.Meeting != nil {
		id := n.Meeting.ID
		entry.MeetingID = &id
	}

	sendErr := p.mailer.Send(ctx, msg)
	switch {
	case errors.Is(sendErr, ErrMailDisabled):
		entry.Status = models.EmailLogStatusSkipped
	case sendErr != nil:
		entry.Status = models.EmailLogStatusFailed
		entry.ErrorMessage = sendErr.Error()
	default:
		entry.Status = models.EmailLogStatusSent
		sentAt := p.now().UTC()
		entry.SentAt = &sentAt
	}
	p.record(ctx, entry)

	if entry.Status == models.EmailLogStatusFailed {
		return fmt.Errorf("send %s email: %w", n.Kind, sendErr)
	}
	p.logger.Info("notification handled",
		zap.String("job_id", job.ID),
		zap.String("kind", string(n.Kind)),
		zap.String("status", entry.Status),
	)
	return nil
}

func (p *Processor) record(ctx context.Context, entry *models.EmailLog) {
	if p.logs == nil {
		return
	}
	if err := p.logs.Create(ctx, entry); err != nil {
		p.logger.Warn("write email log failed", zap.String("job_id", entry.JobID), zap.Error(err))
	}
}

// Run consumes jobs until ctx is cancelled. Failed sends are retried and end up in the DLQ;
// undeliverable jobs go to the DLQ directly.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, err := p.jobs.Dequeue(ctx, queue.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if errors.Is(err, ErrUndeliverable) {
				if dlErr := p.jobs.DeadLetter(ctx, job); dlErr != nil {
					p.logger.Error("dead-letter failed", zap.String("job_id", job.ID), zap.Error(dlErr))
				}
				continue
			}
			dead, reErr := p.jobs.Retry(ctx, job)
			if reErr != nil {
				p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
			} else if dead {
				p.logger.Warn("notification discarded", zap.String("job_id", job.ID))
			}
			p.sleep(ctx)
		}
	}
}

func (p *Processor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
