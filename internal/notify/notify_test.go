package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetingapp/backend/config"
	"github.com/meetingapp/backend/internal/models"
	"github.com/meetingapp/backend/pkg/queue"
)

func sampleMeeting() *models.Meeting {
	desc := "Quarterly <planning>"
	return &models.Meeting{
		ID:          uuid.New(),
		Title:       "Q3 planning",
		Description: &desc,
		StartDate:   time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC),
		UserID:      uuid.New(),
	}
}

func sampleUser() *models.User {
	return &models.User{ID: uuid.New(), FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
}

func TestRender(t *testing.T) {
	user, meeting := sampleUser(), sampleMeeting()

	msg, err := Render(For(models.NotificationMeetingCancelled, user, meeting))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Meeting cancelled: Q3 planning", msg.Subject)
	assert.Contains(t, msg.HTML, "Hello Ada Lovelace")
	assert.Contains(t, msg.HTML, "Quarterly &lt;planning&gt;")
	assert.Contains(t, msg.HTML, "01 Jul 2024 09:00 UTC")

	msg, err = Render(For(models.NotificationWelcome, user, nil))
	require.NoError(t, err)
	assert.Equal(t, "Welcome to Meeting Manager", msg.Subject)
	assert.NotContains(t, msg.HTML, "<table>")

	_, err = Render(For(models.NotificationMeetingUpdated, user, nil))
	assert.Error(t, err)

	_, err = Render(Notification{Kind: "reminder", Email: "a@example.com"})
	assert.Error(t, err)
}

func TestForCopiesMeeting(t *testing.T) {
	meeting := sampleMeeting()
	n := For(models.NotificationMeetingCreated, sampleUser(), meeting)
	meeting.Title = "changed"
	assert.Equal(t, "Q3 planning", n.Meeting.Title)
}

type recordingEnqueuer struct {
	payloads []any
	err      error
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, jobType queue.JobType, payload any) (*queue.Job, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.payloads = append(r.payloads, payload)
	return &queue.Job{ID: "job-1", Type: jobType}, nil
}

func TestQueueNotifier(t *testing.T) {
	enq := &recordingEnqueuer{}
	n := NewQueueNotifier(enq, nil)
	note := For(models.NotificationWelcome, sampleUser(), nil)

	require.NoError(t, n.Notify(context.Background(), note))
	require.Len(t, enq.payloads, 1)
	assert.Equal(t, note, enq.payloads[0])

	enq.err = errors.New("redis down")
	assert.ErrorContains(t, n.Notify(context.Background(), note), "redis down")
}

func TestSMTPMailerDisabled(t *testing.T) {
	m := NewSMTPMailer(config.EmailConfig{FromAddress: "noreply@example.com"}, nil)
	err := m.Send(context.Background(), Message{To: "a@example.com", Subject: "x"})
	assert.ErrorIs(t, err, ErrMailDisabled)
}

type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []Message
}

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type memoryLog struct {
	mu      sync.Mutex
	entries []*models.EmailLog
}

func (m *memoryLog) Create(_ context.Context, el *models.EmailLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, el)
	return nil
}

func notificationJob(t *testing.T, n Notification) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(n)
	require.NoError(t, err)
	return &queue.Job{ID: uuid.NewString(), Type: queue.JobTypeNotification, Payload: raw}
}

func TestProcessorProcess(t *testing.T) {
	user, meeting := sampleUser(), sampleMeeting()
	job := notificationJob(t, For(models.NotificationMeetingCreated, user, meeting))

	tests := []struct {
		name       string
		sendErr    error
		wantErr    bool
		wantStatus string
	}{
		{name: "sent", wantStatus: models.EmailLogStatusSent},
		{name: "smtp disabled", sendErr: ErrMailDisabled, wantStatus: models.EmailLogStatusSkipped},
		{name: "smtp failure", sendErr: errors.New("535 auth failed"), wantErr: true, wantStatus: models.EmailLogStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := &memoryLog{}
			p := NewProcessor(nil, &fakeSender{err: tt.sendErr}, logs, nil)

			err := p.Process(context.Background(), job)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, logs.entries, 1)
			entry := logs.entries[0]
			assert.Equal(t, tt.wantStatus, entry.Status)
			assert.Equal(t, user.ID, entry.UserID)
			require.NotNil(t, entry.MeetingID)
			assert.Equal(t, meeting.ID, *entry.MeetingID)
			assert.Equal(t, tt.wantStatus == models.EmailLogStatusSent, entry.SentAt != nil)
		})
	}
}

func TestProcessorRejectsBadJobs(t *testing.T) {
	p := NewProcessor(nil, &fakeSender{}, nil, nil)
	assert.ErrorIs(t, p.Process(context.Background(), &queue.Job{Type: "other"}), ErrUndeliverable)
	assert.ErrorIs(t, p.Process(context.Background(), &queue.Job{Type: queue.JobTypeNotification, Payload: []byte("{")}), ErrUndeliverable)
	missingMeeting := notificationJob(t, For(models.NotificationMeetingUpdated, sampleUser(), nil))
	assert.ErrorIs(t, p.Process(context.Background(), missingMeeting), ErrUndeliverable)

	failing := NewProcessor(nil, &fakeSender{err: errors.New("421 try later")}, nil, nil)
	err := failing.Process(context.Background(), notificationJob(t, For(models.NotificationWelcome, sampleUser(), nil)))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUndeliverable)
}

type scriptedSource struct {
	mu      sync.Mutex
	jobs    []*queue.Job
	retried []*queue.Job
	dead    []*queue.Job
	cancel  context.CancelFunc
}

func (s *scriptedSource) Dequeue(context.Context, time.Duration) (*queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		s.cancel()
		return nil, nil
	}
	job := s.jobs[0]
	s.jobs = s.jobs[1:]
	return job, nil
}

func (s *scriptedSource) Retry(_ context.Context, job *queue.Job) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.Attempt++
	s.retried = append(s.retried, job)
	return job.Attempt > queue.MaxRetries, nil
}

func (s *scriptedSource) DeadLetter(_ context.Context, job *queue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dead = append(s.dead, job)
	return nil
}

// sendFailsFor fails every message addressed to one recipient.
type sendFailsFor struct {
	fakeSender
	to string
}

func (f *sendFailsFor) Send(ctx context.Context, msg Message) error {
	if msg.To == f.to {
		return errors.New("450 mailbox busy")
	}
	return f.fakeSender.Send(ctx, msg)
}

func runUntilDrained(ctx context.Context, t *testing.T, p *Processor) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestProcessorRunRetriesSendFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	good := notificationJob(t, For(models.NotificationWelcome, sampleUser(), nil))
	busy := &models.User{ID: uuid.New(), FirstName: "Busy", Email: "busy@example.com"}
	flaky := notificationJob(t, For(models.NotificationWelcome, busy, nil))
	src := &scriptedSource{jobs: []*queue.Job{good, flaky}, cancel: cancel}
	sender := &sendFailsFor{to: "busy@example.com"}
	p := NewProcessor(src, sender, nil, nil)
	p.backoff = time.Millisecond

	runUntilDrained(ctx, t, p)

	assert.Len(t, sender.sent, 1)
	require.Len(t, src.retried, 1)
	assert.Equal(t, flaky.ID, src.retried[0].ID)
	assert.Equal(t, 1, src.retried[0].Attempt)
	assert.Empty(t, src.dead)
}

func TestProcessorRunDeadLettersUndeliverableJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	unknown := &queue.Job{ID: "unknown", Type: "unknown"}
	garbled := &queue.Job{ID: "garbled", Type: queue.JobTypeNotification, Payload: []byte("{")}
	src := &scriptedSource{jobs: []*queue.Job{unknown, garbled}, cancel: cancel}
	p := NewProcessor(src, &fakeSender{}, nil, nil)
	p.backoff = time.Millisecond

	runUntilDrained(ctx, t, p)

	assert.Empty(t, src.retried)
	require.Len(t, src.dead, 2)
	assert.Equal(t, "unknown", src.dead[0].ID)
	assert.Equal(t, "garbled", src.dead[1].ID)
	assert.Equal(t, 0, src.dead[0].Attempt)
}
