package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLists struct {
	lists   map[string][]string
	pushErr error
}

func newMemoryLists() *memoryLists {
	return &memoryLists{lists: make(map[string][]string)}
}

func (m *memoryLists) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	if m.pushErr != nil {
		return redis.NewIntResult(0, m.pushErr)
	}
	for _, v := range values {
		switch val := v.(type) {
		case []byte:
			m.lists[key] = append(m.lists[key], string(val))
		case string:
			m.lists[key] = append(m.lists[key], val)
		}
	}
	return redis.NewIntResult(int64(len(m.lists[key])), nil)
}

func (m *memoryLists) BLPop(_ context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	for _, key := range keys {
		if l := m.lists[key]; len(l) > 0 {
			m.lists[key] = l[1:]
			return redis.NewStringSliceResult([]string{key, l[0]}, nil)
		}
	}
	return redis.NewStringSliceResult(nil, redis.Nil)
}

type samplePayload struct {
	Email string `json:"email"`
}

func TestEnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	lists := newMemoryLists()
	q := NewQueue(lists, nil)

	job, err := q.Enqueue(ctx, JobTypeNotification, samplePayload{Email: "a@example.com"})
	require.NoError(t, err)
	require.Len(t, lists.lists[QueueNotifications], 1)

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, JobTypeNotification, got.Type)

	var p samplePayload
	require.NoError(t, json.Unmarshal(got.Payload, &p))
	assert.Equal(t, "a@example.com", p.Email)
}

func TestDequeueEmptyAndGarbage(t *testing.T) {
	ctx := context.Background()
	lists := newMemoryLists()
	q := NewQueue(lists, nil)

	job, err := q.Dequeue(ctx, time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)

	lists.lists[QueueNotifications] = []string{"{not json"}
	job, err = q.Dequeue(ctx, time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestRetryMovesToDLQAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	lists := newMemoryLists()
	q := NewQueue(lists, nil)
	job := &Job{ID: "j1", Type: JobTypeNotification}

	// the first attempt failed; every retry goes back on the queue
	for i := 1; i <= MaxRetries; i++ {
		dead, err := q.Retry(ctx, job)
		require.NoError(t, err)
		assert.False(t, dead, "retry %d", i)
		assert.Equal(t, i, job.Attempt)
	}
	assert.Len(t, lists.lists[QueueNotifications], MaxRetries)
	assert.Empty(t, lists.lists[QueueDLQ])

	dead, err := q.Retry(ctx, job)
	require.NoError(t, err)
	assert.True(t, dead)
	assert.Equal(t, MaxRetries+1, job.Attempt)
	assert.Len(t, lists.lists[QueueNotifications], MaxRetries)
	require.Len(t, lists.lists[QueueDLQ], 1)
}

func TestDeadLetterSkipsRetries(t *testing.T) {
	ctx := context.Background()
	lists := newMemoryLists()
	q := NewQueue(lists, nil)

	require.NoError(t, q.DeadLetter(ctx, &Job{ID: "broken", Type: "unknown"}))
	assert.Empty(t, lists.lists[QueueNotifications])
	require.Len(t, lists.lists[QueueDLQ], 1)

	var got Job
	require.NoError(t, json.Unmarshal([]byte(lists.lists[QueueDLQ][0]), &got))
	assert.Equal(t, "broken", got.ID)
	assert.Equal(t, 0, got.Attempt)

	lists.pushErr = assert.AnError
	assert.ErrorIs(t, q.DeadLetter(ctx, &Job{ID: "x"}), assert.AnError)
}

func TestEnqueuePushError(t *testing.T) {
	lists := newMemoryLists()
	lists.pushErr = assert.AnError
	q := NewQueue(lists, nil)

	_, err := q.Enqueue(context.Background(), JobTypeNotification, samplePayload{})
	assert.ErrorIs(t, err, assert.AnError)
}
