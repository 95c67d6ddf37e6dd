package training

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionlab/pkg/models"
)

func TestManagerSinglePollerPerJob(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []response{status(models.StatusTraining, 5)}}
	m := NewManager(NewPoller(fetcher, testOptions()))
	defer m.StopAll()

	first, started := m.Watch(context.Background(), "job-a")
	require.True(t, started)

	second, started := m.Watch(context.Background(), "job-a")
	assert.False(t, started)
	assert.Same(t, first, second)

	other, started := m.Watch(context.Background(), "job-b")
	assert.True(t, started)
	assert.NotSame(t, first, other)

	assert.Equal(t, []string{"job-a", "job-b"}, m.Active())
}

func TestManagerRestartsFinishedJob(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []response{status(models.StatusCompleted, 100)}}
	m := NewManager(NewPoller(fetcher, testOptions()))

	first, _ := m.Watch(context.Background(), "job")
	waitDone(t, first)

	assert.Eventually(t, func() bool { return len(m.Active()) == 0 }, time.Second, 5*time.Millisecond)

	second, started := m.Watch(context.Background(), "job")
	assert.True(t, started)
	assert.NotSame(t, first, second)
	waitDone(t, second)
}

func TestManagerStop(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []response{status(models.StatusTraining, 5)}}
	m := NewManager(NewPoller(fetcher, testOptions()))

	h, _ := m.Watch(context.Background(), "job")
	assert.True(t, m.Stop("job"))
	assert.ErrorIs(t, h.Err(), ErrStopped)
	assert.False(t, m.Stop("unknown"))

	assert.Eventually(t, func() bool { return len(m.Active()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestManagerStopAll(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []response{status(models.StatusTraining, 5)}}
	m := NewManager(NewPoller(fetcher, testOptions()))

	a, _ := m.Watch(context.Background(), "a")
	b, _ := m.Watch(context.Background(), "b")
	m.StopAll()

	for _, h := range []*Handle{a, b} {
		select {
		case <-h.Done():
		default:
			t.Fatalf("handle %s still running after StopAll", h.JobID())
		}
	}
}
