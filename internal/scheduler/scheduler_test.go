package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MaxConcurrentTasks: 4,
		RetryAttempts:      3,
		InitialDelay:       5 * time.Millisecond,
		BackoffFactor:      2.0,
		TickInterval:       10 * time.Millisecond,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestEnqueueDeduplicatesSameTask(t *testing.T) {
	s := New(testConfig(), func(ctx context.Context, task *Task) error { return nil })

	s.Enqueue(&Task{Type: TaskPrefetch, Region: "napa", Years: []int{2020}})
	s.Enqueue(&Task{Type: TaskPrefetch, Region: "napa", Years: []int{2020}})

	assert.Equal(t, int64(1), s.Stats().TotalTasks)
}

func TestSuccessfulTaskRunsAndIncrementsSuccessCounter(t *testing.T) {
	var mu sync.Mutex
	var ran bool

	s := New(testConfig(), func(ctx context.Context, task *Task) error {
		mu.Lock()
		ran = true
		mu.Unlock()
		return nil
	})

	s.Enqueue(&Task{Type: TaskPrefetch, Region: "napa", Years: []int{2020}})
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ran
	})
	waitFor(t, 2*time.Second, func() bool { return s.Stats().SuccessfulTasks == 1 })
}

func TestFailingTaskRetriesThenCountsAsFailed(t *testing.T) {
	cfg := testConfig()
	cfg.RetryAttempts = 2

	s := New(cfg, func(ctx context.Context, task *Task) error {
		return assert.AnError
	})

	s.Enqueue(&Task{Type: TaskAnalysis, Region: "sonoma", Years: []int{2019}})
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, 3*time.Second, func() bool { return s.Stats().FailedTasks == 1 })
}

func TestPauseStopsProcessingUntilResume(t *testing.T) {
	var mu sync.Mutex
	var runs int

	s := New(testConfig(), func(ctx context.Context, task *Task) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	})

	s.Pause()
	s.Enqueue(&Task{Type: TaskPrefetch, Region: "napa", Years: []int{2022}})
	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 0, runs, "paused scheduler must not run due tasks")
	mu.Unlock()

	s.Resume()
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs == 1
	})
}

func TestDestroyClearsQueueWithoutRunningTasks(t *testing.T) {
	var mu sync.Mutex
	var runs int

	s := New(testConfig(), func(ctx context.Context, task *Task) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	})

	s.Pause()
	s.Enqueue(&Task{Type: TaskPrefetch, Region: "napa", Years: []int{2022}})
	s.Destroy()

	assert.Equal(t, 0, s.Stats().QueueSize)
	mu.Lock()
	assert.Equal(t, 0, runs)
	mu.Unlock()
}

func TestStartIsIdempotent(t *testing.T) {
	s := New(testConfig(), func(ctx context.Context, task *Task) error { return nil })
	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx)
	defer s.Stop()

	require.True(t, s.Stats().IsRunning)
}

func TestQueueOrdersByPriorityThenFIFO(t *testing.T) {
	q := taskQueue{}
	now := time.Now()
	low := &Task{Priority: 3, enqueued: now}
	high := &Task{Priority: 1, enqueued: now.Add(time.Millisecond)}
	mid := &Task{Priority: 2, enqueued: now}
	tie := &Task{Priority: 2, enqueued: now.Add(2 * time.Millisecond)}

	q = append(q, low, high, mid, tie)
	assert.True(t, q.Less(1, 0), "higher-priority (lower number) task must sort before a lower-priority one")
	assert.True(t, q.Less(2, 0), "priority 2 must sort before priority 3")
	assert.True(t, q.Less(2, 3), "equal priority must sort by enqueue time")
}
