// Package scheduler implements the Weather Background Scheduler: a
// bounded-concurrency priority queue of weather prefetch/analysis
// tasks, independent of request traffic.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cellarworks/cellar-intel/infrastructure/errors"
	"github.com/cellarworks/cellar-intel/infrastructure/logging"
	"github.com/cellarworks/cellar-intel/infrastructure/metrics"
	"github.com/cellarworks/cellar-intel/infrastructure/resilience"
)

// TaskType distinguishes prefetch from analysis tasks.
type TaskType string

const (
	TaskPrefetch TaskType = "prefetch"
	TaskAnalysis TaskType = "analysis"
)

// Task is one unit of scheduled work.
type Task struct {
	Type      TaskType
	Region    string
	Years     []int
	Priority  int // 1 (highest) .. 3 (lowest)
	Attempts  int
	NextRunAt time.Time
	enqueued  time.Time
	index     int
}

func dedupKey(t *Task) string {
	return fmt.Sprintf("%s|%s|%v", t.Type, t.Region, t.Years)
}

// Handler executes one task; a non-nil error triggers the retry policy.
type Handler func(ctx context.Context, task *Task) error

// Stats mirrors the spec-level scheduler statistics surface.
type Stats struct {
	TotalTasks     int64
	SuccessfulTasks int64
	FailedTasks    int64
	QueueSize      int
	IsRunning      bool
	IsPaused       bool
}

// Config bounds the scheduler's concurrency and retry behavior.
type Config struct {
	MaxConcurrentTasks int
	RetryAttempts      int
	InitialDelay       time.Duration
	BackoffFactor      float64
	TickInterval       time.Duration
}

// DefaultConfig returns sensible scheduler defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentTasks: 4,
		RetryAttempts:      3,
		InitialDelay:       2 * time.Second,
		BackoffFactor:      2.0,
		TickInterval:       500 * time.Millisecond,
	}
}

// Scheduler owns the in-memory priority queue and its worker pool.
type Scheduler struct {
	cfg     Config
	handler Handler
	logger  *logging.Logger

	mu      sync.Mutex
	queue   taskQueue
	seen    map[string]bool
	running bool
	paused  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	sem     chan struct{}

	totalTasks      int64
	successfulTasks int64
	failedTasks     int64
}

// New constructs a Scheduler. handler is invoked for every due task.
func New(cfg Config, handler Handler) *Scheduler {
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = 4
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 500 * time.Millisecond
	}
	return &Scheduler{
		cfg:     cfg,
		handler: handler,
		logger:  logging.NewFromEnv("weather-scheduler"),
		queue:   taskQueue{},
		seen:    make(map[string]bool),
		sem:     make(chan struct{}, cfg.MaxConcurrentTasks),
	}
}

// Enqueue adds a task, deduplicated by (Type, Region, Years). A
// duplicate of an already-queued task is a no-op.
func (s *Scheduler) Enqueue(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey(t)
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	t.enqueued = time.Now()
	if t.NextRunAt.IsZero() {
		t.NextRunAt = t.enqueued
	}
	heap.Push(&s.queue, t)
	s.totalTasks++
}

// Start begins the worker loop. Calling Start on an already-running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.paused = false
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.tick(runCtx)
			}
		}
	}()
	s.logger.Info("weather scheduler started")
}

// Stop halts the worker loop and waits for in-flight tasks to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.logger.Info("weather scheduler stopped")
}

// Pause lets in-flight tasks finish, then idles until Resume.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume clears a prior Pause.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// Destroy drains the queue and stops the scheduler, releasing all
// pending tasks without executing them.
func (s *Scheduler) Destroy() {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = taskQueue{}
	s.seen = make(map[string]bool)
}

// Stats reports current scheduler statistics.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		TotalTasks:      s.totalTasks,
		SuccessfulTasks: s.successfulTasks,
		FailedTasks:     s.failedTasks,
		QueueSize:       s.queue.Len(),
		IsRunning:       s.running,
		IsPaused:        s.paused,
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	var due []*Task
	for s.queue.Len() > 0 {
		next := s.queue[0]
		if next.NextRunAt.After(now) {
			break
		}
		due = append(due, heap.Pop(&s.queue).(*Task))
		if len(due) >= s.cfg.MaxConcurrentTasks {
			break
		}
	}
	s.mu.Unlock()

	for _, task := range due {
		task := task
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			s.runTask(ctx, task)
		}()
	}
}

func (s *Scheduler) runTask(ctx context.Context, task *Task) {
	retryCfg := resilience.RetryConfig{
		MaxAttempts:  1,
		InitialDelay: s.cfg.InitialDelay,
		MaxDelay:     time.Minute,
		Multiplier:   s.cfg.BackoffFactor,
	}
	taskCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	err := resilience.Retry(taskCtx, retryCfg, func() error {
		return s.handler(taskCtx, task)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.successfulTasks++
		metrics.Global().RecordSchedulerJob("weather-scheduler", string(task.Type), "success")
		delete(s.seen, dedupKey(task))
		return
	}

	task.Attempts++
	if task.Attempts >= s.cfg.RetryAttempts {
		s.failedTasks++
		metrics.Global().RecordSchedulerJob("weather-scheduler", string(task.Type), "failed")
		delete(s.seen, dedupKey(task))
		s.logger.WithError(errors.SchedulerJobFailed(string(task.Type), err)).Warn("scheduler task exhausted retries")
		return
	}

	delay := time.Duration(float64(s.cfg.InitialDelay) * pow(s.cfg.BackoffFactor, float64(task.Attempts)))
	task.NextRunAt = time.Now().Add(delay)
	heap.Push(&s.queue, task)
	metrics.Global().RecordSchedulerJob("weather-scheduler", string(task.Type), "retrying")
}

func pow(base, exp float64) float64 {
	result := 1.0
	n := int(exp)
	for i := 0; i < n; i++ {
		result *= base
	}
	return result
}

// taskQueue implements container/heap.Interface: lowest Priority value
// first, ties broken by enqueue time (FIFO).
type taskQueue []*Task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].Priority != q[j].Priority {
		return q[i].Priority < q[j].Priority
	}
	return q[i].enqueued.Before(q[j].enqueued)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}

func (q *taskQueue) Push(x any) {
	t := x.(*Task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
