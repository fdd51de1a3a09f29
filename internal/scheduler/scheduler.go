// Package scheduler runs a small set of independent periodic tasks with
// explicit start/stop and per-task mutual exclusion: a tick is skipped
// when the previous run of the same task is still in flight.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vespl/caseflow-api/pkg/logger"
	"github.com/vespl/caseflow-api/pkg/metrics"
)

// Task is one periodic unit of work. Run errors are logged and the tick
// is skipped; the next tick retries naturally.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	running atomic.Bool
	lastRun atomic.Int64 // unix nanos, 0 = never
}

// Status is the external view of the scheduler.
type Status struct {
	Running         bool          `json:"running"`
	ActiveTaskCount int           `json:"active_task_count"`
	LastRun         *time.Time    `json:"last_run,omitempty"`
	Tasks           []*TaskStatus `json:"tasks"`
}

type TaskStatus struct {
	Name     string     `json:"name"`
	Interval string     `json:"interval"`
	Busy     bool       `json:"busy"`
	LastRun  *time.Time `json:"last_run,omitempty"`
}

type Scheduler struct {
	tasks   []*Task
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(log *logger.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		logger:  log,
		metrics: m,
	}
}

// Register adds a task. Tasks must be registered before Start.
func (s *Scheduler) Register(name string, interval time.Duration, run func(ctx context.Context) error) error {
	if interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("cannot register task %s while scheduler is running", name)
	}
	s.tasks = append(s.tasks, &Task{Name: name, Interval: interval, Run: run})
	return nil
}

// Start arms all registered tasks. Calling Start twice is an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(runCtx, t)
	}

	s.logger.Info("scheduler started", "tasks", len(s.tasks))
	return nil
}

// Stop disarms all tasks and waits for in-flight runs to finish. It is
// safe to call on a scheduler that was never started, and idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, t *Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, t)
		}
	}
}

// runOnce executes the task unless its previous run is still in flight.
func (s *Scheduler) runOnce(ctx context.Context, t *Task) {
	if !t.running.CompareAndSwap(false, true) {
		s.logger.Warn("skipping tick, previous run still in flight", "task", t.Name)
		if s.metrics != nil {
			s.metrics.TaskRuns.WithLabelValues(t.Name, "skipped").Inc()
		}
		return
	}
	defer t.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(fmt.Errorf("panic: %v", r), "task panicked", "task", t.Name)
			if s.metrics != nil {
				s.metrics.TaskRuns.WithLabelValues(t.Name, "panic").Inc()
			}
		}
	}()

	start := time.Now()
	err := t.Run(ctx)
	t.lastRun.Store(time.Now().UnixNano())

	status := "success"
	if err != nil {
		status = "error"
		s.logger.Error(err, "task run failed", "task", t.Name, "duration", time.Since(start).String())
	} else {
		s.logger.Debug("task run completed", "task", t.Name, "duration", time.Since(start).String())
	}
	if s.metrics != nil {
		s.metrics.TaskRuns.WithLabelValues(t.Name, status).Inc()
	}
}

// Status reports whether the scheduler is armed, how many tasks it owns
// and when any task last ran.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	st := Status{
		Running:         running,
		ActiveTaskCount: len(s.tasks),
	}

	var newest time.Time
	for _, t := range s.tasks {
		ts := &TaskStatus{
			Name:     t.Name,
			Interval: t.Interval.String(),
			Busy:     t.running.Load(),
		}
		if nanos := t.lastRun.Load(); nanos > 0 {
			last := time.Unix(0, nanos)
			ts.LastRun = &last
			if last.After(newest) {
				newest = last
			}
		}
		st.Tasks = append(st.Tasks, ts)
	}
	if !newest.IsZero() {
		st.LastRun = &newest
	}
	return st
}
