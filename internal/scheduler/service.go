// Package scheduler decides, once per wall-clock second, which scheduled
// tasks are due and runs each in its own goroutine.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ada/internal/clock"
	"ada/internal/domain"
	"ada/internal/notify"
	"ada/internal/worker"
)

const (
	defaultInterval   = time.Second
	defaultMaxCatchUp = 5 * time.Minute
)

type Config struct {
	// Interval between ticks. Matching always happens per whole second, so
	// values above one second only delay evaluation, they never skip it.
	Interval time.Duration
	// Location is the device time zone frequencies are matched in.
	Location *time.Location
	// TaskTimeout bounds one whole execution, delivery included.
	TaskTimeout time.Duration
	// MaxCatchUp bounds how far back a late tick evaluates missed seconds.
	MaxCatchUp time.Duration
	// Concurrency caps simultaneous executions; zero means unbounded.
	Concurrency int
}

// TaskSource lists the tasks eligible for matching.
type TaskSource interface {
	ListScheduledTasks(ctx context.Context) ([]domain.ScheduledTask, error)
}

// StatusDisplay is told how many executions are in flight whenever the
// number changes.
type StatusDisplay interface {
	TasksRunning(n int)
}

type Service struct {
	cfg    Config
	source TaskSource
	runner *Runner
	pool   *worker.Pool
	clock  clock.Clock
	logger zerolog.Logger

	mu   sync.Mutex
	last time.Time // last whole second evaluated

	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewService(cfg Config, source TaskSource, runner *Runner, clk clock.Clock, display StatusDisplay) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxCatchUp <= 0 {
		cfg.MaxCatchUp = defaultMaxCatchUp
	}
	if clk == nil {
		clk = clock.Real{}
	}
	pool := worker.NewPool(cfg.Concurrency, cfg.TaskTimeout)
	if display != nil {
		pool.OnChange(display.TasksRunning)
	}
	return &Service{
		cfg:    cfg,
		source: source,
		runner: runner,
		pool:   pool,
		clock:  clk,
		logger: log.Logger.With().Str("component", "scheduler").Logger(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (s *Service) WithLogger(l zerolog.Logger) *Service {
	s.logger = l.With().Str("component", "scheduler").Logger()
	return s
}

// Start runs the tick loop until ctx is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info().
		Dur("interval", s.cfg.Interval).
		Str("timezone", s.cfg.Location.String()).
		Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.advance(ctx, s.clock.Now())
		}
	}
}

// Stop ends the tick loop and waits for running executions until ctx expires.
func (s *Service) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.started.Load() {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.pool.Shutdown(ctx)
}

// Tick dispatches every task matching instant and returns without waiting
// for them.
func (s *Service) Tick(ctx context.Context, instant time.Time) *worker.Batch {
	tasks, err := s.source.ListScheduledTasks(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list scheduled tasks")
		return s.pool.Submit(ctx)
	}
	return s.pool.Submit(ctx, s.due(tasks, instant.In(s.cfg.Location))...)
}

// advance evaluates every whole second in (last, now] that has not been
// seen yet, reading the task list once.
func (s *Service) advance(ctx context.Context, now time.Time) *worker.Batch {
	instants := s.pending(now)
	if len(instants) == 0 {
		return s.pool.Submit(ctx)
	}
	tasks, err := s.source.ListScheduledTasks(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list scheduled tasks")
		return s.pool.Submit(ctx)
	}
	var jobs []worker.Job
	for _, instant := range instants {
		jobs = append(jobs, s.due(tasks, instant.In(s.cfg.Location))...)
	}
	return s.pool.Submit(ctx, jobs...)
}

func (s *Service) pending(now time.Time) []time.Time {
	now = now.Truncate(time.Second)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last.IsZero() {
		s.last = now.Add(-time.Second)
	}
	if !now.After(s.last) {
		if now.Before(s.last) {
			s.logger.Warn().Time("now", now).Time("last", s.last).Msg("clock moved backwards, waiting to catch up")
		}
		return nil
	}

	from := s.last.Add(time.Second)
	if earliest := now.Add(-s.cfg.MaxCatchUp); from.Before(earliest) {
		s.logger.Warn().
			Time("from", from).
			Time("resume", earliest).
			Msg("scheduler fell behind, skipping missed seconds")
		from = earliest
	}

	instants := make([]time.Time, 0, int(now.Sub(from)/time.Second)+1)
	for t := from; !t.After(now); t = t.Add(time.Second) {
		instants = append(instants, t)
	}
	s.last = now
	return instants
}

func (s *Service) due(tasks []domain.ScheduledTask, instant time.Time) []worker.Job {
	var jobs []worker.Job
	for _, task := range tasks {
		if !task.Matches(instant) {
			continue
		}
		s.logger.Debug().
			Str("task_id", task.ID).
			Str("workflow", task.WorkflowName).
			Time("at", instant).
			Msg("task due")
		jobs = append(jobs, worker.Job{
			Name: task.ID,
			Run: func(ctx context.Context) error {
				_, err := s.runner.Trigger(ctx, task, notify.TriggerScheduled, instant)
				return err
			},
		})
	}
	return jobs
}
