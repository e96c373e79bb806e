// Package scheduler drives transfer runs: cron cadence, whole-run retries with
// a fixed delay, and a lease so that two runs never overlap.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/animus-labs/bronze-loader/internal/transfer"
	cron "github.com/robfig/cron/v3"
)

// ErrLeaseHeld is returned by Trigger when another run holds the lease.
var ErrLeaseHeld = errors.New("another run is in progress")

type Runner interface {
	Run(ctx context.Context) (transfer.Report, error)
}

// Outcome is the result of the most recent Trigger that reached a runner or
// failed to take the lease.
type Outcome struct {
	RunID      string         `json:"run_id,omitempty"`
	State      transfer.State `json:"state"`
	Attempts   int            `json:"attempts"`
	Objects    int            `json:"objects"`
	Rows       int64          `json:"rows"`
	Error      string         `json:"error,omitempty"`
	FinishedAt time.Time      `json:"finished_at"`
}

type Scheduler struct {
	cfg    Config
	runner Runner
	lease  Lease
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time

	mu   sync.Mutex
	last *Outcome
}

func New(cfg Config, runner Runner, lease Lease, logger *slog.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if lease == nil {
		lease = &LocalLease{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		lease:  lease,
		logger: logger,
		sleep:  sleepContext,
		now:    time.Now,
	}, nil
}

// Trigger performs one scheduled run and retries the whole run up to Retries
// times on failure. Each attempt takes the lease and starts from a fresh
// listing. A held lease skips the run; failing to take it counts as a failed
// attempt.
func (s *Scheduler) Trigger(ctx context.Context) (transfer.Report, error) {
	var (
		report  transfer.Report
		lastErr error
		tried   int
	)
	attempts := s.cfg.Retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		var held bool
		report, held, lastErr = s.attempt(ctx)
		if held {
			s.logger.Warn("run skipped", "pipeline", s.cfg.Name, "reason", "lease held")
			return transfer.Report{}, ErrLeaseHeld
		}
		tried = attempt
		if lastErr == nil {
			s.logger.Info("run succeeded", "pipeline", s.cfg.Name, "run_id", report.RunID, "attempt", attempt, "objects", report.Objects, "rows", report.Rows)
			s.record(report, tried, nil)
			return report, nil
		}
		if ctx.Err() != nil || attempt == attempts {
			break
		}
		s.logger.Warn("run failed, retrying", "pipeline", s.cfg.Name, "run_id", report.RunID, "attempt", attempt, "delay", s.cfg.RetryDelay, "error", lastErr)
		if err := s.sleep(ctx, s.cfg.RetryDelay); err != nil {
			break
		}
	}
	s.logger.Error("run failed", "pipeline", s.cfg.Name, "run_id", report.RunID, "attempts", tried, "error", lastErr)
	s.record(report, tried, lastErr)
	return report, lastErr
}

func (s *Scheduler) record(report transfer.Report, attempts int, err error) {
	o := Outcome{
		RunID:      report.RunID,
		State:      report.State,
		Attempts:   attempts,
		Objects:    report.Objects,
		Rows:       report.Rows,
		FinishedAt: report.FinishedAt,
	}
	if err != nil {
		o.State = transfer.StateFailed
		o.Error = err.Error()
	}
	if o.FinishedAt.IsZero() {
		o.FinishedAt = s.now().UTC()
	}
	s.mu.Lock()
	s.last = &o
	s.mu.Unlock()
}

// LastRun returns the outcome of the most recent finished Trigger.
func (s *Scheduler) LastRun() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Outcome{}, false
	}
	return *s.last, true
}

func (s *Scheduler) attempt(ctx context.Context) (transfer.Report, bool, error) {
	release, ok, err := s.lease.TryAcquire(ctx)
	if err != nil {
		return transfer.Report{}, false, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		return transfer.Report{}, true, nil
	}
	defer release()
	report, err := s.runner.Run(ctx)
	return report, false, err
}

// tick is the cron job body.
func (s *Scheduler) tick(ctx context.Context) {
	report, err := s.Trigger(ctx)
	switch {
	case errors.Is(err, ErrLeaseHeld):
		s.logger.Info("tick skipped", "pipeline", s.cfg.Name)
	case err != nil:
		s.logger.Error("tick failed", "pipeline", s.cfg.Name, "run_id", report.RunID, "state", report.State, "error", err)
	default:
		s.logger.Debug("tick done", "pipeline", s.cfg.Name, "run_id", report.RunID)
	}
}

// Start registers the run on the configured cadence and blocks until ctx is
// done, then waits for an in-flight run to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	schedule, err := ParseSchedule(s.cfg.Spec())
	if err != nil {
		return err
	}
	logger := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(schedule, cron.FuncJob(func() { s.tick(ctx) }))

	s.logger.Info("scheduler started", "pipeline", s.cfg.Name, "schedule", s.cfg.Spec(), "retries", s.cfg.Retries, "retry_delay", s.cfg.RetryDelay)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped", "pipeline", s.cfg.Name)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
