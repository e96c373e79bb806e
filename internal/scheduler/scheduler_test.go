package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/animus-labs/bronze-loader/internal/transfer"
)

type stubRunner struct {
	errs  []error
	calls int
}

func (r *stubRunner) Run(ctx context.Context) (transfer.Report, error) {
	r.calls++
	var err error
	if r.calls <= len(r.errs) {
		err = r.errs[r.calls-1]
	}
	state := transfer.StateLoaded
	if err != nil {
		state = transfer.StateFailed
	}
	return transfer.Report{RunID: "run", State: state}, err
}

type recordingSleep struct {
	delays []time.Duration
	err    error
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return s.err
}

func newTestScheduler(t *testing.T, cfg Config, runner Runner, lease Lease) (*Scheduler, *recordingSleep) {
	t.Helper()
	s, err := New(cfg, runner, lease, nil)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	rec := &recordingSleep{}
	s.sleep = rec.sleep
	return s, rec
}

func TestTriggerSucceedsFirstAttempt(t *testing.T) {
	runner := &stubRunner{}
	s, rec := newTestScheduler(t, DefaultConfig(), runner, nil)

	report, err := s.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger() err=%v", err)
	}
	if report.State != transfer.StateLoaded {
		t.Fatalf("State=%q, want loaded", report.State)
	}
	if runner.calls != 1 || len(rec.delays) != 0 {
		t.Fatalf("calls=%d delays=%v", runner.calls, rec.delays)
	}
}

func TestTriggerRetriesWholeRunWithDelay(t *testing.T) {
	runner := &stubRunner{errs: []error{errors.New("download failed")}}
	cfg := DefaultConfig()
	cfg.Retries = 2
	cfg.RetryDelay = 5 * time.Minute
	s, rec := newTestScheduler(t, cfg, runner, nil)

	if _, err := s.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger() err=%v", err)
	}
	if runner.calls != 2 {
		t.Fatalf("calls=%d, want 2", runner.calls)
	}
	if len(rec.delays) != 1 || rec.delays[0] != 5*time.Minute {
		t.Fatalf("delays=%v, want [5m]", rec.delays)
	}
}

func TestTriggerGivesUpAfterRetries(t *testing.T) {
	boom := errors.New("ingest failed")
	runner := &stubRunner{errs: []error{boom, boom, boom}}
	cfg := DefaultConfig()
	cfg.Retries = 1
	s, rec := newTestScheduler(t, cfg, runner, nil)

	_, err := s.Trigger(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Trigger() err=%v, want %v", err, boom)
	}
	if runner.calls != 2 {
		t.Fatalf("calls=%d, want 2", runner.calls)
	}
	if len(rec.delays) != 1 {
		t.Fatalf("delays=%v, want one", rec.delays)
	}
}

func TestTriggerStopsRetryingWhenSleepInterrupted(t *testing.T) {
	runner := &stubRunner{errs: []error{errors.New("x"), errors.New("y")}}
	cfg := DefaultConfig()
	cfg.Retries = 3
	s, rec := newTestScheduler(t, cfg, runner, nil)
	rec.err = context.Canceled

	if _, err := s.Trigger(context.Background()); err == nil {
		t.Fatalf("Trigger() expected error")
	}
	if runner.calls != 1 {
		t.Fatalf("calls=%d, want 1", runner.calls)
	}
}

func TestTriggerSkipsWhenLeaseHeld(t *testing.T) {
	lease := &LocalLease{}
	release, ok, err := lease.TryAcquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("TryAcquire() ok=%v err=%v", ok, err)
	}
	defer release()

	runner := &stubRunner{}
	s, _ := newTestScheduler(t, DefaultConfig(), runner, lease)

	if _, err := s.Trigger(context.Background()); !errors.Is(err, ErrLeaseHeld) {
		t.Fatalf("Trigger() err=%v, want ErrLeaseHeld", err)
	}
	if runner.calls != 0 {
		t.Fatalf("calls=%d, want 0", runner.calls)
	}
}

func TestTriggerReleasesLease(t *testing.T) {
	lease := &LocalLease{}
	s, _ := newTestScheduler(t, DefaultConfig(), &stubRunner{}, lease)

	if _, err := s.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger() err=%v", err)
	}
	release, ok, err := lease.TryAcquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("lease not released: ok=%v err=%v", ok, err)
	}
	release()
}

func TestNewRequiresRunner(t *testing.T) {
	if _, err := New(DefaultConfig(), nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil runner")
	}
}

func TestStartReturnsOnCancel(t *testing.T) {
	s, _ := newTestScheduler(t, DefaultConfig(), &stubRunner{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() err=%v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Start() did not return after cancel")
	}
}

func TestTriggerRetriesLeaseFailure(t *testing.T) {
	lease := &stubLease{errs: []error{errors.New("lease connect: dial tcp: connection refused")}}
	runner := &stubRunner{}
	cfg := DefaultConfig()
	cfg.Retries = 1
	cfg.RetryDelay = 5 * time.Minute
	s, rec := newTestScheduler(t, cfg, runner, lease)

	report, err := s.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger() err=%v", err)
	}
	if report.State != transfer.StateLoaded {
		t.Fatalf("State=%q, want loaded", report.State)
	}
	if lease.calls != 2 || runner.calls != 1 || lease.released != 1 {
		t.Fatalf("lease calls=%d released=%d runner calls=%d", lease.calls, lease.released, runner.calls)
	}
	if len(rec.delays) != 1 || rec.delays[0] != 5*time.Minute {
		t.Fatalf("delays=%v, want [5m]", rec.delays)
	}
}

func TestTriggerGivesUpWhenLeaseKeepsFailing(t *testing.T) {
	boom := errors.New("connection refused")
	lease := &stubLease{errs: []error{boom, boom}}
	runner := &stubRunner{}
	cfg := DefaultConfig()
	cfg.Retries = 1
	s, rec := newTestScheduler(t, cfg, runner, lease)

	if _, err := s.Trigger(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Trigger() err=%v, want %v", err, boom)
	}
	if runner.calls != 0 {
		t.Fatalf("runner calls=%d, want 0", runner.calls)
	}
	if len(rec.delays) != 1 {
		t.Fatalf("delays=%v, want one", rec.delays)
	}
}

func TestTickLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	cfg := DefaultConfig()
	cfg.Retries = 0
	s, err := New(cfg, &stubRunner{errs: []error{errors.New("ingest failed")}}, nil, logger)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	s.tick(context.Background())

	out := buf.String()
	if !strings.Contains(out, `"msg":"tick failed"`) || !strings.Contains(out, "ingest failed") {
		t.Fatalf("expected tick failure log, got %s", out)
	}
}

func TestLastRunRecordsOutcome(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retries = 1
	s, _ := newTestScheduler(t, cfg, &stubRunner{errs: []error{errors.New("a"), errors.New("upload refused")}}, nil)
	if _, ok := s.LastRun(); ok {
		t.Fatalf("LastRun() before any trigger should be empty")
	}

	_, _ = s.Trigger(context.Background())

	got, ok := s.LastRun()
	if !ok {
		t.Fatalf("LastRun() missing after trigger")
	}
	if got.State != transfer.StateFailed || got.Attempts != 2 || got.Error != "upload refused" || got.FinishedAt.IsZero() {
		t.Fatalf("LastRun()=%+v", got)
	}
}
