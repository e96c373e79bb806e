package transfer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateFetched  State = "fetched"
	StateLoading  State = "loading"
	StateLoaded   State = "loaded"
	StateFailed   State = "failed"
)

// Report describes the outcome of one Run.
type Report struct {
	RunID      string
	State      State
	Objects    int
	Rows       int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Pipeline runs Fetch then Load for a single bucket.
type Pipeline struct {
	fetcher *Fetcher
	loader  *Loader
	bucket  string
	logger  *slog.Logger
	now     func() time.Time
}

func NewPipeline(fetcher *Fetcher, loader *Loader, bucket string, logger *slog.Logger) (*Pipeline, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if loader == nil {
		return nil, errors.New("loader is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		fetcher: fetcher,
		loader:  loader,
		bucket:  bucket,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Run executes one full run. The Loader only ever sees the Manifest produced
// by this run's Fetch and is skipped when Fetch fails.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	report := Report{State: StateIdle, StartedAt: p.now().UTC()}

	p.transition(&report, StateFetching)
	m, err := p.fetcher.Fetch(ctx, p.bucket)
	if err != nil {
		return p.fail(report, err)
	}
	report.RunID = m.RunID
	report.Objects = m.Len()
	p.transition(&report, StateFetched)

	p.transition(&report, StateLoading)
	result, err := p.loader.Load(ctx, m)
	if rerr := m.Release(); rerr != nil {
		p.logger.Warn("release local staging", "run_id", m.RunID, "error", rerr)
	}
	if err != nil {
		return p.fail(report, err)
	}
	report.Rows = result.Rows
	p.transition(&report, StateLoaded)
	report.FinishedAt = p.now().UTC()
	return report, nil
}

func (p *Pipeline) transition(report *Report, next State) {
	p.logger.Info("run state", "run_id", report.RunID, "bucket", p.bucket, "from", report.State, "state", next)
	report.State = next
}

func (p *Pipeline) fail(report Report, err error) (Report, error) {
	if report.RunID == "" {
		report.RunID = RunIDOf(err)
	}
	p.logger.Error("run failed", "run_id", report.RunID, "bucket", p.bucket, "stage", StageOf(err), "error", err)
	p.transition(&report, StateFailed)
	report.FinishedAt = p.now().UTC()
	return report, err
}
