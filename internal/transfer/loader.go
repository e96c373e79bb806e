package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/animus-labs/bronze-loader/internal/warehouse"
)

// LoadResult summarizes one Load. Skipped is set when the Manifest was empty
// and the warehouse was never contacted.
type LoadResult struct {
	RunID   string
	Files   int
	Rows    int64
	Skipped bool
}

// Loader stages a Manifest in the warehouse and ingests it with one bulk
// command.
type Loader struct {
	warehouse warehouse.Warehouse
	format    warehouse.Format
	lease     Lease
	logger    *slog.Logger
}

func NewLoader(wh warehouse.Warehouse, format warehouse.Format, logger *slog.Logger) (*Loader, error) {
	if wh == nil {
		return nil, errors.New("warehouse is required")
	}
	if _, err := warehouse.ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{warehouse: wh, format: format, logger: logger}, nil
}

// UseLease makes every non-empty Load hold lease for its whole warehouse
// session. Empty loads never touch it.
func (l *Loader) UseLease(lease Lease) {
	l.lease = lease
}

// Load uploads every file of m into the run's staging location in manifest
// order, then bulk-ingests that location once. The session is closed and the
// staging location purged on every path.
func (l *Loader) Load(ctx context.Context, m Manifest) (LoadResult, error) {
	if l == nil || l.warehouse == nil {
		return LoadResult{}, errors.New("loader not initialized")
	}
	result := LoadResult{RunID: m.RunID}
	if m.Len() == 0 {
		l.logger.Info("no files to load", "run_id", m.RunID)
		result.Skipped = true
		return result, nil
	}
	if m.RunID == "" {
		return LoadResult{}, errors.New("manifest run id is required")
	}

	if l.lease != nil {
		release, ok, err := l.lease.TryAcquire(ctx)
		if err != nil {
			return LoadResult{}, stageError(m.RunID, StageConnect, "", fmt.Errorf("acquire load lease: %w", err))
		}
		if !ok {
			return LoadResult{}, stageError(m.RunID, StageConnect, "", ErrLoadInProgress)
		}
		defer release()
	}

	sess, err := l.warehouse.Open(ctx)
	if err != nil {
		return LoadResult{}, stageError(m.RunID, StageConnect, "", err)
	}
	cleanupCtx := context.WithoutCancel(ctx)
	defer func() {
		if cerr := sess.Close(cleanupCtx); cerr != nil {
			l.logger.Warn("close warehouse session", "run_id", m.RunID, "error", cerr)
		}
	}()

	location := StagingLocation(m.RunID)
	defer func() {
		if perr := sess.PurgeStage(cleanupCtx, location); perr != nil {
			l.logger.Warn("purge staging location", "run_id", m.RunID, "location", location, "error", perr)
		}
	}()

	for _, f := range m.Files {
		if err := sess.StageUpload(ctx, location, f.Key, f.Path); err != nil {
			return LoadResult{}, stageError(m.RunID, StageUpload, f.Key, err)
		}
		l.logger.Info("staged", "run_id", m.RunID, "key", f.Key, "location", location)
	}

	rows, err := sess.BulkIngest(ctx, location, l.format)
	if err != nil {
		return LoadResult{}, stageError(m.RunID, StageIngest, "", err)
	}
	l.logger.Info("ingested", "run_id", m.RunID, "location", location, "files", m.Len(), "rows", rows)

	result.Files = m.Len()
	result.Rows = rows
	return result, nil
}
