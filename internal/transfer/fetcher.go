package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/animus-labs/bronze-loader/internal/storage/objectstore"
	"github.com/google/uuid"
)

// Fetcher downloads a bucket into a fresh run directory under StagingDir.
type Fetcher struct {
	store      objectstore.Store
	stagingDir string
	logger     *slog.Logger
	newRunID   func() string
}

func NewFetcher(store objectstore.Store, stagingDir string, logger *slog.Logger) (*Fetcher, error) {
	if store == nil {
		return nil, errors.New("object store is required")
	}
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, errors.New("staging dir is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{
		store:      store,
		stagingDir: stagingDir,
		logger:     logger,
		newRunID:   uuid.NewString,
	}, nil
}

// Fetch lists bucket once and downloads every object in listing order. Any
// download failure discards the whole run directory and returns no Manifest.
func (f *Fetcher) Fetch(ctx context.Context, bucket string) (Manifest, error) {
	if f == nil || f.store == nil {
		return Manifest{}, errors.New("fetcher not initialized")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return Manifest{}, errors.New("bucket is required")
	}

	runID := f.newRunID()
	objects, err := f.store.List(ctx, bucket)
	if err != nil {
		return Manifest{}, stageError(runID, StageList, "", err)
	}

	m := Manifest{RunID: runID, Bucket: bucket}
	if len(objects) == 0 {
		f.logger.Info("bucket empty", "run_id", runID, "bucket", bucket)
		return m, nil
	}

	m.Dir = filepath.Join(f.stagingDir, runID)
	if err := os.MkdirAll(m.Dir, 0o750); err != nil {
		return Manifest{}, stageError(runID, StageDownload, "", fmt.Errorf("create run dir: %w", err))
	}

	m.Files = make([]StagedFile, 0, len(objects))
	for _, obj := range objects {
		staged, err := f.download(ctx, bucket, obj, m.Dir)
		if err != nil {
			if rerr := m.Release(); rerr != nil {
				f.logger.Warn("release run dir", "run_id", runID, "dir", m.Dir, "error", rerr)
			}
			return Manifest{}, stageError(runID, StageDownload, obj.Key, err)
		}
		f.logger.Info("downloaded", "run_id", runID, "key", obj.Key, "path", staged.Path, "bytes", staged.Size)
		m.Files = append(m.Files, staged)
	}
	return m, nil
}

func (f *Fetcher) download(ctx context.Context, bucket string, obj objectstore.ObjectInfo, dir string) (StagedFile, error) {
	if err := ctx.Err(); err != nil {
		return StagedFile{}, err
	}
	body, info, err := f.store.Get(ctx, bucket, obj.Key)
	if err != nil {
		return StagedFile{}, err
	}
	defer func() { _ = body.Close() }()

	path := filepath.Join(dir, localName(obj.Key))
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return StagedFile{}, fmt.Errorf("create local file: %w", err)
	}
	n, copyErr := io.Copy(out, body)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return StagedFile{}, fmt.Errorf("write local file: %w", err)
	}

	lastModified := info.LastModified
	if lastModified.IsZero() {
		lastModified = obj.LastModified
	}
	return StagedFile{
		Key:          obj.Key,
		Path:         path,
		Size:         n,
		LastModified: lastModified,
	}, nil
}
