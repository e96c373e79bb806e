package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/animus-labs/bronze-loader/internal/storage/objectstore"
	"github.com/animus-labs/bronze-loader/internal/warehouse"
)

type fakeObject struct {
	key  string
	body string
}

type fakeStore struct {
	objects []fakeObject
	listErr error
	failKey string

	listCalls int
	getCalls  int
}

func (s *fakeStore) List(ctx context.Context, bucket string) ([]objectstore.ObjectInfo, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]objectstore.ObjectInfo, 0, len(s.objects))
	for _, o := range s.objects {
		out = append(out, objectstore.ObjectInfo{Key: o.key, Size: int64(len(o.body)), LastModified: time.Unix(1757376000, 0).UTC()})
	}
	return out, nil
}

func (s *fakeStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, objectstore.ObjectInfo, error) {
	s.getCalls++
	if key == s.failKey {
		return nil, objectstore.ObjectInfo{}, errors.New("connection reset")
	}
	for _, o := range s.objects {
		if o.key == key {
			return io.NopCloser(strings.NewReader(o.body)), objectstore.ObjectInfo{Key: key, Size: int64(len(o.body))}, nil
		}
	}
	return nil, objectstore.ObjectInfo{}, fmt.Errorf("no such key %s", key)
}

// fakeWarehouse keeps staging and raw tables in memory and records the order
// of session calls.
type fakeWarehouse struct {
	openErr      error
	failUploadAt int // 1-based; 0 disables
	ingestErr    error

	opens  int
	closes int
	calls  []string

	stage map[string][]stagedBody
	raw   []map[string]any
}

type stagedBody struct {
	key  string
	body []byte
}

func newFakeWarehouse() *fakeWarehouse {
	return &fakeWarehouse{stage: map[string][]stagedBody{}}
}

func (w *fakeWarehouse) Open(ctx context.Context) (warehouse.Session, error) {
	w.calls = append(w.calls, "open")
	if w.openErr != nil {
		return nil, w.openErr
	}
	w.opens++
	return &fakeSession{w: w}, nil
}

func (w *fakeWarehouse) count(call string) int {
	n := 0
	for _, c := range w.calls {
		if c == call {
			n++
		}
	}
	return n
}

type fakeSession struct {
	w       *fakeWarehouse
	uploads int
}

func (s *fakeSession) StageUpload(ctx context.Context, location, key, localPath string) error {
	s.w.calls = append(s.w.calls, "upload")
	s.uploads++
	if s.w.failUploadAt == s.uploads {
		return errors.New("stage write refused")
	}
	body, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	s.w.stage[location] = append(s.w.stage[location], stagedBody{key: key, body: body})
	return nil
}

func (s *fakeSession) BulkIngest(ctx context.Context, location string, format warehouse.Format) (int64, error) {
	s.w.calls = append(s.w.calls, "ingest")
	if s.w.ingestErr != nil {
		return 0, s.w.ingestErr
	}
	var parsed []map[string]any
	for _, f := range s.w.stage[location] {
		recs, err := parseRecords(f.body, format)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", f.key, err)
		}
		parsed = append(parsed, recs...)
	}
	s.w.raw = append(s.w.raw, parsed...)
	return int64(len(parsed)), nil
}

// parseRecords mirrors the Postgres ingest: json takes a whole document
// (expanding a top-level array) and falls back to one record per line.
func parseRecords(body []byte, format warehouse.Format) ([]map[string]any, error) {
	if format == warehouse.FormatJSON {
		var one map[string]any
		if err := json.Unmarshal(body, &one); err == nil {
			return []map[string]any{one}, nil
		}
		var many []map[string]any
		if err := json.Unmarshal(body, &many); err == nil {
			return many, nil
		}
	}
	var out []map[string]any
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *fakeSession) PurgeStage(ctx context.Context, location string) error {
	s.w.calls = append(s.w.calls, "purge")
	delete(s.w.stage, location)
	return nil
}

func (s *fakeSession) Close(ctx context.Context) error {
	s.w.calls = append(s.w.calls, "close")
	s.w.closes++
	return nil
}
