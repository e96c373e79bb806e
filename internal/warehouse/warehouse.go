// Package warehouse is the load side of the transfer pipeline: a session-based
// contract for staging local files and bulk-ingesting them into a raw table,
// plus its Postgres implementation.
//
// The Postgres implementation needs Postgres 16 or later and expects two
// tables provisioned out of band:
//
//	CREATE TABLE bronze.bronze_stock_stage (
//	    location   text        NOT NULL,
//	    source_key text        NOT NULL,
//	    line_no    bigint      NOT NULL,
//	    payload    text        NOT NULL,
//	    staged_at  timestamptz NOT NULL
//	);
//	CREATE TABLE bronze.bronze_stock_raw (
//	    record           jsonb       NOT NULL,
//	    source_key       text        NOT NULL,
//	    staging_location text        NOT NULL,
//	    loaded_at        timestamptz NOT NULL
//	);
package warehouse

import (
	"context"
	"fmt"
	"strings"
)

// Format selects how staged files are parsed into records at ingest time.
type Format string

const (
	// FormatJSON treats a file that parses as a whole as one JSON document,
	// and a top-level array yields one record per element. A file that does not
	// parse as a whole is read as one record per non-blank line, so
	// newline-delimited files load under this format too.
	FormatJSON Format = "json"
	// FormatNDJSON treats each non-blank line as one record.
	FormatNDJSON Format = "ndjson"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatNDJSON, "jsonl":
		return FormatNDJSON, nil
	default:
		return "", fmt.Errorf("unsupported ingest format %q", s)
	}
}

// Warehouse opens sessions. Each session maps to one warehouse connection.
type Warehouse interface {
	Open(ctx context.Context) (Session, error)
}

// Session is the per-run handle used by the loader. Implementations are not
// safe for concurrent use.
type Session interface {
	// StageUpload copies the file at localPath into the staging location,
	// tagged with the source key it came from.
	StageUpload(ctx context.Context, location, key, localPath string) error
	// BulkIngest parses every file in location into the raw table and
	// returns the number of rows appended. It is all-or-nothing.
	BulkIngest(ctx context.Context, location string, format Format) (int64, error)
	// PurgeStage removes everything in location.
	PurgeStage(ctx context.Context, location string) error
	Close(ctx context.Context) error
}
