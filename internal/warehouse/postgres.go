package warehouse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/animus-labs/bronze-loader/internal/platform/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Tables names the warehouse objects the loader writes to.
type Tables struct {
	Schema string `yaml:"schema"`
	Raw    string `yaml:"raw_table"`
	Stage  string `yaml:"stage_table"`
}

func (t Tables) Validate() error {
	if strings.TrimSpace(t.Schema) == "" {
		return errors.New("warehouse schema is required")
	}
	if strings.TrimSpace(t.Raw) == "" {
		return errors.New("raw table is required")
	}
	if strings.TrimSpace(t.Stage) == "" {
		return errors.New("stage table is required")
	}
	if t.Raw == t.Stage {
		return errors.New("raw table and stage table must differ")
	}
	return nil
}

func (t Tables) raw() pgx.Identifier   { return pgx.Identifier{t.Schema, t.Raw} }
func (t Tables) stage() pgx.Identifier { return pgx.Identifier{t.Schema, t.Stage} }

var stageColumns = []string{"location", "source_key", "line_no", "payload", "staged_at"}

// conn is the subset of *pgx.Conn used by a session.
type conn interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

// Postgres is a Warehouse backed by a Postgres-compatible database.
type Postgres struct {
	cfg    postgres.Config
	tables Tables
	dial   func(ctx context.Context, cfg postgres.Config) (conn, error)
	now    func() time.Time
}

func NewPostgres(cfg postgres.Config, tables Tables) (*Postgres, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &Postgres{
		cfg:    cfg,
		tables: tables,
		dial: func(ctx context.Context, cfg postgres.Config) (conn, error) {
			return postgres.Connect(ctx, cfg)
		},
		now: time.Now,
	}, nil
}

func (p *Postgres) Open(ctx context.Context) (Session, error) {
	if p == nil || p.dial == nil {
		return nil, errors.New("postgres warehouse not initialized")
	}
	c, err := p.dial(ctx, p.cfg)
	if err != nil {
		return nil, err
	}
	return &pgSession{conn: c, tables: p.tables, now: p.now}, nil
}

// Check verifies connectivity, that both tables exist and that the server
// supports the ingest queries.
func (p *Postgres) Check(ctx context.Context) error {
	sess, err := p.Open(ctx)
	if err != nil {
		return err
	}
	s := sess.(*pgSession)
	defer func() { _ = s.Close(context.WithoutCancel(ctx)) }()

	for _, ident := range []pgx.Identifier{p.tables.raw(), p.tables.stage()} {
		var exists bool
		if err := s.conn.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, ident.Sanitize()).Scan(&exists); err != nil {
			return fmt.Errorf("lookup %s: %w", ident.Sanitize(), err)
		}
		if !exists {
			return fmt.Errorf("table missing: %s", ident.Sanitize())
		}
	}
	var supported bool
	if err := s.conn.QueryRow(ctx, `SELECT current_setting('server_version_num')::int >= 160000`).Scan(&supported); err != nil {
		return fmt.Errorf("server version: %w", err)
	}
	if !supported {
		return errors.New("warehouse requires postgres 16 or later")
	}
	return nil
}

type pgSession struct {
	conn   conn
	tables Tables
	now    func() time.Time
	closed bool
}

func (s *pgSession) StageUpload(ctx context.Context, location, key, localPath string) error {
	if s.closed {
		return errors.New("session closed")
	}
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open staged file: %w", err)
	}
	defer func() { _ = f.Close() }()

	src := newLineSource(f, location, key, s.now().UTC())
	if _, err := s.conn.CopyFrom(ctx, s.tables.stage(), stageColumns, src); err != nil {
		return fmt.Errorf("copy %s: %w", key, err)
	}
	return nil
}

func (s *pgSession) BulkIngest(ctx context.Context, location string, format Format) (int64, error) {
	if s.closed {
		return 0, errors.New("session closed")
	}
	query, err := buildIngestQuery(s.tables, format)
	if err != nil {
		return 0, err
	}
	tag, err := s.conn.Exec(ctx, query, location, s.now().UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *pgSession) PurgeStage(ctx context.Context, location string) error {
	if s.closed {
		return errors.New("session closed")
	}
	_, err := s.conn.Exec(ctx, buildPurgeQuery(s.tables), location)
	return err
}

func (s *pgSession) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close(ctx)
}

func buildIngestQuery(t Tables, format Format) (string, error) {
	raw := t.raw().Sanitize()
	stage := t.stage().Sanitize()
	switch format {
	case FormatNDJSON:
		return fmt.Sprintf(`INSERT INTO %s (record, source_key, staging_location, loaded_at)
SELECT s.payload::jsonb, s.source_key, s.location, $2
FROM %s s
WHERE s.location = $1 AND btrim(s.payload) <> ''`, raw, stage), nil
	case FormatJSON:
		// A file that parses as a whole is one document; anything else is read
		// as one record per non-blank line. pg_input_is_valid needs Postgres 16.
		return fmt.Sprintf(`WITH files AS (
	SELECT location, source_key,
		CASE WHEN pg_input_is_valid(doc, 'jsonb') THEN doc::jsonb END AS parsed
	FROM (
		SELECT location, source_key, string_agg(payload, E'\n' ORDER BY line_no) AS doc
		FROM %[2]s
		WHERE location = $1
		GROUP BY location, source_key
	) d
)
INSERT INTO %[1]s (record, source_key, staging_location, loaded_at)
SELECT e.value, f.source_key, f.location, $2::timestamptz
FROM files f
CROSS JOIN LATERAL jsonb_array_elements(
	CASE WHEN jsonb_typeof(f.parsed) = 'array' THEN f.parsed ELSE jsonb_build_array(f.parsed) END
) AS e(value)
WHERE f.parsed IS NOT NULL
UNION ALL
SELECT s.payload::jsonb, s.source_key, s.location, $2::timestamptz
FROM %[2]s s
JOIN files f ON f.location = s.location AND f.source_key = s.source_key
WHERE f.parsed IS NULL AND btrim(s.payload) <> ''`, raw, stage), nil
	default:
		return "", fmt.Errorf("unsupported ingest format %q", format)
	}
}

func buildPurgeQuery(t Tables) string {
	return fmt.Sprintf(`DELETE FROM %s WHERE location = $1`, t.stage().Sanitize())
}
