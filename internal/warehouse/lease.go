package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/animus-labs/bronze-loader/internal/platform/postgres"
)

// AdvisoryLease serializes loads across processes with a session-level
// Postgres advisory lock keyed by the pipeline name. The lock lives as long as
// the dedicated connection that took it.
type AdvisoryLease struct {
	cfg  postgres.Config
	name string
	dial func(ctx context.Context, cfg postgres.Config) (conn, error)
}

func NewAdvisoryLease(cfg postgres.Config, name string) (*AdvisoryLease, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("lease name is required")
	}
	return &AdvisoryLease{
		cfg:  cfg,
		name: name,
		dial: func(ctx context.Context, cfg postgres.Config) (conn, error) {
			return postgres.Connect(ctx, cfg)
		},
	}, nil
}

// TryAcquire returns ok=false without blocking when another holder exists.
func (l *AdvisoryLease) TryAcquire(ctx context.Context) (func(), bool, error) {
	c, err := l.dial(ctx, l.cfg)
	if err != nil {
		return nil, false, fmt.Errorf("lease connect: %w", err)
	}
	var ok bool
	if err := c.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, l.name).Scan(&ok); err != nil {
		_ = c.Close(context.WithoutCancel(ctx))
		return nil, false, fmt.Errorf("lease acquire: %w", err)
	}
	if !ok {
		_ = c.Close(context.WithoutCancel(ctx))
		return nil, false, nil
	}

	release := func() {
		bg := context.WithoutCancel(ctx)
		_, _ = c.Exec(bg, `SELECT pg_advisory_unlock(hashtext($1))`, l.name)
		_ = c.Close(bg)
	}
	return release, true, nil
}
