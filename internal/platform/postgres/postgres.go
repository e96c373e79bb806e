package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/animus-labs/bronze-loader/internal/platform/env"
	"github.com/jackc/pgx/v5"
)

// Config describes how to reach the warehouse. URL embeds the credentials
// and has no default.
type Config struct {
	URL            string        `yaml:"url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		PingTimeout:    2 * time.Second,
	}
}

func ConfigFromEnv(def Config) (Config, error) {
	url, err := env.Required("BRONZE_WAREHOUSE_URL", def.URL)
	if err != nil {
		return Config{}, err
	}
	connectTimeout, err := env.Duration("BRONZE_WAREHOUSE_CONNECT_TIMEOUT", def.ConnectTimeout)
	if err != nil {
		return Config{}, err
	}
	pingTimeout, err := env.Duration("BRONZE_WAREHOUSE_PING_TIMEOUT", def.PingTimeout)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		URL:            url,
		ConnectTimeout: connectTimeout,
		PingTimeout:    pingTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("BRONZE_WAREHOUSE_URL is required")
	}
	if c.ConnectTimeout <= 0 {
		return errors.New("BRONZE_WAREHOUSE_CONNECT_TIMEOUT must be positive")
	}
	if c.PingTimeout <= 0 {
		return errors.New("BRONZE_WAREHOUSE_PING_TIMEOUT must be positive")
	}
	if _, err := pgx.ParseConfig(c.URL); err != nil {
		return fmt.Errorf("parse BRONZE_WAREHOUSE_URL: %w", err)
	}
	return nil
}

// Connect dials a single connection and pings it. Callers own the returned
// connection and must close it.
func Connect(ctx context.Context, cfg Config) (*pgx.Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	connCfg, err := pgx.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	connCfg.ConnectTimeout = cfg.ConnectTimeout

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping: %w", err)
	}

	return conn, nil
}
