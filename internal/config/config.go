// Package config assembles the loader's configuration. Values resolve in this
// order, last wins: built-in defaults, the optional YAML file, the process
// environment (optionally seeded from a .env file).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/animus-labs/bronze-loader/internal/platform/env"
	"github.com/animus-labs/bronze-loader/internal/platform/objectstore"
	"github.com/animus-labs/bronze-loader/internal/platform/postgres"
	"github.com/animus-labs/bronze-loader/internal/scheduler"
	"github.com/animus-labs/bronze-loader/internal/warehouse"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Source     objectstore.Config
	Bucket     string
	StagingDir string
	Warehouse  postgres.Config
	Tables     warehouse.Tables
	Format     warehouse.Format
	Scheduler  scheduler.Config
	HealthAddr string
	LogLevel   slog.Level
}

// File mirrors the YAML layout.
type File struct {
	Source     objectstore.Config `yaml:"source"`
	Bucket     string             `yaml:"bucket"`
	StagingDir string             `yaml:"staging_dir"`
	Warehouse  postgres.Config    `yaml:"warehouse"`
	Tables     warehouse.Tables   `yaml:"tables"`
	Format     string             `yaml:"format"`
	Scheduler  scheduler.Config   `yaml:"scheduler"`
	HealthAddr string             `yaml:"health_addr"`
	LogLevel   string             `yaml:"log_level"`
}

func Defaults() File {
	return File{
		Source:     objectstore.DefaultConfig(),
		Bucket:     "bronze-transactions",
		StagingDir: "/tmp/minio_downloads",
		Warehouse:  postgres.DefaultConfig(),
		Tables: warehouse.Tables{
			Schema: "bronze",
			Raw:    "bronze_stock_raw",
			Stage:  "bronze_stock_stage",
		},
		Format:    string(warehouse.FormatJSON),
		Scheduler: scheduler.DefaultConfig(),
		LogLevel:  "info",
	}
}

// LoadEnvFile seeds the environment from a dotenv file without overriding
// variables that are already set. An empty path tries ./.env and tolerates
// its absence.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ReadFile decodes a YAML file over Defaults.
func ReadFile(path string) (File, error) {
	f := Defaults()
	if strings.TrimSpace(path) == "" {
		return f, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return f, nil
}

func Load(path string) (Config, error) {
	f, err := ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return FromEnv(f)
}

// FromEnv overlays environment variables on f and validates the result.
func FromEnv(f File) (Config, error) {
	source, err := objectstore.ConfigFromEnv(f.Source)
	if err != nil {
		return Config{}, fmt.Errorf("source: %w", err)
	}
	wh, err := postgres.ConfigFromEnv(f.Warehouse)
	if err != nil {
		return Config{}, fmt.Errorf("warehouse: %w", err)
	}
	sched, err := scheduler.ConfigFromEnv(f.Scheduler)
	if err != nil {
		return Config{}, fmt.Errorf("scheduler: %w", err)
	}
	format, err := warehouse.ParseFormat(env.String("BRONZE_INGEST_FORMAT", f.Format))
	if err != nil {
		return Config{}, err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(env.String("BRONZE_LOG_LEVEL", f.LogLevel))); err != nil {
		return Config{}, fmt.Errorf("parse BRONZE_LOG_LEVEL: %w", err)
	}

	cfg := Config{
		Source:     source,
		Bucket:     strings.TrimSpace(env.String("BRONZE_SOURCE_BUCKET", f.Bucket)),
		StagingDir: strings.TrimSpace(env.String("BRONZE_STAGING_DIR", f.StagingDir)),
		Warehouse:  wh,
		Tables: warehouse.Tables{
			Schema: strings.TrimSpace(env.String("BRONZE_WAREHOUSE_SCHEMA", f.Tables.Schema)),
			Raw:    strings.TrimSpace(env.String("BRONZE_RAW_TABLE", f.Tables.Raw)),
			Stage:  strings.TrimSpace(env.String("BRONZE_STAGE_TABLE", f.Tables.Stage)),
		},
		Format:     format,
		Scheduler:  sched,
		HealthAddr: strings.TrimSpace(env.String("BRONZE_HEALTH_ADDR", f.HealthAddr)),
		LogLevel:   level,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("BRONZE_SOURCE_BUCKET is required")
	}
	if c.StagingDir == "" {
		return errors.New("BRONZE_STAGING_DIR is required")
	}
	if err := c.Tables.Validate(); err != nil {
		return err
	}
	return nil
}
