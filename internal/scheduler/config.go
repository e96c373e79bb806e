package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/animus-labs/bronze-loader/internal/platform/env"
	cron "github.com/robfig/cron/v3"
)

type Config struct {
	// Schedule is a cron expression or descriptor. When empty, Interval is
	// used as "@every <Interval>".
	Schedule   string        `yaml:"schedule"`
	Interval   time.Duration `yaml:"interval"`
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	// Name keys the single-run lease.
	Name string `yaml:"name"`
}

func DefaultConfig() Config {
	return Config{
		Interval:   time.Minute,
		Retries:    1,
		RetryDelay: 5 * time.Minute,
		Name:       "minio_to_warehouse",
	}
}

func ConfigFromEnv(def Config) (Config, error) {
	interval, err := env.Duration("BRONZE_RUN_INTERVAL", def.Interval)
	if err != nil {
		return Config{}, err
	}
	retries, err := env.Int("BRONZE_RUN_RETRIES", def.Retries)
	if err != nil {
		return Config{}, err
	}
	retryDelay, err := env.Duration("BRONZE_RUN_RETRY_DELAY", def.RetryDelay)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Schedule:   strings.TrimSpace(env.String("BRONZE_RUN_SCHEDULE", def.Schedule)),
		Interval:   interval,
		Retries:    retries,
		RetryDelay: retryDelay,
		Name:       strings.TrimSpace(env.String("BRONZE_PIPELINE_NAME", def.Name)),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Schedule == "" && c.Interval <= 0 {
		return errors.New("BRONZE_RUN_INTERVAL must be positive when no schedule is set")
	}
	if c.Retries < 0 {
		return errors.New("BRONZE_RUN_RETRIES must be >= 0")
	}
	if c.RetryDelay < 0 {
		return errors.New("BRONZE_RUN_RETRY_DELAY must be >= 0")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("BRONZE_PIPELINE_NAME is required")
	}
	if _, err := ParseSchedule(c.Spec()); err != nil {
		return err
	}
	return nil
}

// Spec returns the cron spec the scheduler registers.
func (c Config) Spec() string {
	if c.Schedule != "" {
		return c.Schedule
	}
	return "@every " + c.Interval.String()
}

func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return schedule, nil
}
