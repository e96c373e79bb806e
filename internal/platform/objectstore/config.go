package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/animus-labs/bronze-loader/internal/platform/env"
)

// Config addresses the S3-compatible source store. Credentials carry no
// defaults and must come from the environment or the config file.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

func DefaultConfig() Config {
	return Config{
		Endpoint: "localhost:9000",
		Region:   "us-east-1",
	}
}

// ConfigFromEnv overlays BRONZE_MINIO_* variables on def.
func ConfigFromEnv(def Config) (Config, error) {
	useSSL, err := env.Bool("BRONZE_MINIO_USE_SSL", def.UseSSL)
	if err != nil {
		return Config{}, err
	}
	accessKey, err := env.Required("BRONZE_MINIO_ACCESS_KEY", def.AccessKey)
	if err != nil {
		return Config{}, err
	}
	secretKey, err := env.Required("BRONZE_MINIO_SECRET_KEY", def.SecretKey)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:  env.String("BRONZE_MINIO_ENDPOINT", def.Endpoint),
		AccessKey: accessKey,
		SecretKey: secretKey,
		Region:    env.String("BRONZE_MINIO_REGION", def.Region),
		UseSSL:    useSSL,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
