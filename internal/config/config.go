// Package config loads scenecore settings from a TOML file layered over
// built-in defaults, with SCENECORE_* environment variables taking
// precedence over both.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Project ProjectConfig `toml:"project"`
	Storage StorageConfig `toml:"storage"`
	Blob    BlobConfig    `toml:"blob"`
	Logging LoggingConfig `toml:"logging"`
	Metrics MetricsConfig `toml:"metrics"`
}

type ProjectConfig struct {
	Name       string `toml:"name"`
	Dimension  int    `toml:"dimension"`
	UnitSystem string `toml:"unit_system"` // "SI" or "CGS"
}

type StorageConfig struct {
	Driver      string `toml:"driver"` // memory, file, sqlite or postgres
	FileDir     string `toml:"file_dir"`
	SQLitePath  string `toml:"sqlite_path"`
	PostgresDSN string `toml:"postgres_dsn"`
}

type BlobConfig struct {
	Driver      string `toml:"driver"` // fs, s3 or memory
	FSRoot      string `toml:"fs_root"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Region    string `toml:"s3_region"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3PathStyle bool   `toml:"s3_path_style"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
	Listen    string `toml:"listen"` // address for the /metrics endpoint in watch mode
}

// Load reads path over the defaults and applies environment overrides. An
// empty path or a missing file yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Project.Dimension != 2 && c.Project.Dimension != 3 {
		return fmt.Errorf("project.dimension must be 2 or 3, got %d", c.Project.Dimension)
	}
	switch c.Project.UnitSystem {
	case "SI", "CGS":
	default:
		return fmt.Errorf("project.unit_system must be SI or CGS, got %q", c.Project.UnitSystem)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Project: ProjectConfig{
			Name:       "Project",
			Dimension:  2,
			UnitSystem: "SI",
		},
		Storage: StorageConfig{
			Driver:     "file",
			FileDir:    ".",
			SQLitePath: "./scenecore.db",
		},
		Blob: BlobConfig{
			Driver:   "fs",
			FSRoot:   "./blobdata",
			S3Region: "us-east-1",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Namespace: "scenecore",
			Listen:    "127.0.0.1:9464",
		},
	}
}

// envBinding maps one environment variable onto a config field.
type envBinding struct {
	key string
	set func(c *Config, v string) error
}

func str(dst func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

func boolean(key string, dst func(c *Config) *bool) envBinding {
	return envBinding{key: key, set: func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst(c) = b
		return nil
	}}
}

var envBindings = []envBinding{
	{"SCENECORE_PROJECT_NAME", str(func(c *Config) *string { return &c.Project.Name })},
	{"SCENECORE_DIMENSION", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCENECORE_DIMENSION: %w", err)
		}
		c.Project.Dimension = n
		return nil
	}},
	{"SCENECORE_STORAGE_DRIVER", str(func(c *Config) *string { return &c.Storage.Driver })},
	{"SCENECORE_FILE_DIR", str(func(c *Config) *string { return &c.Storage.FileDir })},
	{"SCENECORE_SQLITE_PATH", str(func(c *Config) *string { return &c.Storage.SQLitePath })},
	{"SCENECORE_POSTGRES_DSN", str(func(c *Config) *string { return &c.Storage.PostgresDSN })},
	{"SCENECORE_BLOB_DRIVER", str(func(c *Config) *string { return &c.Blob.Driver })},
	{"SCENECORE_BLOB_FS_ROOT", str(func(c *Config) *string { return &c.Blob.FSRoot })},
	{"SCENECORE_BLOB_S3_BUCKET", str(func(c *Config) *string { return &c.Blob.S3Bucket })},
	{"SCENECORE_BLOB_S3_REGION", str(func(c *Config) *string { return &c.Blob.S3Region })},
	{"SCENECORE_BLOB_S3_ENDPOINT", str(func(c *Config) *string { return &c.Blob.S3Endpoint })},
	boolean("SCENECORE_BLOB_S3_PATH_STYLE", func(c *Config) *bool { return &c.Blob.S3PathStyle }),
	{"SCENECORE_LOG_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
	{"SCENECORE_LOG_FORMAT", str(func(c *Config) *string { return &c.Logging.Format })},
	boolean("SCENECORE_METRICS_ENABLED", func(c *Config) *bool { return &c.Metrics.Enabled }),
}

func applyEnv(cfg *Config) error {
	for _, b := range envBindings {
		v, ok := os.LookupEnv(b.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := b.set(cfg, strings.TrimSpace(v)); err != nil {
			return err
		}
	}
	return nil
}
