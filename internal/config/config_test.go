package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenecore.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *cfg != *defaults() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[project]
name = "silo"

[storage]
driver = "sqlite"
sqlite_path = "/tmp/silo.db"

[logging]
format = "json"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Project.Name != "silo" || cfg.Project.Dimension != 2 {
		t.Fatalf("unexpected project %+v", cfg.Project)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.SQLitePath != "/tmp/silo.db" || cfg.Storage.FileDir != "." {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging %+v", cfg.Logging)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "[storage]\ndriver = \"sqlite\"\n")
	t.Setenv("SCENECORE_STORAGE_DRIVER", "memory")
	t.Setenv("SCENECORE_DIMENSION", "3")
	t.Setenv("SCENECORE_BLOB_S3_PATH_STYLE", "true")
	t.Setenv("SCENECORE_LOG_LEVEL", " ")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "memory" || cfg.Project.Dimension != 3 || !cfg.Blob.S3PathStyle {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("blank env values must be ignored, got %q", cfg.Logging.Level)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]struct {
		body string
		env  map[string]string
		want string
	}{
		"syntax":    {body: "[project", want: "parse config"},
		"dimension": {body: "[project]\ndimension = 4\n", want: "project.dimension"},
		"units":     {body: "[project]\nunit_system = \"imperial\"\n", want: "unit_system"},
		"format":    {body: "[logging]\nformat = \"xml\"\n", want: "logging.format"},
		"env int":   {env: map[string]string{"SCENECORE_DIMENSION": "two"}, want: "SCENECORE_DIMENSION"},
		"env bool":  {env: map[string]string{"SCENECORE_METRICS_ENABLED": "maybe"}, want: "SCENECORE_METRICS_ENABLED"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) || !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("expected warn level")
	}

	fallback, err := NewLogger(LoggingConfig{Level: "loud", Format: "console"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if !fallback.Core().Enabled(zapcore.InfoLevel) || fallback.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("unknown level should fall back to info")
	}
}
