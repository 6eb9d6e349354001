package config

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTempConfig creates a configuration file and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	path := writeTempConfig(t, `
normflow:
  name: "test"
  version: "0.1"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Book.BufferCapacity != DefaultBookBufferCapacity {
		t.Fatalf("expected default buffer capacity %d, got %d", DefaultBookBufferCapacity, cfg.Book.BufferCapacity)
	}
	if cfg.Book.OverflowPolicy != OverflowEvict {
		t.Fatalf("expected default overflow policy %q, got %q", OverflowEvict, cfg.Book.OverflowPolicy)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Fatalf("unexpected logging defaults for development: %+v", cfg.Logging)
	}
}

func TestLoadConfigProductionLogFormat(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	path := writeTempConfig(t, `
normflow:
  name: "test"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format in production, got %q", cfg.Logging.Format)
	}
}

func TestAppEnvironmentAliases(t *testing.T) {
	cases := map[string]string{
		"":           EnvironmentDevelopment,
		"dev":        EnvironmentDevelopment,
		"prod":       EnvironmentProduction,
		"PRODUCTION": EnvironmentProduction,
		"stage":      EnvironmentStaging,
		"stag":       EnvironmentStaging,
	}
	for raw, want := range cases {
		t.Setenv("APP_ENV", raw)
		if got := AppEnvironment(); got != want {
			t.Errorf("APP_ENV=%q: expected %q, got %q", raw, want, got)
		}
	}
}

func TestResolveEnvSpecificPath(t *testing.T) {
	paths := map[string]string{
		EnvironmentProduction: "config/config.production.yml",
	}

	t.Setenv("APP_ENV", "production")
	if got := resolveEnvSpecificPath(DefaultConfigPath, DefaultConfigPath, paths); got != paths[EnvironmentProduction] {
		t.Fatalf("expected production path, got %q", got)
	}
	if got := resolveEnvSpecificPath("", DefaultConfigPath, paths); got != paths[EnvironmentProduction] {
		t.Fatalf("expected production path for empty input, got %q", got)
	}
	// An explicitly chosen path wins over the environment mapping.
	if got := resolveEnvSpecificPath("custom.yml", DefaultConfigPath, paths); got != "custom.yml" {
		t.Fatalf("expected explicit path to win, got %q", got)
	}

	t.Setenv("APP_ENV", "development")
	if got := resolveEnvSpecificPath(DefaultConfigPath, DefaultConfigPath, paths); got != DefaultConfigPath {
		t.Fatalf("expected default path in development, got %q", got)
	}
}

func TestLoadConfigEnvSpecificFile(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	prodPath := filepath.Join(t.TempDir(), "config.production.yml")
	if err := os.WriteFile(prodPath, []byte("normflow:\n  name: \"prod\"\n"), 0o644); err != nil {
		t.Fatalf("write production config: %v", err)
	}

	orig := envConfigPaths
	envConfigPaths = map[string]string{EnvironmentProduction: prodPath}
	defer func() { envConfigPaths = orig }()

	cfg, err := LoadConfig(DefaultConfigPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Normflow.Name != "prod" {
		t.Fatalf("expected production config to be loaded, got name %q", cfg.Normflow.Name)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("NORMFLOW_TEST_BUCKET", "my-bucket")
	path := writeTempConfig(t, `
writer:
  enabled: true
  s3:
    enabled: true
    bucket: "${NORMFLOW_TEST_BUCKET}"
    region: "eu-west-1"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Writer.S3.Bucket != "my-bucket" {
		t.Fatalf("expected env expansion, got %q", cfg.Writer.S3.Bucket)
	}
}

func TestLoadConfigRejectsBadOverflowPolicy(t *testing.T) {
	path := writeTempConfig(t, `
book:
  overflow_policy: "explode"
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for invalid overflow policy")
	}
}

func TestLoadConfigRejectsS3WithoutBucket(t *testing.T) {
	path := writeTempConfig(t, `
writer:
  s3:
    enabled: true
    region: "eu-west-1"
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for s3 without bucket")
	}
}

func TestStrictForOverride(t *testing.T) {
	cfg := BookConfig{
		StrictDefault: true,
		Strict:        map[string]bool{"bybit": false},
	}
	if !cfg.StrictFor("binance") {
		t.Fatalf("expected default strict for binance")
	}
	if cfg.StrictFor("bybit") {
		t.Fatalf("expected override to disable strict for bybit")
	}
}
