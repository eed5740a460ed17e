package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"DB_URL", "DEBUG", "LOG_MODE", "TAXONOMY_FILE", "QUERY_TIMEOUT",
	"IMPORT_CONCURRENCY", "IMPORT_WRITE_RATE", "PUSHGATEWAY_URL",
	"BACKUP_S3_BUCKET", "BACKUP_S3_ENDPOINT", "BACKUP_S3_REGION",
	"BACKUP_S3_ACCESS_KEY", "BACKUP_S3_SECRET_KEY", "BACKUP_S3_PREFIX",
	"KEEP_BACKUPS", "XDG_CONFIG_HOME",
}

// clearEnv unsets every variable Load reads and restores them afterwards,
// including ones set by an env file during the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}
	// Keep the real user config out of the way.
	os.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(noEnvFile(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DBURL != "mongodb://localhost/pub_db" {
		t.Errorf("DBURL = %q", cfg.DBURL)
	}
	if cfg.LogMode != "production" || cfg.Debug {
		t.Errorf("LogMode = %q, Debug = %v", cfg.LogMode, cfg.Debug)
	}
	if cfg.QueryTimeout != 30*time.Second {
		t.Errorf("QueryTimeout = %s, want 30s", cfg.QueryTimeout)
	}
	if cfg.ImportConcurrency != 1 || cfg.ImportWriteRate != 0 {
		t.Errorf("ImportConcurrency = %d, ImportWriteRate = %g", cfg.ImportConcurrency, cfg.ImportWriteRate)
	}
	if cfg.KeepBackups != 4 || cfg.BackupRegion != "us-east-1" {
		t.Errorf("KeepBackups = %d, BackupRegion = %q", cfg.KeepBackups, cfg.BackupRegion)
	}
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_URL", "sqlite:///tmp/pubs.db")
	t.Setenv("DEBUG", "true")
	t.Setenv("QUERY_TIMEOUT", "5s")
	t.Setenv("IMPORT_CONCURRENCY", "4")
	t.Setenv("IMPORT_WRITE_RATE", "2.5")
	t.Setenv("KEEP_BACKUPS", "10")

	cfg, err := Load(noEnvFile(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DBURL != "sqlite:///tmp/pubs.db" || !cfg.Debug || cfg.QueryTimeout != 5*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ImportConcurrency != 4 || cfg.ImportWriteRate != 2.5 || cfg.KeepBackups != 10 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_URL", "sqlite:///from/env.db")

	envFile := filepath.Join(t.TempDir(), ".env")
	content := "DB_URL=mongodb://ignored/db\nPUSHGATEWAY_URL=http://gateway:9091\n"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DBURL != "sqlite:///from/env.db" {
		t.Errorf("DBURL = %q, environment should win over env file", cfg.DBURL)
	}
	if cfg.PushgatewayURL != "http://gateway:9091" {
		t.Errorf("PushgatewayURL = %q", cfg.PushgatewayURL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value, wantMsg string
	}{
		{"QUERY_TIMEOUT", "soon", "parsing environment"},
		{"QUERY_TIMEOUT", "0s", "QUERY_TIMEOUT"},
		{"IMPORT_CONCURRENCY", "0", "IMPORT_CONCURRENCY"},
		{"IMPORT_WRITE_RATE", "-1", "IMPORT_WRITE_RATE"},
		{"KEEP_BACKUPS", "-2", "KEEP_BACKUPS"},
		{"DB_URL", "", "DB_URL"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(noEnvFile(t))
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Load() error = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}
