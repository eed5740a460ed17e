package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeUserConfig(t *testing.T, content string) {
	t.Helper()
	dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), UserConfigDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, UserConfigFile), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestUserConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := UserConfigPath(), "/custom/config/pubs/config.yml"; got != want {
		t.Errorf("UserConfigPath() = %q, want %q", got, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	if got, want := UserConfigPath(), filepath.Join(home, ".config", "pubs", "config.yml"); got != want {
		t.Errorf("UserConfigPath() = %q, want %q", got, want)
	}
}

func TestLoadUserConfig_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	uc, err := LoadUserConfig()
	if err != nil {
		t.Fatalf("LoadUserConfig() error = %v", err)
	}
	if *uc != (UserConfig{}) {
		t.Errorf("LoadUserConfig() = %+v, want empty", uc)
	}
}

func TestLoadUserConfig_Invalid(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	writeUserConfig(t, "db_url: [unterminated\n")

	if _, err := LoadUserConfig(); err == nil {
		t.Error("LoadUserConfig() succeeded on invalid YAML, want error")
	}
}

func TestLoad_UserConfigFillsGaps(t *testing.T) {
	clearEnv(t)
	t.Setenv("PUSHGATEWAY_URL", "http://env-gateway:9091")
	writeUserConfig(t, `
db_url: sqlite:///home/pubs/catalog.db
taxonomy_file: /etc/pubs/taxonomy.yml
pushgateway_url: http://file-gateway:9091
backup_bucket: pubs-backups
`)

	cfg, err := Load(noEnvFile(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DBURL != "sqlite:///home/pubs/catalog.db" {
		t.Errorf("DBURL = %q", cfg.DBURL)
	}
	if cfg.TaxonomyFile != "/etc/pubs/taxonomy.yml" || cfg.BackupBucket != "pubs-backups" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.PushgatewayURL != "http://env-gateway:9091" {
		t.Errorf("PushgatewayURL = %q, environment should win", cfg.PushgatewayURL)
	}
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	for in, want := range map[string]string{
		"":               "",
		"/abs/path":      "/abs/path",
		"~/taxonomy.yml": filepath.Join(home, "taxonomy.yml"),
	} {
		if got := ExpandTilde(in); got != want {
			t.Errorf("ExpandTilde(%q) = %q, want %q", in, got, want)
		}
	}
}
