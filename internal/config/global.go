package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UserConfig is the optional per-user file at ~/.config/pubs/config.yml.
// Its values apply only to variables absent from the environment.
type UserConfig struct {
	DBURL          string `yaml:"db_url,omitempty"`
	TaxonomyFile   string `yaml:"taxonomy_file,omitempty"`
	PushgatewayURL string `yaml:"pushgateway_url,omitempty"`
	BackupBucket   string `yaml:"backup_bucket,omitempty"`
	BackupEndpoint string `yaml:"backup_endpoint,omitempty"`
}

const (
	// UserConfigDir is the directory name under XDG_CONFIG_HOME.
	UserConfigDir = "pubs"
	// UserConfigFile is the config file name.
	UserConfigFile = "config.yml"
)

// UserConfigPath returns the path to the user config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/pubs/config.yml.
func UserConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, UserConfigDir, UserConfigFile)
}

// LoadUserConfig reads the user config file.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadUserConfig() (*UserConfig, error) {
	path := UserConfigPath()
	if path == "" {
		return &UserConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &UserConfig{}, nil
		}
		return nil, fmt.Errorf("reading user config: %w", err)
	}

	var uc UserConfig
	if err := yaml.Unmarshal(data, &uc); err != nil {
		return nil, fmt.Errorf("parsing user config %s: %w", path, err)
	}
	uc.TaxonomyFile = ExpandTilde(uc.TaxonomyFile)
	return &uc, nil
}

func (uc *UserConfig) applyTo(c *Config) {
	fill := func(env string, dst *string, v string) {
		if _, set := os.LookupEnv(env); !set && v != "" {
			*dst = v
		}
	}
	fill("DB_URL", &c.DBURL, uc.DBURL)
	fill("TAXONOMY_FILE", &c.TaxonomyFile, uc.TaxonomyFile)
	fill("PUSHGATEWAY_URL", &c.PushgatewayURL, uc.PushgatewayURL)
	fill("BACKUP_S3_BUCKET", &c.BackupBucket, uc.BackupBucket)
	fill("BACKUP_S3_ENDPOINT", &c.BackupEndpoint, uc.BackupEndpoint)
}

// ExpandTilde expands a leading ~ to the user's home directory.
func ExpandTilde(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
