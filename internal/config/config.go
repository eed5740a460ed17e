// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultEnvFile is read before the environment when present.
const DefaultEnvFile = ".env"

// Config is the runtime configuration of the pubs tools.
type Config struct {
	DBURL        string `envconfig:"DB_URL" default:"mongodb://localhost/pub_db"`
	Debug        bool   `envconfig:"DEBUG" default:"false"`
	LogMode      string `envconfig:"LOG_MODE" default:"production"`
	TaxonomyFile string `envconfig:"TAXONOMY_FILE"`

	QueryTimeout      time.Duration `envconfig:"QUERY_TIMEOUT" default:"30s"`
	ImportConcurrency int           `envconfig:"IMPORT_CONCURRENCY" default:"1"`
	ImportWriteRate   float64       `envconfig:"IMPORT_WRITE_RATE" default:"0"`

	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL"`

	BackupBucket    string `envconfig:"BACKUP_S3_BUCKET"`
	BackupEndpoint  string `envconfig:"BACKUP_S3_ENDPOINT"`
	BackupRegion    string `envconfig:"BACKUP_S3_REGION" default:"us-east-1"`
	BackupAccessKey string `envconfig:"BACKUP_S3_ACCESS_KEY"`
	BackupSecretKey string `envconfig:"BACKUP_S3_SECRET_KEY"`
	BackupPrefix    string `envconfig:"BACKUP_S3_PREFIX"`
	KeepBackups     int    `envconfig:"KEEP_BACKUPS" default:"4"`
}

// Load reads envFile (DefaultEnvFile when empty) if it exists, then the
// process environment, then fills gaps from the user config file.
// Variables already set in the environment win over the env file.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", envFile, err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	user, err := LoadUserConfig()
	if err != nil {
		return nil, err
	}
	user.applyTo(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges envconfig cannot express.
func (c *Config) Validate() error {
	if c.DBURL == "" {
		return fmt.Errorf("DB_URL must not be empty")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive, got %s", c.QueryTimeout)
	}
	if c.ImportConcurrency < 1 {
		return fmt.Errorf("IMPORT_CONCURRENCY must be at least 1, got %d", c.ImportConcurrency)
	}
	if c.ImportWriteRate < 0 {
		return fmt.Errorf("IMPORT_WRITE_RATE must not be negative, got %g", c.ImportWriteRate)
	}
	if c.KeepBackups < 0 {
		return fmt.Errorf("KEEP_BACKUPS must not be negative, got %d", c.KeepBackups)
	}
	return nil
}
