// Package logging builds the zap loggers used by the pubs tools.
package logging

import (
	"strings"

	"go.uber.org/zap"
)

// New returns a logger writing to stderr. Mode "production" (or "prod")
// selects the JSON encoder; anything else the development console encoder.
// debug lowers the level to debug in either mode.
func New(mode string, debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "production", "prod", "":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
