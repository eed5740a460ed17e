package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/wipacrepo/pubs/internal/catalog"
	"github.com/wipacrepo/pubs/internal/config"
	"github.com/wipacrepo/pubs/internal/logging"
	"github.com/wipacrepo/pubs/internal/metrics"
	"github.com/wipacrepo/pubs/internal/store"
	"github.com/wipacrepo/pubs/internal/taxonomy"
)

// metricsJob is the Pushgateway job name.
const metricsJob = "pubs"

// app bundles what every store-backed command needs.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	store   store.Store
	svc     *catalog.Service
}

// mustLoadConfig loads configuration and a logger, or exits.
func mustLoadConfig() (*config.Config, *zap.Logger) {
	cfg, err := config.Load(envFile)
	if err != nil {
		exitWithError(ExitConfigError, "loading configuration: %v", err)
	}
	log, err := logging.New(cfg.LogMode, cfg.Debug)
	if err != nil {
		exitWithError(ExitConfigError, "creating logger: %v", err)
	}
	return cfg, log
}

// mustLoadRegistry loads the taxonomy named by the configuration, or exits.
func mustLoadRegistry(cfg *config.Config) *taxonomy.Registry {
	reg, err := taxonomy.Load(cfg.TaxonomyFile)
	if err != nil {
		exitWithError(ExitConfigError, "loading taxonomy: %v", err)
	}
	return reg
}

// mustOpenApp connects to the store, ensures its indexes and returns the
// app with a context bounded by QUERY_TIMEOUT. Callers must call close.
func mustOpenApp(parent context.Context) (*app, context.Context, context.CancelFunc) {
	cfg, log := mustLoadConfig()
	reg := mustLoadRegistry(cfg)

	ctx, cancel := context.WithTimeout(parent, cfg.QueryTimeout)
	st, err := store.Open(ctx, cfg.DBURL)
	if err != nil {
		cancel()
		if errors.Is(err, store.ErrUnavailable) || store.IsCancelled(err) {
			exitWithError(ExitUnavailable, "connecting to store: %v", err)
		}
		exitWithError(ExitConfigError, "opening store: %v", err)
	}

	m := metrics.New()
	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: m,
		store:   st,
		svc:     catalog.New(st, reg, catalog.WithLogger(log), catalog.WithMetrics(m)),
	}
	if _, err := a.svc.EnsureIndexes(ctx); err != nil {
		a.close()
		cancel()
		exitForError(err, "preparing store")
	}
	return a, ctx, cancel
}

// close pushes metrics when a gateway is configured and releases the store.
func (a *app) close() {
	ctx := context.Background()
	if a.cfg.PushgatewayURL != "" {
		if err := a.metrics.Push(ctx, a.cfg.PushgatewayURL, metricsJob); err != nil {
			a.log.Warn("pushing metrics failed", zap.Error(err))
		}
	}
	if err := a.store.Close(ctx); err != nil {
		a.log.Warn("closing store failed", zap.Error(err))
	}
	a.log.Sync()
}

// fail releases resources and exits with the code matching err.
func (a *app) fail(err error, format string, args ...interface{}) {
	a.close()
	exitForError(err, format, args...)
}
