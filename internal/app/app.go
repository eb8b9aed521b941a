// Package app initializes and holds the long-lived services of a crawl
// run: configuration, logger, storage session and the optional metrics
// listener.
package app

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/saber1015/douban/internal/logging"
	"github.com/saber1015/douban/internal/metrics"
	"github.com/saber1015/douban/internal/store"
	"github.com/saber1015/douban/pkg/config"
)

// App is the dependency container built once at startup and torn down on
// every exit path.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	store  *store.Store
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the shared storage session.
func (a *App) Store() *store.Store { return a.store }

// New loads configuration, builds the logger, connects storage and runs
// the schema migration. It fails fast when any service cannot start.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.DefaultLogFile)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics.Init()
	if addr := cfg.Metrics.Addr; addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			logger.Info("metrics listener started", zap.String("addr", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	st, err := store.Open(cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(); err != nil {
		closeErr := st.Close()
		if closeErr != nil {
			logger.Warn("close store after failed migration", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	logger.Info("application services initialized")
	return &App{cfg: cfg, logger: logger, store: st}, nil
}

// Close releases the storage session and flushes the logger.
func (a *App) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("error closing store", zap.Error(err))
	}
	// Best effort; stdout sync fails on some platforms.
	_ = a.logger.Sync()
}
