package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/flarewatch/internal/controllers/restserver"
	"github.com/chrissnell/flarewatch/internal/flare"
	"github.com/chrissnell/flarewatch/internal/log"
	"github.com/chrissnell/flarewatch/internal/metrics"
	"github.com/chrissnell/flarewatch/internal/storage"
	"github.com/chrissnell/flarewatch/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	metrics.Init()

	store, err := storage.Open(cfg.Storage, a.logger.Named("storage"))
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	detector, err := flare.NewDetector(cfg.DetectionParams(), a.logger.Named("detector"))
	if err != nil {
		return err
	}
	detector.SetObserver(metrics.Observer{})

	rest, err := restserver.NewController(ctx, &wg, cfg.Server, store, detector, a.logger.Named("rest"))
	if err != nil {
		return err
	}
	if err := rest.StartController(); err != nil {
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	log.Info("waiting for the REST server to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
