package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/hydromonitor/internal/controllers/restserver"
	"github.com/chrissnell/hydromonitor/internal/feeds"
	"github.com/chrissnell/hydromonitor/internal/metrics"
	"github.com/chrissnell/hydromonitor/internal/monitor"
	"github.com/chrissnell/hydromonitor/pkg/config"
)

// App represents the main application
type App struct {
	config  *config.ConfigData
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
	monitor *monitor.Monitor
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	met := metrics.New()
	client := feeds.NewClient(cfg.Feeds.AlertsURL, cfg.Feeds.SensorURL, cfg.Feeds.Timeout)

	opts := monitor.Options{
		Variant:        cfg.Variant,
		MonitoredPlant: cfg.MonitoredPlant,
		SensorPlant:    cfg.SensorPlant,
		TrendDays:      cfg.TrendDays,
		Recorder:       met,
		Observer:       met,
		Logger:         logger,
	}
	// Unset feeds stay nil so the monitor computes alerts locally instead of
	// reporting a failed feed on every refresh.
	if cfg.Feeds.AlertsURL != "" {
		opts.AlertFeed = client
	}
	if cfg.Feeds.SensorURL != "" {
		opts.SensorFeed = client
	}

	return &App{
		config:  cfg,
		logger:  logger,
		metrics: met,
		monitor: monitor.New(opts),
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.config.Feeds.SensorURL != "" {
		res, err := a.monitor.LoadSensorFeed(ctx)
		var ferr *feeds.FeedError
		switch {
		case errors.As(err, &ferr):
			a.logger.Warnw("sensor feed unavailable, starting with an empty store", "error", err)
		case err != nil:
			a.logger.Warnw("sensor feed could not be imported", "error", err)
		default:
			a.logger.Infow("sensor feed loaded", "batch", res.BatchID, "imported", res.Imported, "skipped", res.Skipped)
		}
	}
	a.monitor.RefreshAlerts(ctx)

	if a.config.Feeds.AlertsURL != "" {
		wg.Add(1)
		go a.refreshLoop(ctx, &wg, a.config.Feeds.AlertRefresh)
	}

	ctrl, err := restserver.NewController(ctx, &wg, a.config.RESTServer, a.monitor, a.metrics, a.logger)
	if err != nil {
		return err
	}
	if err := ctrl.StartController(); err != nil {
		return err
	}

	a.logger.Infow("application started successfully", "variant", a.config.Variant, "monitored_plant", a.config.MonitoredPlant)

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}

// refreshLoop re-reads the alert feed on a fixed interval.
func (a *App) refreshLoop(ctx context.Context, wg *sync.WaitGroup, interval time.Duration) {
	defer wg.Done()

	if interval <= 0 {
		interval = config.DefaultAlertRefresh
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("alert refresh loop stopped")
			return
		case <-ticker.C:
			report := a.monitor.RefreshAlerts(ctx)
			a.logger.Debugw("alerts refreshed", "count", len(report.Alerts), "degraded", report.Degraded)
		}
	}
}
