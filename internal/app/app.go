// Package app provides the main application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// different operational modes:
//
//   - Serve mode: message intake and admin moderation API plus the
//     health/metrics server
//   - Worker mode: periodic queue gauge refresh for dashboards and alerting
//
// Each mode can be run independently or combined based on deployment needs.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gigboard/community-moderation/internal/admin"
	"github.com/gigboard/community-moderation/internal/intake"
	"github.com/gigboard/community-moderation/internal/moderation"
	"github.com/gigboard/community-moderation/internal/moderation/events"
	"github.com/gigboard/community-moderation/internal/platform/config"
	"github.com/gigboard/community-moderation/internal/platform/observability"
	"github.com/gigboard/community-moderation/internal/platform/worker"
	db "github.com/gigboard/community-moderation/internal/storage"
)

// App holds the application dependencies and provides methods to run different modes.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger

	bus     *events.Bus
	service *moderation.Service
	intake  *intake.Intake
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	bus := events.NewBus(logger)
	service := moderation.NewService(database, bus, logger)

	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
		bus:      bus,
		service:  service,
		intake:   intake.New(database, service, logger),
	}
}

// RunServe runs the intake and admin API mode. The admin handler is mounted
// on the health server under /api/ so one port carries the whole surface.
func (a *App) RunServe(ctx context.Context) error {
	a.logger.Info().Msg("Starting serve mode")

	stream := admin.NewStream(a.bus, a.logger)
	handler := admin.NewHandler(a.service, a.intake, stream, a.cfg.AdminToken, a.cfg.OverviewWindowDays, a.logger)

	srv := observability.NewServerWithAPI(a.database, a.cfg.HTTPPort, handler, a.logger)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("serve mode: %w", err)
	}

	return nil
}

// RunWorker runs the worker mode: a ticker loop refreshing the queue gauges
// so dashboards track backlog size and age without hitting the API.
func (a *App) RunWorker(ctx context.Context) error {
	a.logger.Info().Msg("Starting worker mode")

	err := worker.SingleTickerLoop(ctx, worker.SingleTickerConfig{
		Name:       "queue-metrics",
		Interval:   a.cfg.QueueMetricsInterval,
		RunOnStart: true,
		OnTick:     a.refreshQueueGauges,
		Logger:     a.logger,
	})
	if err != nil {
		return fmt.Errorf("worker mode: %w", err)
	}

	return nil
}

// StartHealthServer starts the health check and metrics server without the
// admin API, for worker deployments.
func (a *App) StartHealthServer(ctx context.Context) error {
	srv := observability.NewServer(a.database, a.cfg.HTTPPort, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}

func (a *App) refreshQueueGauges(ctx context.Context) {
	defer worker.RecoverPanic(a.logger, "refresh queue gauges")

	size, err := a.database.OpenQueueSize(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("queue size query failed")

		return
	}

	observability.QueueSize.Set(float64(size))

	age, err := a.database.OldestOpenEventAge(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("oldest open event query failed")

		return
	}

	if age == nil {
		observability.QueueOldestAgeSeconds.Set(0)

		return
	}

	observability.QueueOldestAgeSeconds.Set(age.Seconds())
}
