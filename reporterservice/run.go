// Package reporterservice runs the reporting context: it drains activity
// segments from the spool, routes threshold events, and writes usage
// aggregates into the shared state store. It never touches the network.
package reporterservice

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nestwatch/nestwatch/internal/aggregator"
	"github.com/nestwatch/nestwatch/internal/config"
	"github.com/nestwatch/nestwatch/internal/events"
	"github.com/nestwatch/nestwatch/internal/logger"
	"github.com/nestwatch/nestwatch/internal/statestore"
)

// Run starts the usage reporter and blocks until shutdown or error.
func Run() error {
	log := logger.New("usage-reporter")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}
	log.Info().
		Str("state_path", cfg.StatePath).
		Str("spool_dir", cfg.SpoolDir).
		Int("report_interval_s", cfg.ReportIntervalSeconds).
		Msg("usage reporter starting")

	store, err := statestore.Open(cfg.StatePath)
	if err != nil {
		log.Error().Err(err).Msg("state store unavailable")
		return err
	}
	defer func() { _ = store.Close() }()

	view := statestore.NewReporterView(store, log)
	agg := aggregator.New(view, cfg.TimeRangeRetention, log)

	spool, err := aggregator.NewSpool(cfg.SpoolDir, log)
	if err != nil {
		log.Error().Err(err).Msg("spool unavailable")
		return err
	}

	router := events.NewRouter(log)
	router.Handle(events.EventNewAppThreshold, func(ctx context.Context, appID string) error {
		queued, err := view.NewAppQueue(ctx)
		if err != nil {
			return err
		}
		for _, id := range queued {
			if id == appID {
				return nil
			}
		}
		return view.SetNewAppQueue(ctx, append(queued, appID))
	})
	router.Handle(events.EventDailyThreshold, func(ctx context.Context, appID string) error {
		log.Info().Str("app", appID).Msg("daily usage threshold crossed")
		return nil
	})
	router.Handle(events.EventUsageThreshold, func(ctx context.Context, appID string) error {
		log.Info().Str("app", appID).Msg("per-app usage threshold crossed")
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wake, err := spool.Watch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("spool watcher unavailable, falling back to sweeps only")
		wake = nil
	}

	pass := func() {
		for _, ev := range spool.DrainEvents() {
			if err := router.Route(ctx, ev.Event, ev.AppID); err != nil {
				log.Error().Err(err).Str("event", ev.Event).Msg("threshold event failed")
			}
		}
		if err := agg.ProcessInterval(ctx, spool.Drain()); err != nil {
			log.Error().Err(err).Msg("interval aggregation failed")
		}
	}

	ticker := time.NewTicker(time.Duration(cfg.ReportIntervalSeconds) * time.Second)
	defer ticker.Stop()

	pass()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("usage reporter stopping")
			return nil
		case <-ticker.C:
			pass()
		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			pass()
		}
	}
}
