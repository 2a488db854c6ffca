// Package agentservice runs the host context: the reconciliation scheduler,
// the guardian HTTP API, and health checking, all bound to one signal
// context.
package agentservice

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nestwatch/nestwatch/internal/api"
	"github.com/nestwatch/nestwatch/internal/config"
	"github.com/nestwatch/nestwatch/internal/health"
	"github.com/nestwatch/nestwatch/internal/identity"
	"github.com/nestwatch/nestwatch/internal/lifecycle"
	"github.com/nestwatch/nestwatch/internal/logger"
	"github.com/nestwatch/nestwatch/internal/notify"
	"github.com/nestwatch/nestwatch/internal/remote"
	"github.com/nestwatch/nestwatch/internal/scheduler"
	"github.com/nestwatch/nestwatch/internal/statestore"
)

// Run starts the nestwatch agent and blocks until shutdown or error.
func Run() error {
	log := logger.New("nestwatch-agent")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}
	log.Info().
		Str("state_path", cfg.StatePath).
		Str("remote_driver", cfg.RemoteDriver).
		Int("http_port", cfg.HTTPPort).
		Int("sync_interval_s", cfg.SyncIntervalSeconds).
		Msg("agent starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := statestore.Open(cfg.StatePath)
	if err != nil {
		log.Error().Err(err).Msg("state store unavailable")
		return err
	}
	defer func() { _ = store.Close() }()

	docs, err := remote.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("remote store unavailable")
		return err
	}

	view := statestore.NewAgentView(store, log)
	notifier := notify.New(cfg.NotifyWebhookURL, log)
	resolver := identity.Static{OwnerID: cfg.OwnerID}
	lc := lifecycle.NewManager(docs, notifier, view, log)
	sched := scheduler.New(view, lc, docs, notifier, resolver,
		time.Duration(cfg.SyncIntervalSeconds)*time.Second, log)

	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	healthInterval := time.Duration(cfg.HealthIntervalSeconds) * time.Second
	storeChecker := health.NewChecker("statestore", store, probeTimeout, log)
	remoteChecker := health.NewChecker("remote", docs, probeTimeout, log)
	go storeChecker.Start(ctx, healthInterval)
	go remoteChecker.Start(ctx, healthInterval)

	handlers := api.NewHandlers(lc, view, sched, resolver, func() bool {
		return health.AllHealthy(storeChecker, remoteChecker)
	}, log)
	router := api.NewRouter(handlers, log)

	server := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("agent exit")
		return err
	}
	log.Info().Msg("agent exited")
	return nil
}
