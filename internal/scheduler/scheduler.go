// Package scheduler drives the host context's recurring reconciliation pass:
// read the shared store, diff inventory, run the deletion lifecycle, sync
// usage aggregates, and advance the known-apps baseline. Passes are
// single-flight; a timer firing during a running pass is skipped.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nestwatch/nestwatch/internal/identity"
	"github.com/nestwatch/nestwatch/internal/inventory"
	"github.com/nestwatch/nestwatch/internal/lifecycle"
	"github.com/nestwatch/nestwatch/internal/model"
	"github.com/nestwatch/nestwatch/internal/notify"
	"github.com/nestwatch/nestwatch/internal/remote"
	"github.com/nestwatch/nestwatch/internal/statestore"
)

// DefaultInterval is the reconciliation cadence when none is configured.
const DefaultInterval = 600 * time.Second

// Scheduler owns the pass loop. It is stateless across passes except for
// the known-apps baseline it keeps in the agent view.
type Scheduler struct {
	view      *statestore.AgentView
	lifecycle *lifecycle.Manager
	docs      remote.DocStore
	notifier  notify.Notifier
	resolver  identity.Resolver
	interval  time.Duration
	log       zerolog.Logger
	now       func() time.Time

	inFlight atomic.Bool
}

// New wires a scheduler.
func New(view *statestore.AgentView, lc *lifecycle.Manager, docs remote.DocStore,
	notifier notify.Notifier, resolver identity.Resolver, interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		view:      view,
		lifecycle: lc,
		docs:      docs,
		notifier:  notifier,
		resolver:  resolver,
		interval:  interval,
		log:       log,
		now:       time.Now,
	}
}

// Run executes passes on the configured interval until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("reconciliation scheduler starting")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("reconciliation scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := s.TryRunOnce(ctx); err != nil {
				// Nothing here is fatal; every failure degrades to
				// "try again next cycle".
				s.log.Error().Err(err).Msg("reconcile pass")
			}
		}
	}
}

// TryRunOnce runs a single pass unless one is already in flight, in which
// case it returns model.ErrPassInFlight and does nothing.
func (s *Scheduler) TryRunOnce(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Debug().Msg("pass already in flight, skipping")
		return model.ErrPassInFlight
	}
	defer s.inFlight.Store(false)
	return s.runPass(ctx)
}

// InFlight reports whether a pass is currently running.
func (s *Scheduler) InFlight() bool { return s.inFlight.Load() }

func (s *Scheduler) runPass(ctx context.Context) error {
	owner, err := s.resolver.ActiveOwner(ctx)
	if err != nil {
		// No signed-in guardian: skip the whole pass, mutate nothing.
		s.log.Debug().Err(err).Msg("no active owner, pass skipped")
		return nil
	}

	status := model.ReconcileStatus{LastRun: s.now().UTC()}
	prev, err := s.view.Status(ctx)
	if err == nil {
		status.LastSuccess = prev.LastSuccess
	}

	err = s.reconcile(ctx, owner)
	if err != nil {
		status.LastError = err.Error()
	} else {
		status.LastSuccess = status.LastRun
	}
	if serr := s.view.SetStatus(ctx, status); serr != nil {
		s.log.Warn().Err(serr).Msg("status write failed")
	}
	return err
}

func (s *Scheduler) reconcile(ctx context.Context, owner string) error {
	observed, err := s.view.ObservedApps(ctx)
	if err != nil {
		return fmt.Errorf("read observed apps: %w", err)
	}
	if observed == nil {
		// The reporter has not written a snapshot yet; treat as no data
		// this pass rather than as an empty inventory.
		s.log.Debug().Msg("no inventory snapshot yet")
		return nil
	}

	records, err := s.view.UsageRecords(ctx)
	if err != nil {
		return fmt.Errorf("read usage records: %w", err)
	}
	baseline, err := s.view.KnownApps(ctx)
	if err != nil {
		return fmt.Errorf("read baseline: %w", err)
	}

	res := inventory.Diff(baseline, observed)
	s.log.Info().
		Str("owner", owner).
		Int("new", len(res.NewApps)).
		Int("removed", len(res.RemovedApps)).
		Bool("bootstrap", res.Bootstrap).
		Msg("inventory diff")

	// Removals first: the baseline may only advance once every removal in
	// this pass has been durably recorded remotely. A failed write holds
	// the whole baseline back; completed sibling writes stay recorded and
	// the next pass re-detects only what is still missing.
	failures := 0
	for _, appID := range res.RemovedApps {
		name := ""
		if rec, ok := records[appID]; ok {
			name = rec.DisplayName
		}
		if err := s.lifecycle.HandleRemoved(ctx, owner, appID, name); err != nil {
			failures++
			s.log.Error().Err(err).Str("app", appID).Msg("removal not persisted")
		}
	}

	// New-app signals are delegated and never retried locally. The
	// bootstrap pass reports every installed app as new, so it stays quiet.
	if res.Bootstrap {
		if len(res.NewApps) > 0 {
			s.log.Info().Int("apps", len(res.NewApps)).Msg("bootstrap pass, new-app signals suppressed")
		}
	} else {
		for _, appID := range res.NewApps {
			payload := notify.Payload{AppID: appID, DisplayName: appID, OwnerID: owner}
			if rec, ok := records[appID]; ok && rec.DisplayName != "" {
				payload.DisplayName = rec.DisplayName
			}
			if err := s.notifier.Notify(ctx, notify.CategoryNewAppDetected, payload); err != nil {
				s.log.Warn().Err(err).Str("app", appID).Msg("new-app notification failed")
			}
		}
	}

	s.syncUsage(ctx, owner, records)

	if failures > 0 {
		return fmt.Errorf("%d removal(s) not persisted, baseline held back", failures)
	}
	if err := s.view.SetKnownApps(ctx, observed); err != nil {
		return fmt.Errorf("advance baseline: %w", err)
	}
	return nil
}

// syncUsage pushes usage aggregates to the remote store. Best-effort: usage
// reporting never gates the deletion pipeline or the baseline.
func (s *Scheduler) syncUsage(ctx context.Context, owner string, records map[string]model.AppUsageRecord) {
	for appID, rec := range records {
		fields := remote.Fields{
			"appId":             appID,
			"ownerId":           owner,
			"displayName":       rec.DisplayName,
			"cumulativeSeconds": rec.CumulativeSeconds,
			"hourlyBreakdown":   rec.HourlyBreakdown,
		}
		key := model.CompositeKey(owner, appID)
		if err := s.docs.Upsert(ctx, model.CollectionAppUsage, key, fields); err != nil {
			s.log.Warn().Err(err).Str("app", appID).Msg("usage sync failed")
		}
	}
}
