// Package aggregator turns raw activity segments into durable per-app usage
// aggregates in the shared state store. It runs in the reporting context and
// is the sole writer of the usage.* key family.
package aggregator

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nestwatch/nestwatch/internal/model"
	"github.com/nestwatch/nestwatch/internal/statestore"
)

// DefaultTimeRangeRetention bounds each app's time-range list (FIFO).
const DefaultTimeRangeRetention = 100

// Aggregator accumulates activity segments into AppUsageRecords.
type Aggregator struct {
	view      *statestore.ReporterView
	retention int
	log       zerolog.Logger
	now       func() time.Time
}

// New constructs an Aggregator writing through the given reporter view.
func New(view *statestore.ReporterView, retention int, log zerolog.Logger) *Aggregator {
	if retention <= 0 {
		retention = DefaultTimeRangeRetention
	}
	return &Aggregator{view: view, retention: retention, log: log, now: time.Now}
}

// ProcessInterval consumes one reporting interval's segment sequence and
// writes the updated aggregates, the observed app-id list, and the
// last-update timestamp to the store. Each segment is consumed exactly once.
// An empty sequence with nothing queued is a valid, silent no-op.
func (a *Aggregator) ProcessInterval(ctx context.Context, segments iter.Seq[model.ActivitySegment]) error {
	records, err := a.view.UsageRecords(ctx)
	if err != nil {
		return err
	}
	// New-app probes queued by threshold events surface as observed apps so
	// the next reconciliation pass classifies them as new.
	queued, err := a.view.NewAppQueue(ctx)
	if err != nil {
		return err
	}

	// The observed snapshot is built from this interval's segments, not from
	// the record map: aggregates are never pruned, so an uninstalled app must
	// drop out of the snapshot here for the host context to ever see the
	// removal.
	observed := map[string]struct{}{}
	consumed := 0
	for seg := range segments {
		a.apply(records, seg)
		for appID := range seg.PerAppDuration {
			observed[appID] = struct{}{}
		}
		consumed++
	}

	if consumed == 0 {
		if len(queued) == 0 {
			return nil
		}
		// No snapshot this interval; extend the previous one with the queued
		// probes rather than replacing it, so idle installed apps are not
		// misread as removed.
		return a.surfaceQueued(ctx, queued)
	}

	for _, appID := range queued {
		observed[appID] = struct{}{}
	}
	ids := make([]string, 0, len(observed))
	for appID := range observed {
		ids = append(ids, appID)
	}

	if err := a.view.SetUsageRecords(ctx, records); err != nil {
		return err
	}
	if err := a.view.SetObservedApps(ctx, ids); err != nil {
		return err
	}
	if len(queued) > 0 {
		if err := a.view.SetNewAppQueue(ctx, nil); err != nil {
			return err
		}
	}
	if err := a.view.SetLastUpdate(ctx, a.now()); err != nil {
		return err
	}

	a.log.Debug().Int("segments", consumed).Int("apps", len(ids)).Msg("interval aggregated")
	return nil
}

func (a *Aggregator) surfaceQueued(ctx context.Context, queued []string) error {
	prev, err := a.view.ObservedApps(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(prev))
	merged := prev
	for _, appID := range prev {
		seen[appID] = struct{}{}
	}
	for _, appID := range queued {
		if _, ok := seen[appID]; !ok {
			merged = append(merged, appID)
		}
	}
	if err := a.view.SetObservedApps(ctx, merged); err != nil {
		return err
	}
	return a.view.SetNewAppQueue(ctx, nil)
}

// apply folds one segment into the record map. Durations are non-negative
// seconds; zero-duration entries are recorded as time ranges but contribute
// nothing to totals or hour buckets.
func (a *Aggregator) apply(records map[string]model.AppUsageRecord, seg model.ActivitySegment) {
	hour := seg.BucketHour
	if hour < 0 || hour > 23 {
		hour = seg.Start.Local().Hour()
	}

	for appID, seconds := range seg.PerAppDuration {
		if seconds < 0 {
			a.log.Warn().Str("app", appID).Float64("seconds", seconds).Msg("negative duration dropped")
			continue
		}

		rec, ok := records[appID]
		if !ok {
			rec = model.AppUsageRecord{
				AppID:           appID,
				HourlyBreakdown: map[int]float64{},
			}
		}
		if rec.HourlyBreakdown == nil {
			rec.HourlyBreakdown = map[int]float64{}
		}
		if name, ok := seg.AppNames[appID]; ok && name != "" {
			rec.DisplayName = name
		}

		rec.CumulativeSeconds += seconds
		if seconds > 0 {
			rec.HourlyBreakdown[hour] += seconds
		}

		rec.TimeRanges = append(rec.TimeRanges, model.TimeRange{
			Start:     seg.Start,
			End:       seg.End,
			Seconds:   seconds,
			SessionID: uuid.NewString(),
		})
		if n := len(rec.TimeRanges); n > a.retention {
			rec.TimeRanges = rec.TimeRanges[n-a.retention:]
		}

		records[appID] = rec
	}
}
