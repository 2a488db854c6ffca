package statestore

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/nestwatch/nestwatch/internal/model"
)

// ReporterView is the reporting context's handle on the store. It can write
// only the usage.* key family and read everything.
type ReporterView struct {
	reader
}

// AgentView is the host context's handle on the store. It can write only the
// recon.* key family and read everything.
type AgentView struct {
	reader
}

// NewReporterView wraps a store for the reporting context.
func NewReporterView(s *Store, log zerolog.Logger) *ReporterView {
	return &ReporterView{reader: reader{s: s, log: log}}
}

// NewAgentView wraps a store for the host context.
func NewAgentView(s *Store, log zerolog.Logger) *AgentView {
	return &AgentView{reader: reader{s: s, log: log}}
}

// --- Reporter-owned writes ---

// SetUsageRecords replaces the per-app usage aggregate map.
func (v *ReporterView) SetUsageRecords(ctx context.Context, recs map[string]model.AppUsageRecord) error {
	return v.putJSON(ctx, KeyUsageRecords, recs)
}

// SetObservedApps replaces the currently-observed app id list (sorted). An
// empty list is encoded as [] rather than null: readers distinguish a
// written-empty snapshot from a never-written one.
func (v *ReporterView) SetObservedApps(ctx context.Context, appIDs []string) error {
	sorted := make([]string, 0, len(appIDs))
	sorted = append(sorted, appIDs...)
	sort.Strings(sorted)
	return v.putJSON(ctx, KeyObservedApps, sorted)
}

// SetLastUpdate stamps the last aggregation time.
func (v *ReporterView) SetLastUpdate(ctx context.Context, t time.Time) error {
	return v.s.set(ctx, KeyLastUpdate, []byte(t.UTC().Format(time.RFC3339Nano)))
}

// SetNewAppQueue replaces the new-app-probe queue.
func (v *ReporterView) SetNewAppQueue(ctx context.Context, appIDs []string) error {
	return v.putJSON(ctx, KeyNewAppQueue, appIDs)
}

// --- Agent-owned writes ---

// SetKnownApps advances the reconciled inventory baseline (sorted).
func (v *AgentView) SetKnownApps(ctx context.Context, appIDs []string) error {
	sorted := make([]string, 0, len(appIDs))
	sorted = append(sorted, appIDs...)
	sort.Strings(sorted)
	return v.putJSON(ctx, KeyKnownApps, sorted)
}

// SetStatus writes the best-effort pass status blob.
func (v *AgentView) SetStatus(ctx context.Context, st model.ReconcileStatus) error {
	return v.putJSON(ctx, KeyReconStatus, st)
}

// --- Shared reads ---

// reader provides the read side common to both views. Malformed or missing
// values decode to empty values rather than failing the pass; decode
// failures are logged once per call.
type reader struct {
	s   *Store
	log zerolog.Logger
}

// UsageRecords returns the per-app usage aggregates, empty when absent or
// malformed.
func (r reader) UsageRecords(ctx context.Context) (map[string]model.AppUsageRecord, error) {
	out := map[string]model.AppUsageRecord{}
	if err := r.getJSON(ctx, KeyUsageRecords, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]model.AppUsageRecord{}
	}
	return out, nil
}

// ObservedApps returns the last-written observed app id list.
func (r reader) ObservedApps(ctx context.Context) ([]string, error) {
	var out []string
	if err := r.getJSON(ctx, KeyObservedApps, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// KnownApps returns the reconciled baseline, empty on first run.
func (r reader) KnownApps(ctx context.Context) ([]string, error) {
	var out []string
	if err := r.getJSON(ctx, KeyKnownApps, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NewAppQueue returns the pending new-app-probe queue.
func (r reader) NewAppQueue(ctx context.Context) ([]string, error) {
	var out []string
	if err := r.getJSON(ctx, KeyNewAppQueue, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Status returns the last reconcile status, zero when absent.
func (r reader) Status(ctx context.Context) (model.ReconcileStatus, error) {
	var st model.ReconcileStatus
	if err := r.getJSON(ctx, KeyReconStatus, &st); err != nil {
		return model.ReconcileStatus{}, err
	}
	return st, nil
}

// LastUpdate returns the last aggregation timestamp, zero when absent.
func (r reader) LastUpdate(ctx context.Context) (time.Time, error) {
	raw, err := r.s.Get(ctx, KeyLastUpdate)
	if err != nil {
		return time.Time{}, err
	}
	if len(raw) == 0 {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		r.log.Warn().Str("key", KeyLastUpdate).Err(err).Msg("malformed value, treating as absent")
		return time.Time{}, nil
	}
	return t, nil
}

// getJSON decodes the value under key into dst. A missing key leaves dst
// untouched; a malformed value is logged and treated as absent. Only real
// I/O errors propagate.
func (r reader) getJSON(ctx context.Context, key string, dst interface{}) error {
	raw, err := r.s.Get(ctx, key)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		r.log.Warn().Str("key", key).Err(err).Msg("malformed value, treating as absent")
	}
	return nil
}

func (r reader) putJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.s.set(ctx, key, raw)
}
