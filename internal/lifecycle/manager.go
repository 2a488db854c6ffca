// Package lifecycle owns the deletion state machine for removed apps:
// detected → persisted → notified → processed (restored or removed). Every
// transition is an idempotent merge-upsert against the remote store, so a
// pass abandoned mid-way can safely rerun from the old baseline.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nestwatch/nestwatch/internal/model"
	"github.com/nestwatch/nestwatch/internal/notify"
	"github.com/nestwatch/nestwatch/internal/remote"
)

// BaselineEditor is the slice of the agent's store view that restore needs:
// re-adding a restored app to the known-apps baseline so the next pass does
// not re-detect it as removed.
type BaselineEditor interface {
	KnownApps(ctx context.Context) ([]string, error)
	SetKnownApps(ctx context.Context, appIDs []string) error
}

// Manager drives DeletedAppRecord transitions.
type Manager struct {
	docs     remote.DocStore
	notifier notify.Notifier
	baseline BaselineEditor
	log      zerolog.Logger
	now      func() time.Time
}

// NewManager wires the lifecycle manager.
func NewManager(docs remote.DocStore, notifier notify.Notifier, baseline BaselineEditor, log zerolog.Logger) *Manager {
	return &Manager{docs: docs, notifier: notifier, baseline: baseline, log: log, now: time.Now}
}

// HandleRemoved processes one removal detection. If an unprocessed record
// already exists for the composite key the detection is dropped silently:
// the removal is already tracked and a duplicate would violate the
// one-unprocessed-record rule. The returned error is non-nil only when the
// remote persist failed, which must hold back the baseline advance.
func (m *Manager) HandleRemoved(ctx context.Context, ownerID, appID, displayName string) error {
	key := model.CompositeKey(ownerID, appID)

	existing, err := m.docs.Get(ctx, model.CollectionDeletedApps, key)
	switch {
	case err == nil:
		if !remote.BoolField(existing, "isProcessed") {
			m.log.Debug().Str("key", key).Msg("removal already tracked")
			return nil
		}
	case errors.Is(err, model.ErrNotFound):
		// first observation
	default:
		return fmt.Errorf("deletion guard lookup: %w", err)
	}

	rec := model.DeletedAppRecord{
		AppID:        appID,
		DisplayName:  displayName,
		DetectedAt:   m.now().UTC(),
		OwnerID:      ownerID,
		WasMonitored: m.wasMonitored(ctx, key),
		IsProcessed:  false,
	}
	if rec.DisplayName == "" {
		rec.DisplayName = appID
	}

	if err := m.docs.Upsert(ctx, model.CollectionDeletedApps, key, recordFields(rec)); err != nil {
		return fmt.Errorf("persist deletion: %w", err)
	}

	// Best-effort: a lost notification never blocks the record.
	if err := m.notifier.Notify(ctx, notify.CategoryAppDeleted, notify.Payload{
		AppID:       rec.AppID,
		DisplayName: rec.DisplayName,
		OwnerID:     rec.OwnerID,
	}); err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("deletion notification failed")
	}

	m.log.Info().Str("key", key).Bool("wasMonitored", rec.WasMonitored).Msg("app removal recorded")
	return nil
}

// Restore is the guardian's "bring it back" action: recreate the restriction
// with the default limit, mark the record processed, and re-add the app to
// the baseline. Safe to call repeatedly.
func (m *Manager) Restore(ctx context.Context, ownerID, appID string) error {
	key := model.CompositeKey(ownerID, appID)
	if _, err := m.docs.Get(ctx, model.CollectionDeletedApps, key); err != nil {
		return fmt.Errorf("restore %s: %w", key, err)
	}

	restriction := remote.Fields{
		"appId":         appID,
		"ownerId":       ownerID,
		"timeLimit":     model.DefaultRestrictionSeconds,
		"isDisabled":    false,
		"dailyUsage":    float64(0),
		"lastResetDate": m.now().UTC().Format(time.RFC3339Nano),
	}
	if err := m.docs.Upsert(ctx, model.CollectionAppRestrictions, key, restriction); err != nil {
		return fmt.Errorf("recreate restriction %s: %w", key, err)
	}

	if err := m.markProcessed(ctx, key); err != nil {
		return err
	}

	known, err := m.baseline.KnownApps(ctx)
	if err != nil {
		return fmt.Errorf("read baseline: %w", err)
	}
	for _, id := range known {
		if id == appID {
			return nil
		}
	}
	if err := m.baseline.SetKnownApps(ctx, append(known, appID)); err != nil {
		return fmt.Errorf("re-add %s to baseline: %w", appID, err)
	}

	m.log.Info().Str("key", key).Msg("deleted app restored")
	return nil
}

// Remove is the guardian's "let it go" action: disable any restriction and
// mark the record processed. The baseline stays without the app, so a later
// reinstall is detected as new again.
func (m *Manager) Remove(ctx context.Context, ownerID, appID string) error {
	key := model.CompositeKey(ownerID, appID)
	if _, err := m.docs.Get(ctx, model.CollectionDeletedApps, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}

	disabled := remote.Fields{
		"appId":      appID,
		"ownerId":    ownerID,
		"timeLimit":  float64(0),
		"isDisabled": true,
	}
	if err := m.docs.Upsert(ctx, model.CollectionAppRestrictions, key, disabled); err != nil {
		return fmt.Errorf("disable restriction %s: %w", key, err)
	}

	if err := m.markProcessed(ctx, key); err != nil {
		return err
	}

	m.log.Info().Str("key", key).Msg("deleted app removed")
	return nil
}

// ListDeleted returns an owner's deletion records, optionally only the
// unprocessed ones.
func (m *Manager) ListDeleted(ctx context.Context, ownerID string, onlyUnprocessed bool) ([]model.DeletedAppRecord, error) {
	docs, err := m.docs.ListByOwner(ctx, model.CollectionDeletedApps, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]model.DeletedAppRecord, 0, len(docs))
	for _, f := range docs {
		rec := recordFromFields(f)
		if onlyUnprocessed && rec.IsProcessed {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// markProcessed flips only the processed flag; the merge preserves
// detectedAt and the rest of the record.
func (m *Manager) markProcessed(ctx context.Context, key string) error {
	if err := m.docs.Upsert(ctx, model.CollectionDeletedApps, key, remote.Fields{
		"isProcessed": true,
	}); err != nil {
		return fmt.Errorf("mark processed %s: %w", key, err)
	}
	return nil
}

// wasMonitored snapshots whether an active restriction with a positive time
// limit existed at detection time. Not re-evaluated later.
func (m *Manager) wasMonitored(ctx context.Context, key string) bool {
	f, err := m.docs.Get(ctx, model.CollectionAppRestrictions, key)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			m.log.Warn().Err(err).Str("key", key).Msg("restriction lookup failed")
		}
		return false
	}
	return remote.FloatField(f, "timeLimit") > 0 && !remote.BoolField(f, "isDisabled")
}

func recordFields(r model.DeletedAppRecord) remote.Fields {
	return remote.Fields{
		"appId":        r.AppID,
		"displayName":  r.DisplayName,
		"detectedAt":   r.DetectedAt.Format(time.RFC3339Nano),
		"ownerId":      r.OwnerID,
		"wasMonitored": r.WasMonitored,
		"isProcessed":  r.IsProcessed,
	}
}

func recordFromFields(f remote.Fields) model.DeletedAppRecord {
	return model.DeletedAppRecord{
		AppID:        remote.StringField(f, "appId"),
		DisplayName:  remote.StringField(f, "displayName"),
		DetectedAt:   remote.TimeField(f, "detectedAt"),
		OwnerID:      remote.StringField(f, "ownerId"),
		WasMonitored: remote.BoolField(f, "wasMonitored"),
		IsProcessed:  remote.BoolField(f, "isProcessed"),
	}
}
