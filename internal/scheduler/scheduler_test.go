package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nestwatch/nestwatch/internal/identity"
	"github.com/nestwatch/nestwatch/internal/lifecycle"
	"github.com/nestwatch/nestwatch/internal/model"
	"github.com/nestwatch/nestwatch/internal/notify"
	"github.com/nestwatch/nestwatch/internal/remote"
	"github.com/nestwatch/nestwatch/internal/statestore"
)

// --- Fakes ---

type fakeDocStore struct {
	mu              sync.Mutex
	docs            map[string]map[string]remote.Fields
	failCollections map[string]error // collection -> upsert error
	blockUpsert     chan struct{}    // when set, Upsert waits until closed
	started         chan struct{}    // signaled once an Upsert begins
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{
		docs:            map[string]map[string]remote.Fields{},
		failCollections: map[string]error{},
	}
}

func (f *fakeDocStore) Upsert(_ context.Context, collection, key string, fields remote.Fields) error {
	f.mu.Lock()
	block := f.blockUpsert
	started := f.started
	f.mu.Unlock()
	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failCollections[collection]; err != nil {
		return err
	}
	if f.docs[collection] == nil {
		f.docs[collection] = map[string]remote.Fields{}
	}
	merged := f.docs[collection][key]
	if merged == nil {
		merged = remote.Fields{}
	}
	for k, v := range fields {
		merged[k] = v
	}
	f.docs[collection][key] = merged
	return nil
}

func (f *fakeDocStore) Get(_ context.Context, collection, key string) (remote.Fields, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fields, ok := f.docs[collection][key]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := remote.Fields{}
	for k, v := range fields {
		out[k] = v
	}
	return out, nil
}

func (f *fakeDocStore) ListByOwner(_ context.Context, collection, ownerID string) (map[string]remote.Fields, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]remote.Fields{}
	for key, fields := range f.docs[collection] {
		if remote.StringField(fields, "ownerId") == ownerID {
			out[key] = fields
		}
	}
	return out, nil
}

func (f *fakeDocStore) HealthPing(context.Context) error { return nil }

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Payload
	cats []notify.Category
}

func (n *fakeNotifier) Notify(_ context.Context, c notify.Category, p notify.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cats = append(n.cats, c)
	n.sent = append(n.sent, p)
	return nil
}

func (n *fakeNotifier) byCategory(c notify.Category) []notify.Payload {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Payload
	for i, cat := range n.cats {
		if cat == c {
			out = append(out, n.sent[i])
		}
	}
	return out
}

// --- Harness ---

type harness struct {
	sched    *Scheduler
	reporter *statestore.ReporterView
	agent    *statestore.AgentView
	docs     *fakeDocStore
	notifier *fakeNotifier
}

func newHarness(t *testing.T, owner string) *harness {
	t.Helper()
	store, err := statestore.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	log := zerolog.Nop()
	agent := statestore.NewAgentView(store, log)
	docs := newFakeDocStore()
	notifier := &fakeNotifier{}
	lc := lifecycle.NewManager(docs, notifier, agent, log)
	sched := New(agent, lc, docs, notifier, identity.Static{OwnerID: owner}, time.Hour, log)

	return &harness{
		sched:    sched,
		reporter: statestore.NewReporterView(store, log),
		agent:    agent,
		docs:     docs,
		notifier: notifier,
	}
}

func (h *harness) seed(t *testing.T, baseline, observed []string, recs map[string]model.AppUsageRecord) {
	t.Helper()
	ctx := context.Background()
	if baseline != nil {
		if err := h.agent.SetKnownApps(ctx, baseline); err != nil {
			t.Fatal(err)
		}
	}
	if observed != nil {
		if err := h.reporter.SetObservedApps(ctx, observed); err != nil {
			t.Fatal(err)
		}
	}
	if recs != nil {
		if err := h.reporter.SetUsageRecords(ctx, recs); err != nil {
			t.Fatal(err)
		}
	}
}

// --- Tests ---

func TestBootstrapPassIsQuiet(t *testing.T) {
	h := newHarness(t, "owner1")
	h.seed(t, nil, []string{"A", "B"}, nil)
	ctx := context.Background()

	if err := h.sched.TryRunOnce(ctx); err != nil {
		t.Fatal(err)
	}

	if docs, _ := h.docs.ListByOwner(ctx, model.CollectionDeletedApps, "owner1"); len(docs) != 0 {
		t.Fatalf("bootstrap pass created deletion records: %v", docs)
	}
	if got := h.notifier.byCategory(notify.CategoryNewAppDetected); len(got) != 0 {
		t.Fatalf("bootstrap pass sent new-app notifications: %v", got)
	}

	known, err := h.agent.KnownApps(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(known) != 2 {
		t.Fatalf("baseline not advanced on bootstrap: %v", known)
	}
}

func TestRemovalDetectedAndBaselineAdvanced(t *testing.T) {
	h := newHarness(t, "owner1")
	h.seed(t, []string{"A", "B", "C"}, []string{"A", "C"}, map[string]model.AppUsageRecord{
		"B": {AppID: "B", DisplayName: "App B"},
	})
	ctx := context.Background()

	if err := h.sched.TryRunOnce(ctx); err != nil {
		t.Fatal(err)
	}

	rec, err := h.docs.Get(ctx, model.CollectionDeletedApps, "owner1_B")
	if err != nil {
		t.Fatalf("deletion record missing: %v", err)
	}
	if remote.BoolField(rec, "isProcessed") {
		t.Fatal("fresh deletion record must be unprocessed")
	}
	if remote.StringField(rec, "displayName") != "App B" {
		t.Fatalf("displayName = %q", remote.StringField(rec, "displayName"))
	}

	known, _ := h.agent.KnownApps(ctx)
	want := []string{"A", "C"}
	if len(known) != 2 || known[0] != want[0] || known[1] != want[1] {
		t.Fatalf("baseline = %v, want %v", known, want)
	}

	status, _ := h.agent.Status(ctx)
	if status.LastError != "" {
		t.Fatalf("unexpected status error: %s", status.LastError)
	}
	if status.LastSuccess.IsZero() {
		t.Fatal("successful pass must stamp LastSuccess")
	}
}

func TestFailedUpsertHoldsBaselineBack(t *testing.T) {
	h := newHarness(t, "owner1")
	h.seed(t, []string{"A", "B", "C"}, []string{"A", "C"}, nil)
	h.docs.failCollections[model.CollectionDeletedApps] = errors.New("remote unavailable")
	ctx := context.Background()

	if err := h.sched.TryRunOnce(ctx); err == nil {
		t.Fatal("pass must report the failed removal")
	}

	known, _ := h.agent.KnownApps(ctx)
	if len(known) != 3 {
		t.Fatalf("baseline advanced past a failed removal: %v", known)
	}
	status, _ := h.agent.Status(ctx)
	if status.LastError == "" {
		t.Fatal("status must carry the pass error")
	}

	// Remote heals; the retry pass re-detects the removal from the old
	// baseline and only then advances.
	delete(h.docs.failCollections, model.CollectionDeletedApps)
	if err := h.sched.TryRunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := h.docs.Get(ctx, model.CollectionDeletedApps, "owner1_B"); err != nil {
		t.Fatalf("retry pass did not persist the removal: %v", err)
	}
	known, _ = h.agent.KnownApps(ctx)
	if len(known) != 2 {
		t.Fatalf("baseline not advanced after successful retry: %v", known)
	}
	status, _ = h.agent.Status(ctx)
	if status.LastError != "" {
		t.Fatalf("status error not cleared on success: %s", status.LastError)
	}
}

func TestNewAppsNotifiedAfterBootstrap(t *testing.T) {
	h := newHarness(t, "owner1")
	h.seed(t, []string{"A"}, []string{"A", "B"}, map[string]model.AppUsageRecord{
		"B": {AppID: "B", DisplayName: "App B"},
	})
	ctx := context.Background()

	if err := h.sched.TryRunOnce(ctx); err != nil {
		t.Fatal(err)
	}

	got := h.notifier.byCategory(notify.CategoryNewAppDetected)
	if len(got) != 1 || got[0].AppID != "B" || got[0].DisplayName != "App B" {
		t.Fatalf("new-app notifications = %v", got)
	}
}

func TestNoOwnerSkipsPass(t *testing.T) {
	h := newHarness(t, "")
	h.seed(t, []string{"A", "B"}, []string{"A"}, nil)
	ctx := context.Background()

	if err := h.sched.TryRunOnce(ctx); err != nil {
		t.Fatal(err)
	}

	if docs, _ := h.docs.ListByOwner(ctx, model.CollectionDeletedApps, ""); len(docs) != 0 {
		t.Fatal("pass without an owner must not write remotely")
	}
	known, _ := h.agent.KnownApps(ctx)
	if len(known) != 2 {
		t.Fatalf("pass without an owner must not touch the baseline: %v", known)
	}
}

func TestMissingSnapshotIsNoData(t *testing.T) {
	h := newHarness(t, "owner1")
	h.seed(t, []string{"A", "B"}, nil, nil)
	ctx := context.Background()

	if err := h.sched.TryRunOnce(ctx); err != nil {
		t.Fatal(err)
	}

	if docs, _ := h.docs.ListByOwner(ctx, model.CollectionDeletedApps, "owner1"); len(docs) != 0 {
		t.Fatal("a missing snapshot must not be read as an empty inventory")
	}
	known, _ := h.agent.KnownApps(ctx)
	if len(known) != 2 {
		t.Fatalf("baseline changed with no snapshot: %v", known)
	}
}

func TestUsageAggregatesSynced(t *testing.T) {
	h := newHarness(t, "owner1")
	h.seed(t, []string{"A"}, []string{"A"}, map[string]model.AppUsageRecord{
		"A": {AppID: "A", DisplayName: "App A", CumulativeSeconds: 600},
	})
	ctx := context.Background()

	if err := h.sched.TryRunOnce(ctx); err != nil {
		t.Fatal(err)
	}

	usage, err := h.docs.Get(ctx, model.CollectionAppUsage, "owner1_A")
	if err != nil {
		t.Fatalf("usage aggregate not synced: %v", err)
	}
	if got := remote.FloatField(usage, "cumulativeSeconds"); got != 600 {
		t.Fatalf("cumulativeSeconds = %v, want 600", got)
	}
}

func TestPassesNeverOverlap(t *testing.T) {
	h := newHarness(t, "owner1")
	h.seed(t, []string{"A"}, []string{"A"}, map[string]model.AppUsageRecord{
		"A": {AppID: "A"},
	})

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	h.docs.mu.Lock()
	h.docs.blockUpsert = block
	h.docs.started = started
	h.docs.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- h.sched.TryRunOnce(context.Background()) }()

	<-started
	if err := h.sched.TryRunOnce(context.Background()); !errors.Is(err, model.ErrPassInFlight) {
		t.Fatalf("overlapping pass returned %v, want ErrPassInFlight", err)
	}
	if !h.sched.InFlight() {
		t.Fatal("InFlight must report the running pass")
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if h.sched.InFlight() {
		t.Fatal("InFlight must clear after the pass")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	h := newHarness(t, "owner1")
	h.seed(t, []string{"A", "B", "C"}, []string{"A", "C"}, nil)
	ctx := context.Background()

	if err := h.sched.TryRunOnce(ctx); err != nil {
		t.Fatal(err)
	}

	lc := lifecycle.NewManager(h.docs, h.notifier, h.agent, zerolog.Nop())
	if err := lc.Restore(ctx, "owner1", "B"); err != nil {
		t.Fatal(err)
	}

	known, _ := h.agent.KnownApps(ctx)
	want := []string{"A", "B", "C"}
	if len(known) != 3 {
		t.Fatalf("baseline = %v, want %v", known, want)
	}
	for i := range want {
		if known[i] != want[i] {
			t.Fatalf("baseline = %v, want %v", known, want)
		}
	}

	restriction, err := h.docs.Get(ctx, model.CollectionAppRestrictions, "owner1_B")
	if err != nil {
		t.Fatal(err)
	}
	if got := remote.FloatField(restriction, "timeLimit"); got != model.DefaultRestrictionSeconds {
		t.Fatalf("timeLimit = %v, want default %v", got, model.DefaultRestrictionSeconds)
	}

	// The restored app is still absent from the device, so the next pass
	// re-detects the removal; the guard keeps it from duplicating while a
	// fresh unprocessed record is open.
	if err := h.sched.TryRunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	recs, err := lc.ListDeleted(ctx, "owner1", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("unprocessed records = %d, want exactly 1", len(recs))
	}
}
