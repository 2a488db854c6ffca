// Package api serves the guardian-facing HTTP surface of the agent: deleted
// app lifecycle actions, usage snapshots, manual sync, and health.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/nestwatch/nestwatch/internal/api/respond"
	"github.com/nestwatch/nestwatch/internal/identity"
	"github.com/nestwatch/nestwatch/internal/lifecycle"
	"github.com/nestwatch/nestwatch/internal/model"
	"github.com/nestwatch/nestwatch/internal/statestore"
)

// PassRunner triggers a reconciliation pass on demand.
type PassRunner interface {
	TryRunOnce(ctx context.Context) error
}

// Handlers holds the API's collaborators.
type Handlers struct {
	lifecycle *lifecycle.Manager
	view      *statestore.AgentView
	runner    PassRunner
	resolver  identity.Resolver
	healthy   func() bool
	log       zerolog.Logger
}

// NewHandlers wires the handler set.
func NewHandlers(lc *lifecycle.Manager, view *statestore.AgentView, runner PassRunner,
	resolver identity.Resolver, healthy func() bool, log zerolog.Logger) *Handlers {
	return &Handlers{lifecycle: lc, view: view, runner: runner, resolver: resolver, healthy: healthy, log: log}
}

// NewRouter builds the agent's HTTP router.
func NewRouter(h *Handlers, log zerolog.Logger) *mux.Router {
	root := mux.NewRouter()
	root.Use(Recover(log))
	root.Use(RequestLog(log))

	root.HandleFunc("/api/health", h.CheckHealth).Methods("GET")
	root.HandleFunc("/api/sync", h.TriggerSync).Methods("POST")
	root.HandleFunc("/api/owners/{ownerId}/deleted-apps", h.ListDeletedApps).Methods("GET")
	root.HandleFunc("/api/owners/{ownerId}/deleted-apps/{appId}/restore", h.RestoreApp).Methods("POST")
	root.HandleFunc("/api/owners/{ownerId}/deleted-apps/{appId}/remove", h.RemoveApp).Methods("POST")
	root.HandleFunc("/api/owners/{ownerId}/usage", h.GetUsage).Methods("GET")
	return root
}

// CheckHealth reports aggregated component health.
func (h *Handlers) CheckHealth(w http.ResponseWriter, r *http.Request) {
	if h.healthy != nil && !h.healthy() {
		respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TriggerSync runs one reconciliation pass. 409 when a pass is in flight.
func (h *Handlers) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.TryRunOnce(r.Context()); err != nil {
		if errors.Is(err, model.ErrPassInFlight) {
			respond.WriteConflict(w, "a reconcile pass is already running")
			return
		}
		respond.WriteInternalError(w, err.Error())
		return
	}
	status, err := h.view.Status(r.Context())
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, status)
}

// ListDeletedApps returns an owner's deletion records. Pass processed=false
// to list only unprocessed ones.
func (h *Handlers) ListDeletedApps(w http.ResponseWriter, r *http.Request) {
	ownerID := mux.Vars(r)["ownerId"]
	if ownerID == "" {
		respond.WriteBadRequest(w, "ownerId required")
		return
	}
	onlyUnprocessed := r.URL.Query().Get("processed") == "false"

	recs, err := h.lifecycle.ListDeleted(r.Context(), ownerID, onlyUnprocessed)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"deletedApps": recs,
		"count":       len(recs),
	})
}

// RestoreApp recreates the app's restriction, marks the record processed,
// and re-adds the app to the baseline.
func (h *Handlers) RestoreApp(w http.ResponseWriter, r *http.Request) {
	ownerID, appID := mux.Vars(r)["ownerId"], mux.Vars(r)["appId"]
	if err := h.lifecycle.Restore(r.Context(), ownerID, appID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, "no deletion record for app")
			return
		}
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

// RemoveApp disables the app's restriction and marks the record processed.
func (h *Handlers) RemoveApp(w http.ResponseWriter, r *http.Request) {
	ownerID, appID := mux.Vars(r)["ownerId"], mux.Vars(r)["appId"]
	if err := h.lifecycle.Remove(r.Context(), ownerID, appID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, "no deletion record for app")
			return
		}
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// GetUsage returns the device's usage aggregates from the shared store.
func (h *Handlers) GetUsage(w http.ResponseWriter, r *http.Request) {
	ownerID := mux.Vars(r)["ownerId"]
	active, err := h.resolver.ActiveOwner(r.Context())
	if err != nil || active != ownerID {
		respond.WriteNotFound(w, "unknown owner")
		return
	}

	records, err := h.view.UsageRecords(r.Context())
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	lastUpdate, err := h.view.LastUpdate(r.Context())
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}

	var total float64
	for _, rec := range records {
		total += rec.CumulativeSeconds
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"apps":         records,
		"totalSeconds": total,
		"lastUpdate":   lastUpdate,
	})
}
