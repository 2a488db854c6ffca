// Package events routes threshold-crossing event identifiers from the
// reporting environment to their handlers. Identifiers are plain strings;
// anything unrecognized is logged and dropped, never fatal.
package events

import (
	"context"

	"github.com/rs/zerolog"
)

// Threshold event identifiers.
const (
	EventDailyThreshold  = "daily-threshold"
	EventNewAppThreshold = "new-app-threshold"
	EventUsageThreshold  = "usage-threshold"
)

// Handler processes one threshold event for one app.
type Handler func(ctx context.Context, appID string) error

// Router dispatches events by identifier.
type Router struct {
	handlers map[string]Handler
	log      zerolog.Logger
}

// NewRouter returns an empty router.
func NewRouter(log zerolog.Logger) *Router {
	return &Router{handlers: map[string]Handler{}, log: log}
}

// Handle registers a handler for an event identifier, replacing any
// previous registration.
func (r *Router) Handle(event string, h Handler) {
	r.handlers[event] = h
}

// Route dispatches one event. Unknown identifiers are logged at warn and
// ignored; handler errors are returned to the caller.
func (r *Router) Route(ctx context.Context, event, appID string) error {
	h, ok := r.handlers[event]
	if !ok {
		r.log.Warn().Str("event", event).Str("app", appID).Msg("unrecognized threshold event ignored")
		return nil
	}
	return h(ctx, appID)
}
