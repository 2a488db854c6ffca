// Package notify dispatches guardian-facing notifications. Delivery is
// fire-and-forget: this core never blocks or retries on notification failure.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Category names the notification kind.
type Category string

const (
	CategoryAppDeleted     Category = "appDeleted"
	CategoryNewAppDetected Category = "newAppDetected"
)

// Payload carries the app identity a notification is about.
type Payload struct {
	AppID       string `json:"appId"`
	DisplayName string `json:"displayName"`
	OwnerID     string `json:"ownerId"`
}

// Notifier delivers one notification. Implementations must be safe for
// concurrent use. Errors are advisory; callers log and move on.
type Notifier interface {
	Notify(ctx context.Context, category Category, payload Payload) error
}

// LogNotifier writes notifications to the local log. Used when no delivery
// endpoint is configured.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier returns a notifier that only logs.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify logs the notification and always succeeds.
func (n *LogNotifier) Notify(_ context.Context, category Category, payload Payload) error {
	n.log.Info().
		Str("category", string(category)).
		Str("app", payload.AppID).
		Str("owner", payload.OwnerID).
		Msg("notification")
	return nil
}
