// Package identity abstracts the authenticated-owner lookup. Account and
// session management live outside this module; the reconciliation engine
// only needs to know which guardian, if any, owns the device right now.
package identity

import (
	"context"

	"github.com/nestwatch/nestwatch/internal/model"
)

// Resolver reports the active owning identity. ActiveOwner returns
// model.ErrNoOwner when nobody is signed in, which skips the entire
// reconciliation pass.
type Resolver interface {
	ActiveOwner(ctx context.Context) (string, error)
}

// Static resolves to a fixed owner id from configuration.
type Static struct {
	OwnerID string
}

// ActiveOwner returns the configured owner or model.ErrNoOwner when empty.
func (s Static) ActiveOwner(context.Context) (string, error) {
	if s.OwnerID == "" {
		return "", model.ErrNoOwner
	}
	return s.OwnerID, nil
}

// Func adapts a function to the Resolver interface.
type Func func(ctx context.Context) (string, error)

// ActiveOwner calls the wrapped function.
func (f Func) ActiveOwner(ctx context.Context) (string, error) { return f(ctx) }
