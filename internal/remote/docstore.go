// Package remote syncs local records into the authoritative guardian-facing
// document store. All writes go through a single merge-upsert operation so
// retries are idempotent and partial updates never clobber fields written by
// earlier passes.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nestwatch/nestwatch/internal/config"
)

// Fields is a flat JSON field map for one document. Upserts merge field-wise:
// fields absent from the map are preserved on the remote document.
type Fields map[string]interface{}

// DocStore is the remote authority. Documents live in named collections and
// are keyed by the composite `{ownerId}_{appId}` identifier.
type DocStore interface {
	// Upsert merges fields into the document, creating it if absent.
	Upsert(ctx context.Context, collection, key string, fields Fields) error
	// Get returns a document's fields or model.ErrNotFound.
	Get(ctx context.Context, collection, key string) (Fields, error)
	// ListByOwner returns all documents in a collection belonging to an
	// owner, keyed by document key.
	ListByOwner(ctx context.Context, collection, ownerID string) (map[string]Fields, error)
	// HealthPing reports reachability of the remote store.
	HealthPing(ctx context.Context) error
}

// New selects a DocStore adapter from configuration.
func New(cfg *config.Config, log zerolog.Logger) (DocStore, error) {
	switch cfg.RemoteDriver {
	case "http":
		return NewHTTPStore(cfg.RemoteBaseURL, log), nil
	case "postgres":
		return NewPostgresStore(cfg.PostgresDSN, log)
	default:
		return nil, fmt.Errorf("unsupported remote driver: %s", cfg.RemoteDriver)
	}
}

// --- Field accessors (documents travel as loose JSON maps) ---

// StringField returns the string value under key, or "".
func StringField(f Fields, key string) string {
	if v, ok := f[key].(string); ok {
		return v
	}
	return ""
}

// BoolField returns the bool value under key, or false.
func BoolField(f Fields, key string) bool {
	if v, ok := f[key].(bool); ok {
		return v
	}
	return false
}

// FloatField returns the numeric value under key, or 0.
func FloatField(f Fields, key string) float64 {
	switch v := f[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// TimeField parses the RFC3339 value under key, zero time when absent or
// malformed.
func TimeField(f Fields, key string) time.Time {
	s := StringField(f, key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
