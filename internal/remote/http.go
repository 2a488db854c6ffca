package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/nestwatch/nestwatch/internal/model"
)

// HTTPStore talks to the hosted document API. Retries are disabled: a failed
// write surfaces immediately and the reconciliation scheduler retries on its
// next pass, never in a tight loop.
type HTTPStore struct {
	client *resty.Client
	log    zerolog.Logger
}

// NewHTTPStore builds a client for the document API at baseURL.
func NewHTTPStore(baseURL string, log zerolog.Logger) *HTTPStore {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0)
	return &HTTPStore{client: c, log: log}
}

// Upsert PATCHes the field map; the server merges it into the document.
func (s *HTTPStore) Upsert(ctx context.Context, collection, key string, fields Fields) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(fields).
		Patch(fmt.Sprintf("/v0/collections/%s/docs/%s", collection, key))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, key, err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return fmt.Errorf("upsert %s/%s: status %d: %s", collection, key, resp.StatusCode(), resp.String())
	}
	return nil
}

// Get fetches one document.
func (s *HTTPStore) Get(ctx context.Context, collection, key string) (Fields, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/v0/collections/%s/docs/%s", collection, key))
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, model.ErrNotFound
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get %s/%s: status %d: %s", collection, key, resp.StatusCode(), resp.String())
	}
	var f Fields
	if err := json.Unmarshal(resp.Body(), &f); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return f, nil
}

// ListByOwner fetches all of an owner's documents in a collection.
func (s *HTTPStore) ListByOwner(ctx context.Context, collection, ownerID string) (map[string]Fields, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("ownerId", ownerID).
		Get(fmt.Sprintf("/v0/collections/%s/docs", collection))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("list %s: status %d: %s", collection, resp.StatusCode(), resp.String())
	}
	var body struct {
		Docs map[string]Fields `json:"docs"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode list %s: %w", collection, err)
	}
	if body.Docs == nil {
		body.Docs = map[string]Fields{}
	}
	return body.Docs, nil
}

// HealthPing probes the API's health endpoint.
func (s *HTTPStore) HealthPing(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Get("/v0/health")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("remote health: status %d", resp.StatusCode())
	}
	return nil
}
