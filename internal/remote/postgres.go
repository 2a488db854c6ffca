package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/nestwatch/nestwatch/internal/model"
)

// PostgresStore is the self-hosted adapter: documents live in one JSONB
// table and merge semantics come from the || operator, so unspecified fields
// on the stored document are preserved across upserts.
type PostgresStore struct {
	db  *sql.DB
	log zerolog.Logger
}

const docsSchemaSQL = `
CREATE TABLE IF NOT EXISTS docs (
    collection TEXT        NOT NULL,
    doc_key    TEXT        NOT NULL,
    owner_id   TEXT        NOT NULL DEFAULT '',
    fields     JSONB       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, doc_key)
)`

const upsertDocSQL = `
INSERT INTO docs (collection, doc_key, owner_id, fields, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (collection, doc_key) DO UPDATE SET
    fields     = docs.fields || excluded.fields,
    owner_id   = CASE WHEN excluded.owner_id <> '' THEN excluded.owner_id ELSE docs.owner_id END,
    updated_at = now()`

// NewPostgresStore opens the DSN and ensures the docs table exists.
func NewPostgresStore(dsn string, log zerolog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := db.Exec(docsSchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure docs table: %w", err)
	}
	return &PostgresStore{db: db, log: log}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

// Upsert merges fields into the document row.
func (s *PostgresStore) Upsert(ctx context.Context, collection, key string, fields Fields) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	ownerID := StringField(fields, "ownerId")
	if _, err := s.db.ExecContext(ctx, upsertDocSQL, collection, key, ownerID, raw); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, key, err)
	}
	return nil
}

// Get returns one document's fields.
func (s *PostgresStore) Get(ctx context.Context, collection, key string) (Fields, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT fields FROM docs WHERE collection = $1 AND doc_key = $2`, collection, key)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	var f Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return f, nil
}

// ListByOwner returns an owner's documents in a collection.
func (s *PostgresStore) ListByOwner(ctx context.Context, collection, ownerID string) (map[string]Fields, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_key, fields FROM docs WHERE collection = $1 AND owner_id = $2 ORDER BY doc_key`,
		collection, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]Fields{}
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var f Fields
		if err := json.Unmarshal(raw, &f); err != nil {
			s.log.Warn().Str("doc", key).Err(err).Msg("malformed document skipped")
			continue
		}
		out[key] = f
	}
	return out, rows.Err()
}

// HealthPing verifies database reachability.
func (s *PostgresStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
