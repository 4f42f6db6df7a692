// Copyright 2025 Third Eye
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage is the Postgres persistence adapter for Sessions,
// Audit Events, API Keys, Tenants, and Quota snapshots. Schema
// migrations are out of scope (spec §1) — Open's bootstrap step only issues plain
// CREATE TABLE IF NOT EXISTS statements, matching the teacher's
// createAuditTables pattern.
package storage

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
)

// Store wraps a *sql.DB with the query methods every domain package
// needs. It never embeds domain logic — callers translate rows to and
// from their own types.
type Store struct {
	db *sql.DB
}

// Open connects to databaseURL and bootstraps the schema.
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := bootstrap(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// New wraps an already-open *sql.DB (used by tests with go-sqlmock,
// which supplies its own driver connection).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable, used by the
// /health/ready aggregate check.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Conn checks out a single connection for the lifetime of a request
// that does both a read and a write, giving read-your-writes
// consistency without relying on the pool's connection affinity (spec
// §5).
func (s *Store) Conn(ctx context.Context) (*sql.Conn, error) {
	return s.db.Conn(ctx)
}

func bootstrap(db *sql.DB) error {
	_, err := db.Exec(schemaDDL)
	return err
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL DEFAULT '',
	user_id TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT 'auto',
	token_budget INTEGER NOT NULL DEFAULT 0,
	is_admin BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	last_activity_at TIMESTAMPTZ NOT NULL,
	ttl_deadline TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_ttl_deadline ON sessions(ttl_deadline);
CREATE INDEX IF NOT EXISTS idx_sessions_tenant_id ON sessions(tenant_id);

CREATE TABLE IF NOT EXISTS session_bindings (
	connection_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL DEFAULT '',
	tenant_id TEXT NOT NULL DEFAULT '',
	api_key_id TEXT NOT NULL DEFAULT '',
	event_type TEXT NOT NULL,
	code TEXT NOT NULL DEFAULT '',
	detail JSONB,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_session_id ON audit_events(session_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_tenant_id ON audit_events(tenant_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_created_at ON audit_events(created_at);

CREATE TABLE IF NOT EXISTS api_keys (
	id TEXT PRIMARY KEY,
	hash TEXT NOT NULL,
	role TEXT NOT NULL,
	tenant_id TEXT NOT NULL DEFAULT '',
	per_minute_rate INTEGER NOT NULL DEFAULT 0,
	per_request INTEGER NOT NULL DEFAULT 0,
	total_budget INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ,
	revoked_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_api_keys_hash ON api_keys(hash);
CREATE INDEX IF NOT EXISTS idx_api_keys_tenant_id ON api_keys(tenant_id);

CREATE TABLE IF NOT EXISTS tenants (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS quota_snapshots (
	scope TEXT PRIMARY KEY,
	window_start TIMESTAMPTZ NOT NULL,
	count BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL
);
`
