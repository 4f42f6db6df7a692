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

package storage

import (
	"context"
	"time"

	"github.com/thirdeye-mcp/thirdeye/internal/session"
)

// UpsertSession writes sess, overwriting any existing row with the
// same id.
func (s *Store) UpsertSession(ctx context.Context, sess session.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, tenant_id, user_id, language, token_budget, is_admin, created_at, last_activity_at, ttl_deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			user_id = EXCLUDED.user_id,
			language = EXCLUDED.language,
			token_budget = EXCLUDED.token_budget,
			is_admin = EXCLUDED.is_admin,
			last_activity_at = EXCLUDED.last_activity_at,
			ttl_deadline = EXCLUDED.ttl_deadline
	`, sess.ID, sess.TenantID, sess.UserID, string(sess.Language), sess.TokenBudget, sess.IsAdmin,
		sess.CreatedAt, sess.LastActivityAt, sess.TTLDeadline)
	return err
}

// BindConnection records a connection-to-session binding so a
// reconnecting client can resume its session after a restart.
func (s *Store) BindConnection(ctx context.Context, connectionID, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_bindings (connection_id, session_id)
		VALUES ($1, $2)
		ON CONFLICT (connection_id) DO UPDATE SET session_id = EXCLUDED.session_id
	`, connectionID, sessionID)
	return err
}

// GetSession loads a session row by id. Returns sql.ErrNoRows if
// absent.
func (s *Store) GetSession(ctx context.Context, id string) (session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, user_id, language, token_budget, is_admin, created_at, last_activity_at, ttl_deadline
		FROM sessions WHERE id = $1
	`, id)

	var sess session.Session
	var lang string
	if err := row.Scan(&sess.ID, &sess.TenantID, &sess.UserID, &lang, &sess.TokenBudget,
		&sess.IsAdmin, &sess.CreatedAt, &sess.LastActivityAt, &sess.TTLDeadline); err != nil {
		return session.Session{}, err
	}
	sess.Language = session.Language(lang)
	return sess, nil
}

// DeleteSession removes a session row and its bindings (bindings
// cascade via the foreign key).
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// ReapExpiredSessions deletes every session whose ttl_deadline has
// passed as of now, returning the number of rows removed. Mirrors
// internal/session's in-memory reclamation loop for the persisted
// copy.
func (s *Store) ReapExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE ttl_deadline < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
