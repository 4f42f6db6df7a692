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
	"database/sql"
	"time"

	"github.com/thirdeye-mcp/thirdeye/internal/auth"
)

// PutAPIKey persists key, overwriting any prior row with the same id.
// auth.KeyStore remains the hot-path lookup structure; this table is
// what repopulates it on boot and what admin CRUD endpoints read from.
func (s *Store) PutAPIKey(ctx context.Context, key auth.APIKey) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, hash, role, tenant_id, per_minute_rate, per_request, total_budget, created_at, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			hash = EXCLUDED.hash,
			role = EXCLUDED.role,
			tenant_id = EXCLUDED.tenant_id,
			per_minute_rate = EXCLUDED.per_minute_rate,
			per_request = EXCLUDED.per_request,
			total_budget = EXCLUDED.total_budget,
			expires_at = EXCLUDED.expires_at,
			revoked_at = EXCLUDED.revoked_at
	`, key.ID, key.Hash, string(key.Role), key.TenantID,
		key.Limits.PerMinuteRate, key.Limits.PerRequest, key.Limits.TotalBudget,
		key.CreatedAt, nullTime(key.ExpiresAt), nullTime(key.RevokedAt))
	return err
}

// ListAPIKeys loads every persisted API key, used to warm
// auth.KeyStore on boot.
func (s *Store) ListAPIKeys(ctx context.Context) ([]auth.APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hash, role, tenant_id, per_minute_rate, per_request, total_budget, created_at, expires_at, revoked_at
		FROM api_keys
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []auth.APIKey
	for rows.Next() {
		var key auth.APIKey
		var role string
		var expiresAt, revokedAt sql.NullTime
		if err := rows.Scan(&key.ID, &key.Hash, &role, &key.TenantID,
			&key.Limits.PerMinuteRate, &key.Limits.PerRequest, &key.Limits.TotalBudget,
			&key.CreatedAt, &expiresAt, &revokedAt); err != nil {
			return nil, err
		}
		key.Role = auth.Role(role)
		key.ExpiresAt = expiresAt.Time
		key.RevokedAt = revokedAt.Time
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// RevokeAPIKey stamps revoked_at for id.
func (s *Store) RevokeAPIKey(ctx context.Context, id string, revokedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_keys SET revoked_at = $1 WHERE id = $2`, nullTime(revokedAt), id)
	return err
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
