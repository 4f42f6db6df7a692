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
)

// QuotaSnapshot is a point-in-time count for one quota scope
// ("tenant:<id>" / "key:<id>"), persisted so a restart doesn't reset
// every counter to zero when the in-memory/Redis backend is cold.
type QuotaSnapshot struct {
	Scope       string
	WindowStart time.Time
	Count       int64
	UpdatedAt   time.Time
}

// PutQuotaSnapshot upserts the current count for scope.
func (s *Store) PutQuotaSnapshot(ctx context.Context, snap QuotaSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quota_snapshots (scope, window_start, count, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope) DO UPDATE SET
			window_start = EXCLUDED.window_start,
			count = EXCLUDED.count,
			updated_at = EXCLUDED.updated_at
	`, snap.Scope, snap.WindowStart, snap.Count, snap.UpdatedAt)
	return err
}

// GetQuotaSnapshot loads the last persisted count for scope. Returns
// sql.ErrNoRows if never written.
func (s *Store) GetQuotaSnapshot(ctx context.Context, scope string) (QuotaSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT scope, window_start, count, updated_at FROM quota_snapshots WHERE scope = $1
	`, scope)

	var snap QuotaSnapshot
	if err := row.Scan(&snap.Scope, &snap.WindowStart, &snap.Count, &snap.UpdatedAt); err != nil {
		return QuotaSnapshot{}, err
	}
	return snap, nil
}
