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
	"encoding/json"
	"time"
)

// AuditEvent is one recorded orchestrate/admin action. Schema detail
// beyond these columns is explicitly out of scope (spec §1) — Detail
// carries whatever a caller wants preserved as opaque JSON.
type AuditEvent struct {
	ID        string
	SessionID string
	TenantID  string
	APIKeyID  string
	EventType string
	Code      string
	Detail    map[string]interface{}
	CreatedAt time.Time
}

// InsertAuditEvent appends ev. Audit events are never updated or
// deleted by the service itself.
func (s *Store) InsertAuditEvent(ctx context.Context, ev AuditEvent) error {
	detailJSON, err := json.Marshal(ev.Detail)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, session_id, tenant_id, api_key_id, event_type, code, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ev.ID, ev.SessionID, ev.TenantID, ev.APIKeyID, ev.EventType, ev.Code, detailJSON, ev.CreatedAt)
	return err
}

// ListAuditEventsBySession loads every event recorded for sessionID,
// most recent first.
func (s *Store) ListAuditEventsBySession(ctx context.Context, sessionID string, limit int) ([]AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, tenant_id, api_key_id, event_type, code, detail, created_at
		FROM audit_events WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []AuditEvent
	for rows.Next() {
		var ev AuditEvent
		var detailJSON []byte
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.TenantID, &ev.APIKeyID, &ev.EventType, &ev.Code, &detailJSON, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if len(detailJSON) > 0 {
			_ = json.Unmarshal(detailJSON, &ev.Detail)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
