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

// Package session implements the per-connection Session Store: TTL
// tracking, touch-on-activity extension, and background reclamation. It
// also backs admin sessions, which are ordinary Session rows scoped to
// an API key id instead of a connection id.
package session

import "time"

// Language is the session's preferred response language.
type Language string

const (
	LanguageAuto Language = "auto"
	LanguageEN   Language = "en"
	LanguageAR   Language = "ar"
)

// Session represents one logical conversation between the host and
// Third Eye. Every read from the store returns a value copy — callers
// never see or mutate the store's internal row.
type Session struct {
	ID             string
	TenantID       string // empty means no tenant scoping
	UserID         string // empty means anonymous
	Language       Language
	TokenBudget    int
	CreatedAt      time.Time
	LastActivityAt time.Time
	TTLDeadline    time.Time

	// IsAdmin marks this row as an admin session (§4.7), keyed by API
	// key id rather than a transport connection id.
	IsAdmin bool
}

// Expired reports whether the session's TTL deadline has passed.
func (s Session) Expired(now time.Time) bool {
	return s.TTLDeadline.Before(now)
}

// Diff carries the fields an Update call is allowed to change. A nil
// field means "leave unchanged".
type Diff struct {
	TenantID      *string
	UserID        *string
	Language      *Language
	TokenBudget   *int
}
