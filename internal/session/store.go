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

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Persister is the durability mirror a Store writes through to so
// sessions and their connection bindings survive a process restart.
// nil (the default) leaves the Store purely in-memory, matching the
// teacher's single-process session handling.
type Persister interface {
	UpsertSession(ctx context.Context, sess Session) error
	BindConnection(ctx context.Context, connectionID, sessionID string) error
	DeleteSession(ctx context.Context, id string) error
	GetSession(ctx context.Context, id string) (Session, error)
}

// Store is the exclusive owner of Session rows and connection bindings.
// Two connections never share a session row directly — every write to
// the maps happens under the store's lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session // session id -> row
	bindings map[string]string   // connection id -> session id

	defaultTTL time.Duration
	now        func() time.Time
	persist    Persister
}

// SetPersister wires p as the Store's durability mirror. Writes to p
// happen best-effort in a background goroutine: the in-memory map
// remains the source of truth for every request-path read, so a slow
// or failing persister never adds request latency or a new failure
// mode to the hot path.
func (s *Store) SetPersister(p Persister) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persist = p
}

// mirror spawns fn against the current persister in the background, if
// one is set. Callers hold s.mu when reading s.persist, so this must
// only be invoked with the mutex already held (it takes no lock of its
// own) — the spawned goroutine itself runs outside that lock.
func (s *Store) mirror(fn func(Persister)) {
	if s.persist == nil {
		return
	}
	p := s.persist
	go fn(p)
}

// New creates an empty Store. defaultTTL is the window Touch extends by
// (spec default: 7 days).
func New(defaultTTL time.Duration) *Store {
	return &Store{
		sessions:   make(map[string]*Session),
		bindings:   make(map[string]string),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// GetOrCreate is idempotent: if connectionID already has a bound
// session, its current value is returned; otherwise a fresh session id
// is minted, a row inserted with the current timestamps, and the
// binding recorded. Always returns a value copy.
func (s *Store) GetOrCreate(connectionID string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessID, ok := s.bindings[connectionID]; ok {
		if row, ok := s.sessions[sessID]; ok {
			return *row
		}
		// Binding survived but the row was reaped; fall through to mint.
	}

	now := s.now()
	row := &Session{
		ID:             uuid.NewString(),
		Language:       LanguageAuto,
		CreatedAt:      now,
		LastActivityAt: now,
		TTLDeadline:    now.Add(s.defaultTTL),
	}
	s.sessions[row.ID] = row
	s.bindings[connectionID] = row.ID

	sess := *row
	s.mirror(func(p Persister) {
		ctx := context.Background()
		_ = p.UpsertSession(ctx, sess)
		_ = p.BindConnection(ctx, connectionID, sess.ID)
	})

	return sess
}

// Get returns the session bound to connectionID, or false if none
// exists. It never creates a row.
func (s *Store) Get(connectionID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessID, ok := s.bindings[connectionID]
	if !ok {
		return Session{}, false
	}
	row, ok := s.sessions[sessID]
	if !ok {
		return Session{}, false
	}
	return *row, true
}

// GetByID looks a session up directly by its id, independent of any
// connection binding. Used by the HTTP layer's /session/{id} and
// /session/{id}/clarifications handlers. On an in-memory miss with a persister wired, it
// falls back to a synchronous lookup against the persisted copy (the
// path a session takes right after a restart, before anything has
// touched it back into memory) and rehydrates the in-memory row on hit.
func (s *Store) GetByID(sessionID string) (Session, bool) {
	s.mu.RLock()
	row, ok := s.sessions[sessionID]
	persist := s.persist
	s.mu.RUnlock()
	if ok {
		return *row, true
	}
	if persist == nil {
		return Session{}, false
	}

	sess, err := persist.GetSession(context.Background(), sessionID)
	if err != nil {
		return Session{}, false
	}
	s.mu.Lock()
	s.sessions[sess.ID] = &sess
	s.mu.Unlock()
	return sess, true
}

// Update applies diff to the session bound to connectionID under the
// store's lock, sets LastActivityAt to now, and returns the new value.
// Returns false if connectionID has no bound session.
func (s *Store) Update(connectionID string, diff Diff) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessID, ok := s.bindings[connectionID]
	if !ok {
		return Session{}, false
	}
	row, ok := s.sessions[sessID]
	if !ok {
		return Session{}, false
	}

	if diff.TenantID != nil {
		row.TenantID = *diff.TenantID
	}
	if diff.UserID != nil {
		row.UserID = *diff.UserID
	}
	if diff.Language != nil {
		row.Language = *diff.Language
	}
	if diff.TokenBudget != nil {
		row.TokenBudget = *diff.TokenBudget
	}
	row.LastActivityAt = s.now()

	sess := *row
	s.mirror(func(p Persister) {
		_ = p.UpsertSession(context.Background(), sess)
	})

	return sess, true
}

// Touch extends sessionID's TTL deadline by the store's default window
// without otherwise modifying the row. Called on every successful
// request that used this session (spec invariant: reclaim won't run for
// at least TTL-1s afterwards).
func (s *Store) Touch(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	now := s.now()
	row.LastActivityAt = now
	row.TTLDeadline = now.Add(s.defaultTTL)

	sess := *row
	s.mirror(func(p Persister) {
		_ = p.UpsertSession(context.Background(), sess)
	})

	return true
}

// BindAdmin inserts (or refreshes) an admin session row keyed by apiKeyID
// with the given TTL, returning the admin Session.
func (s *Store) BindAdmin(apiKeyID string, ttl time.Duration) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sessID, ok := s.bindings["admin:"+apiKeyID]; ok {
		if row, ok := s.sessions[sessID]; ok {
			row.LastActivityAt = now
			row.TTLDeadline = now.Add(ttl)
			return *row
		}
	}

	row := &Session{
		ID:             uuid.NewString(),
		UserID:         apiKeyID,
		IsAdmin:        true,
		CreatedAt:      now,
		LastActivityAt: now,
		TTLDeadline:    now.Add(ttl),
	}
	s.sessions[row.ID] = row
	s.bindings["admin:"+apiKeyID] = row.ID
	return *row
}

// TouchAdmin extends the admin session bound to apiKeyID by ttl. Returns
// false (E_SESSION_EXPIRED territory for the caller) if no admin session
// is bound or it has already expired.
func (s *Store) TouchAdmin(apiKeyID string, ttl time.Duration) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessID, ok := s.bindings["admin:"+apiKeyID]
	if !ok {
		return Session{}, false
	}
	row, ok := s.sessions[sessID]
	if !ok {
		return Session{}, false
	}
	now := s.now()
	if row.TTLDeadline.Before(now) {
		return Session{}, false
	}
	row.LastActivityAt = now
	row.TTLDeadline = now.Add(ttl)
	return *row, true
}

// Close explicitly destroys sessionID and every connection binding that
// points at it.
func (s *Store) Close(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	for conn, sid := range s.bindings {
		if sid == sessionID {
			delete(s.bindings, conn)
		}
	}

	s.mirror(func(p Persister) {
		_ = p.DeleteSession(context.Background(), sessionID)
	})
}

// CleanupStale scans for sessions whose TTL deadline has passed and
// removes them plus any bindings that reference them. Returns the
// number of rows reclaimed. Intended to be called periodically by the
// ReclamationLoop, never inline in a request path.
func (s *Store) CleanupStale() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var reapedIDs []string
	for id, row := range s.sessions {
		if row.TTLDeadline.Before(now) {
			delete(s.sessions, id)
			reapedIDs = append(reapedIDs, id)
		}
	}
	for conn, sid := range s.bindings {
		if _, ok := s.sessions[sid]; !ok {
			delete(s.bindings, conn)
		}
	}

	ids := reapedIDs
	s.mirror(func(p Persister) {
		ctx := context.Background()
		for _, id := range ids {
			_ = p.DeleteSession(ctx, id)
		}
	})

	return len(reapedIDs)
}

// Count returns the number of live session rows. Exposed for /metrics.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
