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

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/thirdeye-mcp/thirdeye/internal/apperr"
	"github.com/thirdeye-mcp/thirdeye/internal/session"
)

// CredentialVerifier checks an admin email/password pair out-of-band
// (e.g. against the persistence layer's operator table) and returns an
// opaque admin identifier on success.
type CredentialVerifier func(ctx context.Context, email, password string) (adminID string, err error)

// AdminAuth issues admin identities: a fresh admin-role APIKey, a bound
// admin Session row (1h TTL), and a CSRF token — the three artifacts
// spec §4.7 requires from a successful login.
type AdminAuth struct {
	keys     *KeyStore
	sessions *session.Store
	csrf     *CSRF
	verify   CredentialVerifier
	ttl      time.Duration
}

// NewAdminAuth wires the admin login flow over the shared KeyStore,
// Session Store, and CSRF guard.
func NewAdminAuth(keys *KeyStore, sessions *session.Store, csrf *CSRF, verify CredentialVerifier, ttl time.Duration) *AdminAuth {
	return &AdminAuth{keys: keys, sessions: sessions, csrf: csrf, verify: verify, ttl: ttl}
}

// LoginResult carries everything a successful login hands back to the
// client.
type LoginResult struct {
	Key        *APIKey
	RawSecret  string // shown to the admin once; never stored
	Session    session.Session
	CSRFCookie Token
}

// Login verifies credentials, then mints an admin key, an admin
// session, and a CSRF token. Every admin request that follows touches
// the session (extending its TTL); once the session expires, this must
// be called again.
func (a *AdminAuth) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	adminID, err := a.verify(ctx, email, password)
	if err != nil {
		return nil, apperr.AuthRequired("invalid admin credentials")
	}

	secret, err := randomSecret()
	if err != nil {
		return nil, apperr.Internal(err, "")
	}

	key := &APIKey{
		ID:        adminID,
		Hash:      HashSecret(secret),
		Role:      RoleAdmin,
		CreatedAt: time.Now(),
	}
	a.keys.Put(key)

	sess := a.sessions.BindAdmin(key.ID, a.ttl)

	token, err := a.csrf.Issue()
	if err != nil {
		return nil, apperr.Internal(err, "")
	}

	return &LoginResult{Key: key, RawSecret: secret, Session: sess, CSRFCookie: token}, nil
}

// TouchSession extends the admin session bound to apiKeyID, as every
// authenticated admin request must. Returns E_SESSION_EXPIRED if the
// session is gone or has already lapsed.
func (a *AdminAuth) TouchSession(apiKeyID string) (session.Session, error) {
	sess, ok := a.sessions.TouchAdmin(apiKeyID, a.ttl)
	if !ok {
		return session.Session{}, apperr.SessionExpired()
	}
	return sess, nil
}

func randomSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("auth: generate admin secret: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
