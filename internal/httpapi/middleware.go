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

package httpapi

import (
	"context"
	"net/http"

	"github.com/thirdeye-mcp/thirdeye/internal/apperr"
	"github.com/thirdeye-mcp/thirdeye/internal/auth"
	"github.com/thirdeye-mcp/thirdeye/internal/quota"
)

// ctxKey is a private type for context keys, avoiding collisions with
// keys set by other packages sharing the same request context.
type ctxKey string

const (
	ctxKeyAPIKey  ctxKey = "api_key"
	ctxKeyTraceID ctxKey = "trace_id"
)

func apiKeyFrom(ctx context.Context) (*auth.APIKey, bool) {
	k, ok := ctx.Value(ctxKeyAPIKey).(*auth.APIKey)
	return k, ok
}

func traceIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyTraceID).(string)
	return id
}

// tenantIDFromCtx returns the authenticated key's tenant, or "" before
// withAPIKey has run (or for a key with no tenant, e.g. an admin key).
func tenantIDFromCtx(ctx context.Context) string {
	key, ok := apiKeyFrom(ctx)
	if !ok || key == nil {
		return ""
	}
	return key.TenantID
}

// traceIDForRequest prefers the trace id already stashed in context by
// withAPIKey; for routes that run before any middleware (admin login,
// the WebSocket upgrade), it falls back to deriving one straight from
// the request.
func traceIDForRequest(r *http.Request) string {
	if id := traceIDFromCtx(r.Context()); id != "" {
		return id
	}
	return traceIDFrom(r)
}

// withAPIKey validates the X-API-Key header, rejecting the request
// with E_AUTH_REQUIRED on failure, and stashes the validated key plus
// a trace id (from X-Trace-Id, or freshly minted) in the request
// context for every handler downstream.
func (s *Server) withAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := traceIDFrom(r)
		ctx := context.WithValue(r.Context(), ctxKeyTraceID, traceID)

		key, err := s.Keys.Validate(ctx, r.Header.Get("X-API-Key"))
		if err != nil {
			s.writeError(w, r.WithContext(ctx), err)
			return
		}

		ctx = context.WithValue(ctx, ctxKeyAPIKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdminRole rejects a non-admin key. Must run after withAPIKey.
func (s *Server) requireAdminRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, _ := apiKeyFrom(r.Context())
		if key == nil || key.Role != auth.RoleAdmin {
			s.writeError(w, r, apperr.AuthRequired("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withQuota admits the request against the tenant- and key-scoped
// quota windows, in that order (spec §4.8's tenant-before-key gate).
// Must run after withAPIKey.
func (s *Server) withQuota(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, _ := apiKeyFrom(r.Context())
		var tenantScope, keyScope string
		if key != nil {
			if key.TenantID != "" {
				tenantScope = quota.TenantScope(key.TenantID)
			}
			keyScope = quota.KeyScope(key.ID)
		}

		if err := s.Quota.CheckAndIncrement(r.Context(), tenantScope, keyScope); err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withCSRF verifies the double-submit CSRF token on an admin mutator
// and touches the admin's session, rejecting with E_CSRF_FAILED or
// E_SESSION_EXPIRED. Must run after withAPIKey + requireAdminRole.
func (s *Server) withCSRF(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, _ := apiKeyFrom(r.Context())

		cookie, _ := r.Cookie(csrfCookieName)
		cookieValue := ""
		if cookie != nil {
			cookieValue = cookie.Value
		}
		if err := s.CSRF.Verify(cookieValue, r.Header.Get("X-CSRF-Token")); err != nil {
			s.writeError(w, r, err)
			return
		}

		if _, err := s.Admin.TouchSession(key.ID); err != nil {
			s.writeError(w, r, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}

const csrfCookieName = "thirdeye_csrf"
