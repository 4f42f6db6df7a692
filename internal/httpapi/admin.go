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
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/thirdeye-mcp/thirdeye/internal/apperr"
	"github.com/thirdeye-mcp/thirdeye/internal/auth"
	"github.com/thirdeye-mcp/thirdeye/internal/quota"
	"github.com/thirdeye-mcp/thirdeye/internal/storage"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	APIKey    string `json:"api_key"`
	CSRFToken string `json:"csrf_token"`
	ExpiresAt string `json:"expires_at"`
}

// handleAdminLogin backs POST /admin/auth/login (spec §4.7): verify
// credentials, mint an admin key + session + CSRF token, and set the
// CSRF cookie half of the double-submit pair.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, apperr.BadPayloadSchema("body", "request body must be valid JSON"))
		return
	}

	result, err := s.Admin.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    string(result.CSRFCookie),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	if s.Storage != nil {
		_ = s.Storage.PutAPIKey(r.Context(), *result.Key)
	}

	writeJSON(w, http.StatusOK, loginResponse{
		APIKey:    result.RawSecret,
		CSRFToken: string(result.CSRFCookie),
		ExpiresAt: result.Session.TTLDeadline.UTC().Format(http.TimeFormat),
	})
}

type createKeyRequest struct {
	TenantID      string `json:"tenant_id"`
	Role          string `json:"role"`
	PerMinuteRate int    `json:"per_minute_rate"`
	PerRequest    int    `json:"per_request"`
	TotalBudget   int    `json:"total_budget"`
	ExpiresInDays int    `json:"expires_in_days"`
}

type apiKeyResponse struct {
	ID        string `json:"id"`
	RawSecret string `json:"raw_secret,omitempty"`
	Role      string `json:"role"`
	TenantID  string `json:"tenant_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

// handleListOrCreateKeys backs GET/POST /admin/keys.
func (s *Server) handleListOrCreateKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		if s.Storage == nil {
			writeJSON(w, http.StatusOK, []apiKeyResponse{})
			return
		}
		keys, err := s.Storage.ListAPIKeys(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out := make([]apiKeyResponse, 0, len(keys))
		for _, k := range keys {
			out = append(out, apiKeyResponse{
				ID:        k.ID,
				Role:      string(k.Role),
				TenantID:  k.TenantID,
				CreatedAt: k.CreatedAt.UTC().Format(http.TimeFormat),
			})
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	var body createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, apperr.BadPayloadSchema("body", "request body must be valid JSON"))
		return
	}
	role := auth.RoleConsumer
	if body.Role == string(auth.RoleAdmin) {
		role = auth.RoleAdmin
	}

	rawSecret := uuid.NewString()
	now := time.Now()
	key := auth.APIKey{
		ID:        uuid.NewString(),
		Hash:      auth.HashSecret(rawSecret),
		Role:      role,
		TenantID:  body.TenantID,
		CreatedAt: now,
		Limits: auth.Limits{
			PerMinuteRate: body.PerMinuteRate,
			PerRequest:    body.PerRequest,
			TotalBudget:   body.TotalBudget,
		},
	}
	if body.ExpiresInDays > 0 {
		key.ExpiresAt = now.AddDate(0, 0, body.ExpiresInDays)
	}

	s.Keys.Put(&key)
	if s.Storage != nil {
		if err := s.Storage.PutAPIKey(r.Context(), key); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, apiKeyResponse{
		ID:        key.ID,
		RawSecret: rawSecret,
		Role:      string(key.Role),
		TenantID:  key.TenantID,
		CreatedAt: key.CreatedAt.UTC().Format(http.TimeFormat),
	})
}

// handleRevokeKey backs POST /admin/keys/{id}/revoke.
func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if s.Storage != nil {
		if err := s.Storage.RevokeAPIKey(r.Context(), id, time.Now()); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type tenantRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// handleListOrCreateTenants backs GET/POST /admin/tenants.
func (s *Server) handleListOrCreateTenants(w http.ResponseWriter, r *http.Request) {
	if s.Storage == nil {
		s.writeError(w, r, apperr.Internal(errNoStorage, traceIDForRequest(r)))
		return
	}

	if r.Method == http.MethodGet {
		tenants, err := s.Storage.ListTenants(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tenants)
		return
	}

	var body tenantRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, apperr.BadPayloadSchema("body", "request body must be valid JSON"))
		return
	}
	if body.ID == "" {
		body.ID = uuid.NewString()
	}
	tenant := storage.Tenant{ID: body.ID, Name: body.Name, CreatedAt: time.Now()}
	if err := s.Storage.PutTenant(r.Context(), tenant); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tenant)
}

// handleDeleteTenant backs DELETE /admin/tenants/{id}.
func (s *Server) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	if s.Storage == nil {
		s.writeError(w, r, apperr.Internal(errNoStorage, traceIDForRequest(r)))
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.Storage.DeleteTenant(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type quotaResponse struct {
	Scope string `json:"scope"`
	Count uint64 `json:"count"`
	Max   int    `json:"max"`
}

type setQuotaRequest struct {
	WindowSeconds int `json:"window_seconds"`
	Max           int `json:"max"`
}

// handleQuota backs GET/PUT /admin/quotas/{scope} (spec §4.8's admin
// override path for tenant and key quota ceilings).
func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	scope := mux.Vars(r)["scope"]

	if r.Method == http.MethodPut {
		var body setQuotaRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, r, apperr.BadPayloadSchema("body", "request body must be valid JSON"))
			return
		}
		s.Quota.SetLimit(scope, quota.Limit{
			Window: time.Duration(body.WindowSeconds) * time.Second,
			Max:    body.Max,
		})
	}

	count, max, err := s.Quota.GetUsage(r.Context(), scope)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotaResponse{Scope: scope, Count: count, Max: max})
}
