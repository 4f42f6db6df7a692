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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thirdeye-mcp/thirdeye/internal/auth"
	"github.com/thirdeye-mcp/thirdeye/internal/eyes"
	"github.com/thirdeye-mcp/thirdeye/internal/overseer"
	"github.com/thirdeye-mcp/thirdeye/internal/pipeline"
	"github.com/thirdeye-mcp/thirdeye/internal/provider"
	"github.com/thirdeye-mcp/thirdeye/internal/quota"
	"github.com/thirdeye-mcp/thirdeye/internal/session"
	"github.com/thirdeye-mcp/thirdeye/shared/logger"
)

type okEye struct{}

func (okEye) Describe() eyes.Capability { return eyes.Capability{Name: "stub"} }
func (okEye) Health(_ context.Context) eyes.HealthStatus {
	return eyes.HealthStatus{Healthy: true}
}
func (okEye) Invoke(_ context.Context, _ eyes.Envelope) (*eyes.Result, error) {
	ok := true
	conf := 0.9
	return &eyes.Result{Ok: &ok, Code: "OK", MD: "looks fine", Confidence: &conf}, nil
}

func routingProvider(decision string) *provider.MockProvider {
	return &provider.MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.Request) (*provider.Response, error) {
			return &provider.Response{Text: decision}, nil
		},
	}
}

type testHarness struct {
	server *Server
	keys   *auth.KeyStore
	rawKey string
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	registry := eyes.NewRegistry(time.Second, time.Minute)
	registry.Register("stub_eye", okEye{})

	keys := auth.NewKeyStore()
	rawKey := "test-secret"
	keys.Put(&auth.APIKey{ID: "key-1", Hash: auth.HashSecret(rawKey), Role: auth.RoleConsumer, TenantID: "tenant-a"})

	sessions := session.New(time.Hour)
	csrf := auth.NewCSRF("test-server-secret", time.Hour)
	admin := auth.NewAdminAuth(keys, sessions, csrf, func(_ context.Context, email, password string) (string, error) {
		if email == "admin@example.com" && password == "correct-horse" {
			return "admin-1", nil
		}
		return "", errBadCreds
	}, time.Hour)

	mgr := quota.NewManager(quota.NewMemoryBackend(), time.Minute, 12)

	ov := &overseer.Overseer{
		Registry:       registry,
		Routing:        &eyes.RoutingEye{Provider: routingProvider(`{"eyes_needed":["stub_eye"],"reasoning":"n/a"}`)},
		Bus:            pipeline.New(),
		Sessions:       sessions,
		RoutingTimeout: time.Second,
	}

	s := NewServer(ov, keys, admin, csrf, mgr, ov.Bus, sessions, nil, registry, nil, []string{"*"}, logger.New("httpapi-test"))
	return &testHarness{server: s, keys: keys, rawKey: rawKey}
}

var errBadCreds = errors.New("invalid admin credentials")

func TestHandleOrchestrateRoundTrips(t *testing.T) {
	h := newTestHarness(t)
	router := h.server.Router()

	body := map[string]interface{}{
		"context": map[string]interface{}{"tenant_id": "tenant-a"},
		"payload": map[string]interface{}{
			"intent": "review this change",
			"work":   map[string]string{"code": "package main"},
		},
		"reasoning_md": "looks good to me",
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/validate", bytes.NewReader(raw))
	req.Header.Set("X-API-Key", h.rawKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got orchestrateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "OK_ALL", got.Code)
	require.True(t, got.Ok)
}

func TestHandleOrchestrateRejectsMissingAPIKey(t *testing.T) {
	h := newTestHarness(t)
	router := h.server.Router()

	req := httptest.NewRequest(http.MethodPost, "/validate", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleHealthReportsOK(t *testing.T) {
	h := newTestHarness(t)
	router := h.server.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHealthReadyAggregatesEyeHealth(t *testing.T) {
	h := newTestHarness(t)
	router := h.server.Router()

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["ready"])
}

func TestAdminLoginIssuesKeyAndCSRFCookie(t *testing.T) {
	h := newTestHarness(t)
	router := h.server.Router()

	body, err := json.Marshal(loginRequest{Email: "admin@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/admin/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.APIKey)
	require.NotEmpty(t, resp.CSRFToken)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, csrfCookieName, cookies[0].Name)
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	h := newTestHarness(t)
	router := h.server.Router()

	body, err := json.Marshal(loginRequest{Email: "admin@example.com", Password: "wrong"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/admin/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminKeyCreationRequiresAdminRoleAndCSRF(t *testing.T) {
	h := newTestHarness(t)
	router := h.server.Router()

	// A plain consumer key is rejected regardless of CSRF.
	req := httptest.NewRequest(http.MethodPost, "/admin/keys", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-API-Key", h.rawKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// An admin key without a CSRF token is rejected by the CSRF check.
	loginBody, err := json.Marshal(loginRequest{Email: "admin@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	loginReq := httptest.NewRequest(http.MethodPost, "/admin/auth/login", bytes.NewReader(loginBody))
	loginRec := httptest.NewRecorder()
	router.ServeHTTP(loginRec, loginReq)
	require.Equal(t, http.StatusOK, loginRec.Code)
	var login loginResponse
	require.NoError(t, json.Unmarshal(loginRec.Body.Bytes(), &login))

	req = httptest.NewRequest(http.MethodPost, "/admin/keys", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-API-Key", login.APIKey)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
