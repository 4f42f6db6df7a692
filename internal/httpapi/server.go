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

// Package httpapi is Third Eye's Request Front-End (spec §4.11, §6): an
// HTTP/WebSocket surface that normalizes the MCP wrapper envelope,
// authenticates and rate-limits every request, and hands validated Work
// Envelopes to the Overseer.
package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/thirdeye-mcp/thirdeye/internal/auth"
	"github.com/thirdeye-mcp/thirdeye/internal/eyes"
	"github.com/thirdeye-mcp/thirdeye/internal/overseer"
	"github.com/thirdeye-mcp/thirdeye/internal/pipeline"
	"github.com/thirdeye-mcp/thirdeye/internal/provider"
	"github.com/thirdeye-mcp/thirdeye/internal/quota"
	"github.com/thirdeye-mcp/thirdeye/internal/session"
	"github.com/thirdeye-mcp/thirdeye/internal/storage"
	"github.com/thirdeye-mcp/thirdeye/shared/logger"
)

// Server wires every domain package into HTTP handlers. It holds no
// business logic of its own — each handler delegates to the Overseer,
// auth, quota, session, or storage package it fronts.
type Server struct {
	Overseer  *overseer.Overseer
	Keys      *auth.KeyStore
	Admin     *auth.AdminAuth
	CSRF      *auth.CSRF
	Quota     *quota.Manager
	Bus       *pipeline.Bus
	Sessions  *session.Store
	Storage   *storage.Store // nil if DATABASE_URL is unset
	Registry  *eyes.Registry
	Providers []provider.Provider

	CORSAllowedOrigins []string

	log *logger.Logger

	upgrader websocket.Upgrader
}

// NewServer constructs a Server. log is the shared structured logger,
// tagged with component "httpapi" by the caller.
func NewServer(
	ov *overseer.Overseer,
	keys *auth.KeyStore,
	admin *auth.AdminAuth,
	csrf *auth.CSRF,
	q *quota.Manager,
	bus *pipeline.Bus,
	sessions *session.Store,
	store *storage.Store,
	registry *eyes.Registry,
	providers []provider.Provider,
	corsOrigins []string,
	log *logger.Logger,
) *Server {
	return &Server{
		Overseer:           ov,
		Keys:               keys,
		Admin:              admin,
		CSRF:               csrf,
		Quota:              q,
		Bus:                bus,
		Sessions:           sessions,
		Storage:            store,
		Registry:           registry,
		Providers:          providers,
		CORSAllowedOrigins: corsOrigins,
		log:                log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// Router assembles every route from spec §6 behind the auth/quota/CORS
// middleware chain, grounded on the teacher's mux.NewRouter + rs/cors
// wiring in orchestrator/run.go.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleHealthReady).Methods(http.MethodGet)
	r.Handle("/metrics", s.metricsHandler()).Methods(http.MethodGet)

	r.HandleFunc("/admin/auth/login", s.handleAdminLogin).Methods(http.MethodPost)

	orchestrate := s.withAPIKey(s.withQuota(http.HandlerFunc(s.handleOrchestrate)))
	r.Handle("/validate", orchestrate).Methods(http.MethodPost)
	r.Handle("/eyes/overseer/orchestrate", orchestrate).Methods(http.MethodPost)

	r.Handle("/session/{id}", s.withAPIKey(http.HandlerFunc(s.handleGetSession))).Methods(http.MethodGet)
	r.Handle("/session/{id}/clarifications",
		s.withAPIKey(s.withQuota(http.HandlerFunc(s.handleClarifications)))).Methods(http.MethodPost)

	r.HandleFunc("/ws/pipeline/{session_id}", s.handlePipelineWS)

	admin := func(h http.HandlerFunc) http.Handler {
		return s.withAPIKey(s.requireAdminRole(s.withCSRF(h)))
	}
	r.Handle("/admin/keys", admin(s.handleListOrCreateKeys)).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/admin/keys/{id}/revoke", admin(s.handleRevokeKey)).Methods(http.MethodPost)
	r.Handle("/admin/tenants", admin(s.handleListOrCreateTenants)).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/admin/tenants/{id}", admin(s.handleDeleteTenant)).Methods(http.MethodDelete)
	r.Handle("/admin/quotas/{scope}", admin(s.handleQuota)).Methods(http.MethodGet, http.MethodPut)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

func traceIDFrom(r *http.Request) string {
	if id := r.Header.Get("X-Trace-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}
