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

// Command thirdeye boots the validation-orchestration service: it
// wires the Session Store, Pipeline Bus, Quota Manager, auth gate,
// provider pool, Eye Registry, Overseer, optional Postgres adapter,
// and the HTTP/WebSocket front-end, then serves until a termination
// signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	goredis "github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"

	"github.com/thirdeye-mcp/thirdeye/internal/apperr"
	"github.com/thirdeye-mcp/thirdeye/internal/auth"
	"github.com/thirdeye-mcp/thirdeye/internal/config"
	"github.com/thirdeye-mcp/thirdeye/internal/eyes"
	"github.com/thirdeye-mcp/thirdeye/internal/httpapi"
	"github.com/thirdeye-mcp/thirdeye/internal/overseer"
	"github.com/thirdeye-mcp/thirdeye/internal/pipeline"
	"github.com/thirdeye-mcp/thirdeye/internal/provider"
	"github.com/thirdeye-mcp/thirdeye/internal/quota"
	"github.com/thirdeye-mcp/thirdeye/internal/session"
	"github.com/thirdeye-mcp/thirdeye/internal/storage"
	"github.com/thirdeye-mcp/thirdeye/shared/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New("thirdeye")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := session.New(cfg.SessionTTL)
	reclaim := session.NewReclamationLoop(sessions, cfg.CleanupInterval)
	go reclaim.Run(ctx)

	bus := pipeline.New(
		pipeline.WithRingSize(cfg.PipelineRingSize),
		pipeline.WithSubscriberQueueSize(cfg.SubscriberQueueSize),
	)

	quotaBackend := quota.Backend(quota.NewMemoryBackend())
	if cfg.RedisURL != "" {
		opt, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Error("", "", "invalid REDIS_URL, falling back to in-process quota backend", map[string]interface{}{"error": err.Error()})
		} else {
			quotaBackend = quota.NewRedisBackend(goredis.NewClient(opt))
		}
	}
	quotaMgr := quota.NewManager(quotaBackend, cfg.QuotaWindow, cfg.QuotaBuckets)

	keys := auth.NewKeyStore()
	csrf := auth.NewCSRF(cfg.ServerSecret, cfg.CSRFValidity)
	adminAuth := auth.NewAdminAuth(keys, sessions, csrf, bootstrapAdminVerifier(cfg), cfg.AdminSessionTTL)

	providers := buildProviders(cfg, log)

	registry := eyes.NewRegistry(cfg.EyeTimeout, cfg.HealthCheckTTL)
	registry.Register("code_review", &eyes.CodeReviewEye{})
	registry.Register("plan_review", &eyes.PlanReviewEye{})
	registry.Register("requirements", &eyes.RequirementsEye{})
	registry.Register(overseer.DefaultAmbiguityEyeName, &eyes.AmbiguityEye{})

	var routingProvider provider.Provider
	if len(providers) > 0 {
		routingProvider = providers[0]
	} else {
		routingProvider = &provider.MockProvider{Healthy: false}
	}

	ov := &overseer.Overseer{
		Registry:       registry,
		Routing:        &eyes.RoutingEye{Provider: routingProvider},
		Bus:            bus,
		Sessions:       sessions,
		RoutingTimeout: cfg.RoutingTimeout,
	}

	var store *storage.Store
	if cfg.DatabaseURL != "" {
		var err error
		store, err = storage.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("", "", "failed to open database, persistence disabled", map[string]interface{}{"error": err.Error()})
		} else {
			defer func() { _ = store.Close() }()
			warmKeyStore(ctx, store, keys, log)
			sessions.SetPersister(store)
			reclaim.SetDBReaper(store)
			quotaMgr.SetSnapshotter(quotaSnapshotStore{store})
		}
	}

	server := httpapi.NewServer(ov, keys, adminAuth, csrf, quotaMgr, bus, sessions, store, registry, providers, cfg.CORSAllowedOrigins, log)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("", "", fmt.Sprintf("third eye listening on port %d", cfg.Port), nil)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("", "", "http server stopped unexpectedly", map[string]interface{}{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	log.Info("", "", "shutdown signal received, draining connections", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("", "", "graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}

// bootstrapAdminVerifier checks the single operator-configured admin
// account. A production deployment would verify against a persisted
// operator table instead; spec §1 treats multi-operator admin
// management as out of scope.
func bootstrapAdminVerifier(cfg *config.Config) auth.CredentialVerifier {
	return func(_ context.Context, email, password string) (string, error) {
		if cfg.AdminPassword == "" {
			return "", apperr.AuthRequired("admin login is disabled (ADMIN_PASSWORD unset)")
		}
		if email != cfg.AdminEmail || password != cfg.AdminPassword {
			return "", apperr.AuthRequired("invalid admin credentials")
		}
		return "bootstrap-admin", nil
	}
}

// buildProviders wires a Provider for every credential set present in
// cfg; a deployment with none configured still boots, but routing
// degrades to E_LLM_ERROR per spec §1.
func buildProviders(cfg *config.Config, log *logger.Logger) []provider.Provider {
	var providers []provider.Provider

	if cfg.OpenAIKey != "" {
		providers = append(providers, provider.NewHTTPProvider(
			"openai", cfg.OpenAIBaseURL, cfg.OpenAIKey, "gpt-4o", cfg.ProviderTimeout, rate.Limit(5),
		))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, provider.NewHTTPProvider(
			"anthropic", "https://api.anthropic.com/v1", cfg.AnthropicKey, "claude-3-5-sonnet-20241022", cfg.ProviderTimeout, rate.Limit(5),
		))
	}
	if cfg.BedrockRegion != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.BedrockRegion))
		if err != nil {
			log.Error("", "", "failed to load AWS config, skipping Bedrock provider", map[string]interface{}{"error": err.Error()})
		} else {
			client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
				o.Region = cfg.BedrockRegion
			})
			providers = append(providers, provider.NewBedrockProvider(client, cfg.BedrockRegion, cfg.BedrockModel, cfg.ProviderTimeout, rate.Limit(5)))
		}
	}

	return providers
}

// quotaSnapshotStore adapts storage.Store's QuotaSnapshot shape to
// quota.Snapshotter, so the quota package doesn't need to import
// storage (which already imports session) to persist usage counts.
type quotaSnapshotStore struct{ store *storage.Store }

func (q quotaSnapshotStore) PutQuotaSnapshot(ctx context.Context, snap quota.QuotaSnapshotArgs) error {
	return q.store.PutQuotaSnapshot(ctx, storage.QuotaSnapshot{
		Scope:       snap.Scope,
		WindowStart: snap.WindowStart,
		Count:       snap.Count,
		UpdatedAt:   snap.UpdatedAt,
	})
}

// warmKeyStore loads every persisted API key into the in-process
// KeyStore so validation doesn't depend on a database round trip per
// request.
func warmKeyStore(ctx context.Context, store *storage.Store, keys *auth.KeyStore, log *logger.Logger) {
	loaded, err := store.ListAPIKeys(ctx)
	if err != nil {
		log.Error("", "", "failed to warm key store from database", map[string]interface{}{"error": err.Error()})
		return
	}
	for i := range loaded {
		keys.Put(&loaded[i])
	}
	log.Info("", "", "warmed key store from database", map[string]interface{}{"count": len(loaded)})
}
