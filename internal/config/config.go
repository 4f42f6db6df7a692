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

// Package config loads Third Eye's runtime configuration from the
// environment. Every default mirrors the timeouts and windows fixed by
// the orchestration design; missing provider credentials degrade routing
// to E_LLM_ERROR rather than failing boot.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting the service needs.
type Config struct {
	Port int

	DatabaseURL string
	RedisURL    string

	ServerSecret string // HMAC key for CSRF signing

	// Provider credentials. Any subset may be empty; routing degrades
	// gracefully rather than refusing to start.
	OpenAIKey      string
	OpenAIBaseURL  string
	AnthropicKey   string
	BedrockRegion  string
	BedrockModel   string

	// Admin bootstrap credentials, checked by the default
	// CredentialVerifier. Empty AdminPassword disables admin login
	// rather than accepting any password.
	AdminEmail    string
	AdminPassword string

	CORSAllowedOrigins []string

	// Timeouts and windows, see spec §5 for the defaults.
	EyeTimeout        time.Duration
	ProviderTimeout   time.Duration
	HealthCheckTTL    time.Duration
	RoutingTimeout    time.Duration
	AdminSessionTTL   time.Duration
	CSRFValidity      time.Duration
	SessionTTL        time.Duration
	QuotaWindow       time.Duration
	QuotaBuckets      int
	CleanupInterval   time.Duration
	PipelineRingSize  int
	SubscriberQueueSize int
}

// Load reads configuration from the process environment, falling back to
// the defaults documented in the spec when a variable is unset. A
// ".env" file in the working directory is loaded first, for local
// development convenience; its absence is not an error.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port: envInt("PORT", 8090),

		DatabaseURL: envString("DATABASE_URL", ""),
		RedisURL:    envString("REDIS_URL", ""),

		ServerSecret: envString("SERVER_SECRET", "dev-insecure-secret-change-me"),

		OpenAIKey:     envString("OPENAI_API_KEY", ""),
		OpenAIBaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		AnthropicKey:  envString("ANTHROPIC_API_KEY", ""),
		BedrockRegion: envString("BEDROCK_REGION", ""),
		BedrockModel:  envString("BEDROCK_MODEL", "anthropic.claude-3-sonnet-20240229-v1:0"),

		AdminEmail:    envString("ADMIN_EMAIL", ""),
		AdminPassword: envString("ADMIN_PASSWORD", ""),

		CORSAllowedOrigins: envStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),

		EyeTimeout:      envDuration("EYE_TIMEOUT_SECONDS", 30*time.Second),
		ProviderTimeout: envDuration("PROVIDER_TIMEOUT_SECONDS", 30*time.Second),
		HealthCheckTTL:  envDuration("HEALTH_CHECK_TTL_SECONDS", 30*time.Second),
		RoutingTimeout:  envDuration("ROUTING_TIMEOUT_SECONDS", 5*time.Second),
		AdminSessionTTL: envDuration("ADMIN_SESSION_TTL_SECONDS", 3600*time.Second),
		CSRFValidity:    envDuration("CSRF_VALIDITY_SECONDS", 3600*time.Second),
		SessionTTL:      envDuration("SESSION_TTL_SECONDS", 7*24*time.Hour),
		QuotaWindow:     envDuration("QUOTA_WINDOW_SECONDS", 60*time.Second),
		QuotaBuckets:    envInt("QUOTA_BUCKETS", 12),
		CleanupInterval: envDuration("CLEANUP_INTERVAL_SECONDS", 300*time.Second),

		PipelineRingSize:    envInt("PIPELINE_RING_SIZE", 256),
		SubscriberQueueSize: envInt("PIPELINE_SUBSCRIBER_QUEUE_SIZE", 64),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envStringSlice(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range splitAndTrim(v, ",") {
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func splitAndTrim(s, sep string) []string {
	raw := strings.Split(s, sep)
	out := make([]string, len(raw))
	for i, p := range raw {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// envDuration reads an integer number of seconds from the environment.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(n) * time.Second
}
