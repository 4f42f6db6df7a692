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
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var errNoStorage = errors.New("no storage backend configured")

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thirdeye_requests_total",
			Help: "Total number of orchestrate requests by outcome code.",
		},
		[]string{"code"},
	)
	eyeInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thirdeye_eye_invocations_total",
			Help: "Total number of Eye invocations by name and outcome.",
		},
		[]string{"eye", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, eyeInvocations)
}

// handleHealth is a bare liveness probe: if the process can answer
// HTTP at all, it reports healthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyComponent is one dependency's readiness verdict.
type readyComponent struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// handleHealthReady aggregates the database connection (when storage
// is configured), every registered Eye's cached health, and every
// provider's health: any one unhealthy component fails the whole
// check. The quota backend is not probed.
func (s *Server) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	components := []readyComponent{}
	allHealthy := true

	if s.Storage != nil {
		c := readyComponent{Name: "database"}
		if err := s.Storage.Ping(r.Context()); err != nil {
			c.Detail = err.Error()
			allHealthy = false
		} else {
			c.Healthy = true
		}
		components = append(components, c)
	}

	for _, name := range s.Registry.Names() {
		status := s.Registry.Health(r.Context(), name)
		components = append(components, readyComponent{Name: "eye:" + name, Healthy: status.Healthy, Detail: status.Detail})
		if !status.Healthy {
			allHealthy = false
		}
	}

	for _, p := range s.Providers {
		healthy := p.IsHealthy()
		components = append(components, readyComponent{Name: "provider:" + p.Name(), Healthy: healthy})
		if !healthy {
			allHealthy = false
		}
	}

	status := http.StatusOK
	if !allHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{"ready": allHealthy, "components": components})
}

// metricsHandler exposes the registered Prometheus collectors in text
// format, grounded on the teacher's promhttp.Handler() wiring.
func (s *Server) metricsHandler() http.Handler {
	return promhttp.Handler()
}
