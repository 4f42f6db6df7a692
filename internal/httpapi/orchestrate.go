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
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/thirdeye-mcp/thirdeye/internal/apperr"
	"github.com/thirdeye-mcp/thirdeye/internal/overseer"
	"github.com/thirdeye-mcp/thirdeye/internal/storage"
)

// orchestrateResponse is the wire shape of a /validate response
// (spec §6): the Overseer's aggregated verdict plus the next action
// the host should take.
type orchestrateResponse struct {
	Ok         bool        `json:"ok"`
	Code       string      `json:"code"`
	MD         string      `json:"md"`
	Data       interface{} `json:"data"`
	NextAction string      `json:"next_action"`
}

// handleOrchestrate backs both /validate and /eyes/overseer/orchestrate
// (spec §6 aliases): decode the Work Envelope, resolve the session,
// hand it to the Overseer, and write the aggregated verdict.
func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	env, err := decodeEnvelope(r.Body)
	if err != nil {
		s.writeError(w, r, apperr.BadPayloadSchema("body", "request body must be valid JSON"))
		return
	}

	connectionID := connectionIDFor(r)
	env.applyContext(s.Sessions, connectionID)

	sessionID := env.Context.SessionID
	if sessionID == "" {
		sessionID = s.Sessions.GetOrCreate(connectionID).ID
	}

	req := env.toOverseerRequest(sessionID)
	resp, err := s.Overseer.Orchestrate(r.Context(), req, connectionID)
	if err != nil {
		code := string(apperr.CodeInternal)
		var aerr *apperr.Error
		if apperr.As(err, &aerr) {
			code = string(aerr.Code)
			requestsTotal.WithLabelValues(code).Inc()
		}
		s.recordAudit(r, sessionID, "orchestrate", code, map[string]interface{}{"error": err.Error()})
		s.writeError(w, r, err)
		return
	}

	requestsTotal.WithLabelValues(resp.Code).Inc()
	recordEyeOutcomes(resp)
	s.Sessions.Touch(sessionID)
	s.recordAudit(r, sessionID, "orchestrate", resp.Code, map[string]interface{}{
		"ok":          resp.Ok,
		"next_action": string(resp.NextAction),
	})
	writeJSON(w, http.StatusOK, toOrchestrateResponse(resp))
}

// recordAudit appends one audit event for a request outcome (spec §2's
// Persistence Adapter, §8 scenario 5's "all recorded in audit log"
// expectation). Storage is optional (DATABASE_URL unset in dev/test),
// and a logging failure here must never fail the request it's
// recording, so both are silently best-effort beyond a warn log.
func (s *Server) recordAudit(r *http.Request, sessionID, eventType, code string, detail map[string]interface{}) {
	if s.Storage == nil {
		return
	}
	apiKeyID := ""
	if key, ok := apiKeyFrom(r.Context()); ok && key != nil {
		apiKeyID = key.ID
	}
	tenantID := tenantIDFromCtx(r.Context())
	ev := storage.AuditEvent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		TenantID:  tenantID,
		APIKeyID:  apiKeyID,
		EventType: eventType,
		Code:      code,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	if err := s.Storage.InsertAuditEvent(r.Context(), ev); err != nil {
		s.log.ForRequest(tenantID, traceIDForRequest(r)).Warn("audit insert failed: "+err.Error(), nil)
	}
}

func recordEyeOutcomes(resp *overseer.Response) {
	eyesData, ok := resp.Data["eyes"].([]overseer.EyeOutcome)
	if !ok {
		return
	}
	for _, outcome := range eyesData {
		result := "ok"
		if outcome.Ok == nil || !*outcome.Ok {
			result = "fail"
		}
		eyeInvocations.WithLabelValues(outcome.Name, result).Inc()
	}
}

func toOrchestrateResponse(resp *overseer.Response) orchestrateResponse {
	return orchestrateResponse{
		Ok:         resp.Ok,
		Code:       resp.Code,
		MD:         resp.MD,
		Data:       resp.Data,
		NextAction: string(resp.NextAction),
	}
}

// connectionIDFor derives the Session Store's connection id from the
// authenticated API key, since HTTP has no persistent connection of
// its own — one key maps to one logical connection across requests,
// matching the WebSocket path's per-connection binding.
func connectionIDFor(r *http.Request) string {
	if key, ok := apiKeyFrom(r.Context()); ok && key != nil {
		return key.ID
	}
	return traceIDFromCtx(r.Context())
}
