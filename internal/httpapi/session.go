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

	"github.com/gorilla/mux"

	"github.com/thirdeye-mcp/thirdeye/internal/apperr"
)

// sessionResponse is the wire shape of GET /session/{id}.
type sessionResponse struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id,omitempty"`
	Language    string `json:"language"`
	TokenBudget int    `json:"token_budget"`
	CreatedAt   string `json:"created_at"`
	TTLDeadline string `json:"ttl_deadline"`
}

// handleGetSession returns a session's metadata for the host to
// display or reason about (spec §6).
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sess, ok := s.Sessions.GetByID(id)
	if !ok {
		s.writeError(w, r, apperr.SessionExpired())
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		ID:          sess.ID,
		TenantID:    sess.TenantID,
		Language:    string(sess.Language),
		TokenBudget: sess.TokenBudget,
		CreatedAt:   sess.CreatedAt.UTC().Format(http.TimeFormat),
		TTLDeadline: sess.TTLDeadline.UTC().Format(http.TimeFormat),
	})
}

// clarificationAnswer is one host-supplied answer to a prior
// CLARIFY question.
type clarificationAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type clarificationsRequest struct {
	Answers     []clarificationAnswer  `json:"answers"`
	Work        map[string]string      `json:"work"`
	ContextInfo map[string]interface{} `json:"context_info"`
	ReasoningMD string                 `json:"reasoning_md"`
	Intent      string                 `json:"intent"`
	StrictMode  bool                   `json:"strict_mode"`
}

// handleClarifications answers a CLARIFY short-circuit and
// re-orchestrates: the answers augment context_info rather than
// replacing the original Work Envelope (spec §4.1 open question,
// resolved in SPEC_FULL.md — the clarified envelope still carries
// forward whatever intent/work the caller resubmits).
func (s *Server) handleClarifications(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body clarificationsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, apperr.BadPayloadSchema("body", "request body must be valid JSON"))
		return
	}

	if _, ok := s.Sessions.GetByID(id); !ok {
		s.writeError(w, r, apperr.SessionExpired())
		return
	}

	contextInfo := body.ContextInfo
	if contextInfo == nil {
		contextInfo = map[string]interface{}{}
	}
	contextInfo["clarification_answers"] = body.Answers

	env := wireEnvelope{
		Context: wireContext{SessionID: id},
		Payload: wirePayload{
			Intent:      body.Intent,
			Work:        body.Work,
			ContextInfo: contextInfo,
		},
		ReasoningMD: body.ReasoningMD,
		StrictMode:  body.StrictMode,
	}

	req := env.toOverseerRequest(id)
	resp, err := s.Overseer.Orchestrate(r.Context(), req, connectionIDFor(r))
	if err != nil {
		code := string(apperr.CodeInternal)
		var aerr *apperr.Error
		if apperr.As(err, &aerr) {
			code = string(aerr.Code)
		}
		s.recordAudit(r, id, "clarifications", code, map[string]interface{}{"error": err.Error()})
		s.writeError(w, r, err)
		return
	}

	s.Sessions.Touch(id)
	s.recordAudit(r, id, "clarifications", resp.Code, map[string]interface{}{
		"ok":          resp.Ok,
		"next_action": string(resp.NextAction),
	})
	writeJSON(w, http.StatusOK, toOrchestrateResponse(resp))
}
