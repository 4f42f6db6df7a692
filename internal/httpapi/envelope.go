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
	"io"

	"github.com/thirdeye-mcp/thirdeye/internal/overseer"
	"github.com/thirdeye-mcp/thirdeye/internal/session"
)

// wireContext is the session-scoping half of a Work Envelope (spec §3).
type wireContext struct {
	SessionID   string `json:"session_id"`
	Language    string `json:"language"`
	TokenBudget int    `json:"token_budget"`
	TenantID    string `json:"tenant_id"`
}

// wirePayload is the validation-scoping half of a Work Envelope.
type wirePayload struct {
	Intent      string                 `json:"intent"`
	Work        map[string]string      `json:"work"`
	ContextInfo map[string]interface{} `json:"context_info"`
}

// wireEnvelope is the decoded /validate request body.
type wireEnvelope struct {
	Context     wireContext `json:"context"`
	Payload     wirePayload `json:"payload"`
	ReasoningMD string      `json:"reasoning_md"`
	StrictMode  bool        `json:"strict_mode"`
}

// decodeEnvelope reads body, unwrapping an MCP "arguments" wrapper if
// present, and returns the normalized wireEnvelope. A body with no
// "arguments" key is treated as an already-unwrapped envelope — this
// lets direct HTTP callers skip the bridge-specific wrapper entirely.
// The wrapper's reserved transport keys ("signal", "_meta",
// "requestId", "progressToken" — spec §6) are never read: only
// "arguments" is unwrapped, so they are dropped by construction rather
// than merged into the orchestrator's view of the body.
func decodeEnvelope(body io.Reader) (wireEnvelope, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return wireEnvelope{}, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return wireEnvelope{}, err
	}

	payload := raw
	if args, ok := probe["arguments"]; ok {
		payload = args
	}

	var env wireEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return wireEnvelope{}, err
	}
	if env.Payload.Work == nil {
		env.Payload.Work = map[string]string{}
	}
	if env.Payload.ContextInfo == nil {
		env.Payload.ContextInfo = map[string]interface{}{}
	}
	return env, nil
}

// toOverseerRequest builds the overseer.Request the orchestrator
// expects. sessionID has already been resolved (from the wire context
// or the connection binding) by the caller.
func (e wireEnvelope) toOverseerRequest(sessionID string) overseer.Request {
	return overseer.Request{
		Intent:      e.Payload.Intent,
		Work:        e.Payload.Work,
		ContextInfo: e.Payload.ContextInfo,
		ReasoningMD: e.ReasoningMD,
		StrictMode:  e.StrictMode,
		SessionID:   sessionID,
	}
}

// applyContext merges the wire context's session-scoping fields into
// the bound Session via a single Update call, so the session reflects
// the caller's declared tenant/language/budget.
func (e wireEnvelope) applyContext(store *session.Store, connectionID string) {
	if e.Context.TenantID == "" && e.Context.Language == "" && e.Context.TokenBudget == 0 {
		return
	}
	diff := session.Diff{}
	if e.Context.TenantID != "" {
		tenantID := e.Context.TenantID
		diff.TenantID = &tenantID
	}
	if e.Context.Language != "" {
		lang := session.Language(e.Context.Language)
		diff.Language = &lang
	}
	if e.Context.TokenBudget != 0 {
		budget := e.Context.TokenBudget
		diff.TokenBudget = &budget
	}
	store.Update(connectionID, diff)
}
