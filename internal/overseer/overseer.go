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

package overseer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thirdeye-mcp/thirdeye/internal/apperr"
	"github.com/thirdeye-mcp/thirdeye/internal/eyes"
	"github.com/thirdeye-mcp/thirdeye/internal/pipeline"
	"github.com/thirdeye-mcp/thirdeye/internal/provider"
	"github.com/thirdeye-mcp/thirdeye/internal/session"
)

// DefaultAmbiguityEyeName is the Eye routed to when the routing
// decision names none, per spec §4.1's "empty list with ok work"
// tie-break.
const DefaultAmbiguityEyeName = "ambiguity_detector"

// Overseer turns a validated Work Envelope into an ordered Eye
// invocation sequence and an aggregated Response.
type Overseer struct {
	Registry *eyes.Registry
	Routing  *eyes.RoutingEye
	Bus      *pipeline.Bus
	Sessions *session.Store

	RoutingTimeout time.Duration
}

// Orchestrate validates req, injects a session id if absent, asks the
// RoutingEye for an Eye sequence, runs it, and returns the aggregated
// Response — or a classified error for outer layers to surface as an
// E_* HTTP response.
func (o *Overseer) Orchestrate(ctx context.Context, req Request, connectionID string) (*Response, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sess := o.Sessions.GetOrCreate(connectionID)
		sessionID = sess.ID
	}

	envelope := eyes.Envelope{
		Intent:      req.Intent,
		Work:        req.Work,
		ContextInfo: req.ContextInfo,
		ReasoningMD: req.ReasoningMD,
		SessionID:   sessionID,
	}

	names, err := o.route(ctx, envelope)
	if err != nil {
		return nil, err
	}

	return o.execute(ctx, sessionID, envelope, names)
}

func (o *Overseer) route(ctx context.Context, envelope eyes.Envelope) ([]string, error) {
	timeout := o.RoutingTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	routeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	decision, err := o.Routing.Route(routeCtx, envelope)
	if err != nil {
		return nil, apperr.LLMError(fmt.Errorf("routing decision unavailable: %w", err))
	}

	names := eyes.ResolveRoutedNames(decision, o.Registry, DefaultAmbiguityEyeName)
	return names, nil
}

func (o *Overseer) execute(ctx context.Context, sessionID string, envelope eyes.Envelope, names []string) (*Response, error) {
	total := len(names)
	outcomes := make([]EyeOutcome, 0, total)

	for i, name := range names {
		o.publishProgress(sessionID, name, i, total)

		result, err := o.invokeWithRetry(ctx, name, envelope)
		if err != nil {
			o.publishEyeUpdate(sessionID, name, nil, err)
			return partialFailureResponse(outcomes, err), apperr.OrchestrationFailed(err, apperr.PartialResults{
				CompletedValidations: outcomeNames(outcomes),
				PartialResults:       outcomes,
			})
		}

		o.publishEyeUpdate(sessionID, name, result, nil)
		outcome := toOutcome(name, result)
		outcomes = append(outcomes, outcome)

		if result.Ok != nil && !*result.Ok {
			switch result.Code {
			case eyes.CodeClarificationRequired:
				return shortCircuitResponse(outcomes, result, NextActionSubmitClarifications), nil
			case eyes.CodeRevisionRequired:
				return shortCircuitResponse(outcomes, result, NextActionRevise), nil
			}
		}
	}

	return aggregate(outcomes), nil
}

// invokeWithRetry invokes name once. A timeout or upstream_5xx failure
// is retried exactly once with the same input before giving up (spec
// §7's retry policy); any other classified failure aborts immediately
// without a retry, since re-sending an auth or rate-limit failure
// against the same provider can't plausibly succeed.
func (o *Overseer) invokeWithRetry(ctx context.Context, name string, envelope eyes.Envelope) (*eyes.Result, error) {
	result, err := o.Registry.Invoke(ctx, name, envelope)
	if err == nil {
		return result, nil
	}
	if !isRetryable(err) {
		return nil, err
	}
	return o.Registry.Invoke(ctx, name, envelope)
}

func isRetryable(err error) bool {
	var perr *provider.Error
	if errors.As(err, &perr) {
		return perr.Class == provider.ClassTimeout || perr.Class == provider.ClassUpstream5xx
	}
	// Non-provider failures (e.g. an error an Eye returns itself)
	// aren't known to be transient; still worth one retry since the
	// Overseer has nothing better to fall back to here.
	return true
}

func (o *Overseer) publishProgress(sessionID, name string, completed, total int) {
	progress := 0.0
	if total > 0 {
		progress = float64(completed) / float64(total)
	}
	o.Bus.Publish(sessionID, pipeline.Event{
		Kind:   pipeline.KindOrchestrationProgress,
		Stage:  "eye_" + name,
		Status: "started",
		Data: map[string]interface{}{
			"progress":      progress,
			"current_stage": name,
			"total_stages":  total,
		},
	})
}

func (o *Overseer) publishEyeUpdate(sessionID, name string, result *eyes.Result, err error) {
	data := map[string]interface{}{"eye": name}
	status := "done"
	if err != nil {
		status = "error"
		data["error"] = err.Error()
	} else if result != nil {
		data["code"] = result.Code
		data["ok"] = result.Ok
	}
	o.Bus.Publish(sessionID, pipeline.Event{Kind: pipeline.KindEyeUpdate, Stage: "eye_" + name, Status: status, Data: data})
}

func toOutcome(name string, result *eyes.Result) EyeOutcome {
	return EyeOutcome{
		Name:       name,
		Ok:         result.Ok,
		Code:       result.Code,
		MD:         result.MD,
		Data:       result.Data,
		Confidence: result.Confidence,
	}
}

func outcomeNames(outcomes []EyeOutcome) []string {
	names := make([]string, len(outcomes))
	for i, o := range outcomes {
		names[i] = o.Name
	}
	return names
}

func shortCircuitResponse(outcomes []EyeOutcome, result *eyes.Result, next NextAction) *Response {
	return &Response{
		Ok:   false,
		Code: result.Code,
		MD:   result.MD,
		Data: map[string]interface{}{
			"eyes":           outcomes,
			"clarifications": result.Clarifications,
		},
		NextAction: next,
	}
}

func partialFailureResponse(outcomes []EyeOutcome, err error) *Response {
	return &Response{
		Ok:   false,
		Code: string(apperr.CodeOrchestrationFailed),
		MD:   "a mid-pipeline Eye failed",
		Data: map[string]interface{}{
			"eyes":            outcomes,
			"partial_results": outcomes,
			"error":           err.Error(),
		},
		NextAction: NextActionNone,
	}
}

func aggregate(outcomes []EyeOutcome) *Response {
	allOK := true
	var sum float64
	var count int
	for _, o := range outcomes {
		if o.Ok == nil || !*o.Ok {
			allOK = false
		}
		if o.Confidence != nil {
			sum += *o.Confidence
			count++
		}
	}

	code := "OK_ALL"
	if !allOK {
		code = "E_PARTIAL_FAIL"
	}

	var confidence float64
	if count > 0 {
		confidence = sum / float64(count)
	}

	return &Response{
		Ok:   allOK,
		Code: code,
		MD:   fmt.Sprintf("%d eye(s) evaluated", len(outcomes)),
		Data: map[string]interface{}{
			"eyes":       outcomes,
			"confidence": confidence,
		},
		NextAction: NextActionNone,
	}
}
