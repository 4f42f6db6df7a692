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

package eyes

import (
	"context"
	"strings"
)

// CodeReviewEye, PlanReviewEye, and RequirementsEye are illustrative
// validator Eyes: thin enough to prove the Registry's invocation
// contract without pretending to be a real static-analysis or
// requirements engine. A production deployment registers real
// validators behind the same Eye interface.

type CodeReviewEye struct{}

func (e *CodeReviewEye) Describe() Capability {
	return Capability{Name: "code_review", Version: "1", AcceptsWorkKinds: []string{"code"}}
}

func (e *CodeReviewEye) Health(_ context.Context) HealthStatus {
	return HealthStatus{Healthy: true}
}

func (e *CodeReviewEye) Invoke(_ context.Context, envelope Envelope) (*Result, error) {
	code, ok := envelope.Work["code"]
	if !ok || strings.TrimSpace(code) == "" {
		return &Result{Ok: boolPtr(false), Code: "E_NO_CODE", MD: "no code artifact submitted"}, nil
	}

	var findings []string
	if strings.Contains(code, "TODO") {
		findings = append(findings, "unresolved TODO found")
	}
	if !strings.Contains(code, "\n") && len(code) > 200 {
		findings = append(findings, "single-line code block is unusually long")
	}

	if len(findings) > 0 {
		return &Result{
			Ok:         boolPtr(false),
			Code:       CodeRevisionRequired,
			MD:         "code review found issues: " + strings.Join(findings, "; "),
			Data:       map[string]interface{}{"findings": findings},
			Confidence: floatPtr(0.6),
		}, nil
	}

	return &Result{Ok: boolPtr(true), Code: "OK", MD: "no issues found", Confidence: floatPtr(0.8)}, nil
}

type PlanReviewEye struct{}

func (e *PlanReviewEye) Describe() Capability {
	return Capability{Name: "plan_review", Version: "1", AcceptsWorkKinds: []string{"plan"}}
}

func (e *PlanReviewEye) Health(_ context.Context) HealthStatus {
	return HealthStatus{Healthy: true}
}

func (e *PlanReviewEye) Invoke(_ context.Context, envelope Envelope) (*Result, error) {
	plan, ok := envelope.Work["plan"]
	if !ok || strings.TrimSpace(plan) == "" {
		return &Result{Ok: boolPtr(false), Code: "E_NO_PLAN", MD: "no plan artifact submitted"}, nil
	}

	steps := strings.Count(plan, "\n") + 1
	if steps < 2 {
		return &Result{
			Ok:         boolPtr(false),
			Code:       CodeRevisionRequired,
			MD:         "plan has too few distinguishable steps",
			Confidence: floatPtr(0.5),
		}, nil
	}

	return &Result{Ok: boolPtr(true), Code: "OK", MD: "plan has a reasonable number of steps", Confidence: floatPtr(0.75)}, nil
}

type RequirementsEye struct{}

func (e *RequirementsEye) Describe() Capability {
	return Capability{Name: "requirements", Version: "1", AcceptsWorkKinds: []string{"requirements"}}
}

func (e *RequirementsEye) Health(_ context.Context) HealthStatus {
	return HealthStatus{Healthy: true}
}

func (e *RequirementsEye) Invoke(_ context.Context, envelope Envelope) (*Result, error) {
	reqs, ok := envelope.Work["requirements"]
	if !ok || strings.TrimSpace(reqs) == "" {
		return &Result{Ok: boolPtr(false), Code: "E_NO_REQUIREMENTS", MD: "no requirements artifact submitted"}, nil
	}

	if len(envelope.ReasoningMD) < 10 {
		return &Result{
			Ok:         boolPtr(false),
			Code:       CodeRevisionRequired,
			MD:         "requirements lack supporting justification",
			Confidence: floatPtr(0.5),
		}, nil
	}

	return &Result{Ok: boolPtr(true), Code: "OK", MD: "requirements are adequately justified", Confidence: floatPtr(0.7)}, nil
}
