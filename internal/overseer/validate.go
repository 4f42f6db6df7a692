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

import "github.com/thirdeye-mcp/thirdeye/internal/apperr"

// validate applies the strict/relaxed thresholds from spec §8.
// Strict mode: intent >= 5 chars, work non-empty, context_info
// non-empty, reasoning_md >= 10 chars. Relaxed mode: only intent >= 1
// char is required.
func validate(req Request) error {
	if req.StrictMode {
		if len(req.Intent) < 5 {
			return apperr.BadPayloadSchema("intent", "intent must be at least 5 characters in strict mode")
		}
		if len(req.Work) < 1 {
			return apperr.BadPayloadSchema("work", "work must contain at least one artifact in strict mode")
		}
		if len(req.ContextInfo) < 1 {
			return apperr.BadPayloadSchema("context_info", "context_info must contain at least one entry in strict mode")
		}
		if len(req.ReasoningMD) < 10 {
			return apperr.BadPayloadSchema("reasoning_md", "reasoning_md must be at least 10 characters in strict mode")
		}
		return nil
	}

	if len(req.Intent) < 1 {
		return apperr.BadPayloadSchema("intent", "intent must not be empty")
	}
	return nil
}
