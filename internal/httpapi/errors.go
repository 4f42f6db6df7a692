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

	"github.com/thirdeye-mcp/thirdeye/internal/apperr"
)

// errorBody is the wire shape of every E_* response (spec §7).
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
	Field   string `json:"field,omitempty"`
}

// writeError classifies err into the apperr taxonomy if it isn't
// already, logs it under the request's tenant/trace pair, and writes
// the mapped HTTP status and JSON body. The trace id is folded into an
// uncategorized error's E_INTERNAL wrapping so it can be correlated
// later even if no apperr.Error classified it.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	traceID := traceIDForRequest(r)
	rl := s.log.ForRequest(tenantIDFromCtx(r.Context()), traceID)

	var aerr *apperr.Error
	if !apperr.As(err, &aerr) {
		aerr = apperr.Internal(err, traceID)
	}

	if aerr.Code == apperr.CodeInternal {
		rl.ErrorWithCode(aerr.Message, aerr.HTTPStatus(), aerr.Cause, nil)
	} else {
		rl.Warn(aerr.Error(), nil)
	}

	writeJSON(w, aerr.HTTPStatus(), errorBody{
		Code:    string(aerr.Code),
		Message: aerr.Message,
		Hint:    aerr.Hint,
		Field:   aerr.Field,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
