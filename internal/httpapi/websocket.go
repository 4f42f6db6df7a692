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
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/thirdeye-mcp/thirdeye/internal/pipeline"
)

// wireFrame is one WebSocket frame pushed over /ws/pipeline/{session_id}
// (spec §6): progress events replayed from the Pipeline Bus's ring
// buffer, then streamed live as the Overseer publishes them.
type wireFrame struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Seq       uint64      `json:"seq"`
	Timestamp string      `json:"ts"`
	Data      interface{} `json:"data"`
}

// apiKeySubprotocol extracts the raw key from a "api-key-<key>"
// Sec-WebSocket-Protocol entry, the bridge's workaround for browsers
// that can't set custom headers on the WebSocket handshake.
func apiKeySubprotocol(protocols []string) string {
	for _, p := range protocols {
		if strings.HasPrefix(p, "api-key-") {
			return strings.TrimPrefix(p, "api-key-")
		}
	}
	return ""
}

// handlePipelineWS upgrades the connection, authenticates via the
// api-key-<key> subprotocol, and streams sessionID's Pipeline Bus
// topic: the ring buffer's backlog first (replay), then live events,
// per spec §8 scenario 6's replay-then-live ordering.
func (s *Server) handlePipelineWS(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	traceID := traceIDForRequest(r)

	rawKey := apiKeySubprotocol(websocketProtocols(r))
	if _, err := s.Keys.Validate(r.Context(), rawKey); err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.ForRequest(tenantIDFromCtx(r.Context()), traceID).Warn("websocket upgrade failed: "+err.Error(), nil)
		return
	}
	defer func() { _ = conn.Close() }()

	afterSeq := parseAfterSeq(r.URL.Query().Get("after_seq"))
	sub := s.Bus.Subscribe(sessionID, afterSeq)
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go s.drainClientFrames(conn, done)

	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(toWireFrame(ev)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// drainClientFrames reads (and discards, beyond ping/pong) client
// frames until the connection closes, so the read side doesn't block
// the write goroutine's select loop forever and the connection's
// close is detected promptly.
func (s *Server) drainClientFrames(conn interface {
	ReadMessage() (int, []byte, error)
}, done chan<- struct{}) {
	defer close(done)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			return
		}
	}
}

func toWireFrame(ev pipeline.Event) wireFrame {
	return wireFrame{
		Type:      ev.Kind,
		SessionID: ev.SessionID,
		Seq:       ev.Seq,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
		Data:      ev.Data,
	}
}

func parseAfterSeq(raw string) uint64 {
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func websocketProtocols(r *http.Request) []string {
	raw := r.Header.Get("Sec-WebSocket-Protocol")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
