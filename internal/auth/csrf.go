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

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/thirdeye-mcp/thirdeye/internal/apperr"
)

// Token is the double-submit CSRF value: the same string is delivered
// as a cookie and echoed back by the client as the X-CSRF-Token
// header. Its form is "token:timestamp:signature", where signature
// authenticates token+timestamp against the server secret — adapted
// from the request-signing pattern of AWS SigV4 (HMAC over a canonical
// string) to a same-service double-submit token instead of a
// cross-service request signature.
type Token string

// CSRF issues and verifies Tokens under a single server secret.
type CSRF struct {
	serverSecret string
	validity     time.Duration
	now          func() time.Time
}

// NewCSRF builds a CSRF guard. validity is the spec default of 3600s
// unless overridden.
func NewCSRF(serverSecret string, validity time.Duration) *CSRF {
	return &CSRF{serverSecret: serverSecret, validity: validity, now: time.Now}
}

func (c *CSRF) sign(token, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(c.serverSecret))
	mac.Write([]byte(token + ":" + timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// Issue mints a fresh Token stamped with the current time.
func (c *CSRF) Issue() (Token, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("csrf: generate token: %w", err)
	}
	token := hex.EncodeToString(raw)
	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	signature := c.sign(token, timestamp)
	return Token(token + ":" + timestamp + ":" + signature), nil
}

// Verify checks that cookie and header are byte-for-byte identical,
// that the embedded signature verifies under the server secret, and
// that the embedded timestamp is within the validity window of now.
// Any failure returns E_CSRF_FAILED.
func (c *CSRF) Verify(cookie, header string) error {
	if cookie == "" || header == "" {
		return apperr.CSRFFailed("missing CSRF cookie or header")
	}
	if cookie != header {
		return apperr.CSRFFailed("CSRF cookie and header do not match")
	}

	parts := strings.SplitN(cookie, ":", 3)
	if len(parts) != 3 {
		return apperr.CSRFFailed("malformed CSRF token")
	}
	token, timestamp, signature := parts[0], parts[1], parts[2]

	expected := c.sign(token, timestamp)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return apperr.CSRFFailed("CSRF signature mismatch")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return apperr.CSRFFailed("malformed CSRF timestamp")
	}
	age := c.now().Sub(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if age > c.validity {
		return apperr.CSRFFailed("CSRF token outside validity window")
	}

	return nil
}
