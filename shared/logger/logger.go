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

package logger

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

// Logger provides structured logging with multi-tenant support
type Logger struct {
	Component  string
	InstanceID string
	Container  string
}

// LogEntry represents a structured log entry with required fields for multi-tenant logging
type LogEntry struct {
	Timestamp  string                 `json:"timestamp"`
	Level      LogLevel               `json:"level"`
	Component  string                 `json:"component"`
	InstanceID string                 `json:"instance_id"`
	Container  string                 `json:"container"`
	TenantID   string                 `json:"tenant_id,omitempty"`
	TraceID    string                 `json:"trace_id,omitempty"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// New creates a new Logger for the specified component
func New(component string) *Logger {
	// Get instance ID from environment (set during deployment)
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	// Get container name from hostname
	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
	}
}

// Log creates a structured log entry and writes it to stdout
func (l *Logger) Log(level LogLevel, tenantID, traceID, message string, fields map[string]interface{}) {
	entry := LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Level:      level,
		Component:  l.Component,
		InstanceID: l.InstanceID,
		Container:  l.Container,
		TenantID:   tenantID,
		TraceID:    traceID,
		Message:    message,
		Fields:     fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		log.Printf("ERROR: Failed to marshal log entry: %v", err)
		return
	}

	// Write JSON log to stdout (the process supervisor captures this)
	log.Println(string(jsonBytes))
}

// Info logs an informational message
func (l *Logger) Info(tenantID, traceID, message string, fields map[string]interface{}) {
	l.Log(INFO, tenantID, traceID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(tenantID, traceID, message string, fields map[string]interface{}) {
	l.Log(ERROR, tenantID, traceID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(tenantID, traceID, message string, fields map[string]interface{}) {
	l.Log(WARN, tenantID, traceID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(tenantID, traceID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, tenantID, traceID, message, fields)
}

// InfoWithDuration logs an info message with a duration_ms field
func (l *Logger) InfoWithDuration(tenantID, traceID, message string, durationMS float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = durationMS
	l.Info(tenantID, traceID, message, fields)
}

// ErrorWithCode logs an error with an associated HTTP or taxonomy status code
func (l *Logger) ErrorWithCode(tenantID, traceID, message string, statusCode int, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["status_code"] = statusCode
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(tenantID, traceID, message, fields)
}

// ForRequest binds tenantID and traceID once so every call in a request's
// lifetime (auth middleware, quota admission, the handler itself, the
// final writeError) logs under the same correlation pair without
// re-threading both strings through every call site. The teacher's
// logger has no equivalent — every call there repeats tenantID/traceID
// by hand, which is fine for a handful of call sites but gets
// error-prone once a request crosses auth, quota, and orchestration
// layers the way Third Eye's request path does.
func (l *Logger) ForRequest(tenantID, traceID string) *RequestLogger {
	return &RequestLogger{l: l, tenantID: tenantID, traceID: traceID}
}

// RequestLogger is a Logger scoped to one tenant/trace pair for the
// duration of a single request.
type RequestLogger struct {
	l        *Logger
	tenantID string
	traceID  string
}

// TenantID returns the tenant this logger is scoped to, if any.
func (r *RequestLogger) TenantID() string { return r.tenantID }

// TraceID returns the trace id this logger is scoped to.
func (r *RequestLogger) TraceID() string { return r.traceID }

func (r *RequestLogger) Info(message string, fields map[string]interface{}) {
	r.l.Info(r.tenantID, r.traceID, message, fields)
}

func (r *RequestLogger) Warn(message string, fields map[string]interface{}) {
	r.l.Warn(r.tenantID, r.traceID, message, fields)
}

func (r *RequestLogger) Error(message string, fields map[string]interface{}) {
	r.l.Error(r.tenantID, r.traceID, message, fields)
}

func (r *RequestLogger) Debug(message string, fields map[string]interface{}) {
	r.l.Debug(r.tenantID, r.traceID, message, fields)
}

func (r *RequestLogger) InfoWithDuration(message string, durationMS float64, fields map[string]interface{}) {
	r.l.InfoWithDuration(r.tenantID, r.traceID, message, durationMS, fields)
}

func (r *RequestLogger) ErrorWithCode(message string, statusCode int, err error, fields map[string]interface{}) {
	r.l.ErrorWithCode(r.tenantID, r.traceID, message, statusCode, err, fields)
}
