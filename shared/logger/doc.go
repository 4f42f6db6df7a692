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

/*
Package logger provides structured JSON logging with multi-tenant support
for Third Eye components.

# Overview

The logger package provides structured logging that outputs JSON to stdout,
making logs easily consumable by CloudWatch, ELK stack, or other log
aggregation systems.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (overseer, session, quota, pipeline, httpapi, …)
  - Instance ID and container name (for distributed correlation)
  - Tenant ID (for multi-tenant isolation)
  - Trace ID (propagated from X-Trace-Id, for request correlation)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("overseer")

Log messages with tenant and trace context:

	log.Info(tenantID, traceID, "orchestration started", map[string]interface{}{
	    "session_id": sessionID,
	})

Log errors with status codes:

	log.ErrorWithCode(tenantID, traceID, "orchestration failed", 500, err, map[string]interface{}{
	    "eye": eyeName,
	})

Log with duration tracking:

	start := time.Now()
	// ... do work ...
	log.InfoWithDuration(tenantID, traceID, "eye completed",
	    float64(time.Since(start).Milliseconds()), nil)

# Output Format

Log entries are output as single-line JSON:

	{"timestamp":"2026-01-15T10:30:00.123456789Z","level":"INFO",
	 "component":"overseer","instance_id":"i-abc123","container":"thirdeye-xyz",
	 "tenant_id":"tenant-123","trace_id":"req-456",
	 "message":"orchestration started","fields":{"session_id":"sess-1"}}

# Environment Variables

The logger reads these environment variables:

  - INSTANCE_ID: Deployment instance identifier
  - HOSTNAME: Container hostname (auto-detected)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
