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

package session

import (
	"context"
	"time"

	"github.com/thirdeye-mcp/thirdeye/shared/logger"
)

// DBReaper lets a ReclamationLoop also sweep a persisted session table
// directly, independent of whatever the in-memory Store currently
// holds — covering rows left behind by a process that crashed before
// its own in-memory entries could be reaped.
type DBReaper interface {
	ReapExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// ReclamationLoop is a supervised background task that periodically
// calls Store.CleanupStale. It reads an explicit stop signal (ctx.Done)
// and exits cleanly on teardown — no bare goroutine with a hidden
// interval is left running after Stop/cancel.
type ReclamationLoop struct {
	store    *Store
	interval time.Duration
	log      *logger.Logger
	done     chan struct{}
	dbReaper DBReaper
}

// NewReclamationLoop wires a loop over store, scanning every interval
// (spec default: 5 minutes).
func NewReclamationLoop(store *Store, interval time.Duration) *ReclamationLoop {
	return &ReclamationLoop{
		store:    store,
		interval: interval,
		log:      logger.New("session.reclaim"),
		done:     make(chan struct{}),
	}
}

// SetDBReaper wires reaper as the loop's persisted-table sweep,
// running alongside the in-memory CleanupStale every tick.
func (r *ReclamationLoop) SetDBReaper(reaper DBReaper) {
	r.dbReaper = reaper
}

// Run blocks, reaping stale sessions every interval until ctx is
// canceled. Intended to be launched via `go loop.Run(ctx)` at startup.
func (r *ReclamationLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("", "", "reclamation loop stopping", nil)
			return
		case <-ticker.C:
			reaped := r.store.CleanupStale()
			if reaped > 0 {
				r.log.Info("", "", "reclaimed stale sessions", map[string]interface{}{
					"reaped": reaped,
				})
			}
			if r.dbReaper != nil {
				if n, err := r.dbReaper.ReapExpiredSessions(ctx, time.Now()); err != nil {
					r.log.Error("", "", "db session reap failed", map[string]interface{}{"error": err.Error()})
				} else if n > 0 {
					r.log.Info("", "", "reclaimed stale persisted sessions", map[string]interface{}{"reaped": n})
				}
			}
		}
	}
}

// Stopped returns a channel that closes once Run has returned.
func (r *ReclamationLoop) Stopped() <-chan struct{} {
	return r.done
}
