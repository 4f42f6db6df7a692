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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReclamationLoopReapsOnTick(t *testing.T) {
	store := New(-time.Second) // every session is born already expired
	store.GetOrCreate("conn-1")
	require.Equal(t, 1, store.Count())

	loop := NewReclamationLoop(store, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for store.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 0, store.Count())

	cancel()
	select {
	case <-loop.Stopped():
	case <-time.After(time.Second):
		t.Fatal("reclamation loop did not stop after context cancellation")
	}
}

func TestReclamationLoopLeavesLiveSessions(t *testing.T) {
	store := New(time.Hour)
	store.GetOrCreate("conn-1")

	loop := NewReclamationLoop(store, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, store.Count())

	cancel()
	<-loop.Stopped()
}

func TestReclamationLoopStopsPromptlyOnCancel(t *testing.T) {
	store := New(time.Hour)
	loop := NewReclamationLoop(store, time.Hour) // long interval; cancel should still return fast

	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	cancel()

	select {
	case <-loop.Stopped():
	case <-time.After(time.Second):
		t.Fatal("reclamation loop ignored context cancellation")
	}
}
