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

package pipeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAssignsMonotonicSequence(t *testing.T) {
	bus := New()

	e1 := bus.Publish("sess-1", Event{Stage: "routing"})
	e2 := bus.Publish("sess-1", Event{Stage: "eye:code_review"})

	assert.Equal(t, uint64(1), e1.Seq)
	assert.Equal(t, uint64(2), e2.Seq)
	assert.Equal(t, "sess-1", e1.SessionID)
}

func TestSubscribeReceivesLivePublishes(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("sess-1", 0)
	defer sub.Unsubscribe()

	bus.Publish("sess-1", Event{Stage: "routing"})

	select {
	case ev := <-sub.Events:
		assert.Equal(t, "routing", ev.Stage)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestSubscribeReplaysRingFromLastSeen(t *testing.T) {
	bus := New()

	bus.Publish("sess-1", Event{Stage: "a"})
	second := bus.Publish("sess-1", Event{Stage: "b"})
	bus.Publish("sess-1", Event{Stage: "c"})

	sub := bus.Subscribe("sess-1", second.Seq)
	defer sub.Unsubscribe()

	ev := <-sub.Events
	assert.Equal(t, "c", ev.Stage)

	select {
	case <-sub.Events:
		t.Fatal("expected only events after last-seen seq to replay")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeWithZeroReplaysEverythingRetained(t *testing.T) {
	bus := New()
	bus.Publish("sess-1", Event{Stage: "a"})
	bus.Publish("sess-1", Event{Stage: "b"})

	sub := bus.Subscribe("sess-1", 0)
	defer sub.Unsubscribe()

	first := <-sub.Events
	second := <-sub.Events
	assert.Equal(t, "a", first.Stage)
	assert.Equal(t, "b", second.Stage)
}

func TestSlowSubscriberDropsOldestNotPublish(t *testing.T) {
	bus := New(WithRingSize(256), WithSubscriberQueueSize(2))
	sub := bus.Subscribe("sess-1", 0)
	defer sub.Unsubscribe()

	// Never drain: publish more than the queue capacity.
	for i := 0; i < 5; i++ {
		bus.Publish("sess-1", Event{Stage: fmt.Sprintf("stage-%d", i)})
	}

	require.True(t, sub.Dropped() > 0)

	// The queue should hold the most recent events, not the earliest.
	var stages []string
	for i := 0; i < 2; i++ {
		ev := <-sub.Events
		stages = append(stages, ev.Stage)
	}
	assert.Equal(t, []string{"stage-3", "stage-4"}, stages)
}

func TestRingBufferEvictsOldestWhenFull(t *testing.T) {
	bus := New(WithRingSize(3), WithSubscriberQueueSize(64))

	for i := 0; i < 5; i++ {
		bus.Publish("sess-1", Event{Stage: fmt.Sprintf("stage-%d", i)})
	}

	sub := bus.Subscribe("sess-1", 0)
	defer sub.Unsubscribe()

	var stages []string
	for i := 0; i < 3; i++ {
		ev := <-sub.Events
		stages = append(stages, ev.Stage)
	}
	assert.Equal(t, []string{"stage-2", "stage-3", "stage-4"}, stages)
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("sess-1", 0)

	bus.Close("sess-1")

	_, ok := <-sub.Events
	assert.False(t, ok, "subscriber channel should be closed")
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("sess-1", 0)

	sub.Unsubscribe()
	assert.NotPanics(t, func() { sub.Unsubscribe() })
}

func TestIndependentSessionsDoNotShareTopics(t *testing.T) {
	bus := New()
	subA := bus.Subscribe("sess-a", 0)
	defer subA.Unsubscribe()
	subB := bus.Subscribe("sess-b", 0)
	defer subB.Unsubscribe()

	bus.Publish("sess-a", Event{Stage: "only-a"})

	select {
	case ev := <-subA.Events:
		assert.Equal(t, "only-a", ev.Stage)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	select {
	case <-subB.Events:
		t.Fatal("session b should not see session a's events")
	case <-time.After(50 * time.Millisecond):
	}
}
