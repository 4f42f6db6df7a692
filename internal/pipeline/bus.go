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

// Package pipeline implements the Pipeline Bus: a per-session publish/
// subscribe topic that streams Overseer progress events to every
// connected WebSocket client, replaying recent history to late joiners
// from a bounded ring buffer.
package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is one progress notification published to a session's topic.
type Event struct {
	Seq       uint64
	SessionID string
	Kind      string // wire event kind: "orchestration_progress" or "eye_update"
	Stage     string // e.g. "routing", "eye:code_review", "complete"
	Status    string // "started", "progress", "done", "error"
	Data      interface{}
	Timestamp time.Time
}

// Kind values an Overseer publishes to the bus (spec §3 Pipeline Event,
// §6 wire envelope).
const (
	KindOrchestrationProgress = "orchestration_progress"
	KindEyeUpdate             = "eye_update"
)

// Option configures a Bus at construction time.
type Option func(*busConfig)

type busConfig struct {
	ringSize            int
	subscriberQueueSize int
}

// WithRingSize overrides the default per-topic ring buffer size (256).
func WithRingSize(n int) Option {
	return func(c *busConfig) { c.ringSize = n }
}

// WithSubscriberQueueSize overrides the default per-subscriber channel
// capacity (64).
func WithSubscriberQueueSize(n int) Option {
	return func(c *busConfig) { c.subscriberQueueSize = n }
}

// Bus multiplexes published Events to subscribers, one topic per
// session id. Topics are created lazily on first publish or subscribe
// and are never explicitly deleted by the Bus itself — callers call
// Close when a session's stream is done.
type Bus struct {
	cfg    busConfig
	topics sync.Map // session id -> *topic
}

// New constructs a Bus with the given options applied over the spec
// defaults (ring size 256, subscriber queue 64).
func New(opts ...Option) *Bus {
	cfg := busConfig{ringSize: 256, subscriberQueueSize: 64}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Bus{cfg: cfg}
}

func (b *Bus) topicFor(sessionID string) *topic {
	if t, ok := b.topics.Load(sessionID); ok {
		return t.(*topic)
	}
	t := newTopic(b.cfg.ringSize, b.cfg.subscriberQueueSize)
	actual, _ := b.topics.LoadOrStore(sessionID, t)
	return actual.(*topic)
}

// Publish appends ev to sessionID's topic and fans it out to every
// live subscriber. ev.Seq and ev.Timestamp are assigned by the bus;
// any values the caller set are overwritten.
func (b *Bus) Publish(sessionID string, ev Event) Event {
	ev.SessionID = sessionID
	return b.topicFor(sessionID).publish(ev)
}

// Subscriber is a live handle on a topic's event stream.
type Subscriber struct {
	ID      string
	Events  <-chan Event
	Dropped func() uint64

	topic *topic
	id    string
}

// Unsubscribe detaches the subscriber from its topic, closing its
// channel. Safe to call more than once.
func (s *Subscriber) Unsubscribe() {
	s.topic.unsubscribe(s.id)
}

// Subscribe attaches a new subscriber to sessionID's topic, replaying
// every retained event with Seq > afterSeq (0 replays everything still
// in the ring) before streaming new publishes live.
func (b *Bus) Subscribe(sessionID string, afterSeq uint64) *Subscriber {
	t := b.topicFor(sessionID)
	return t.subscribe(afterSeq)
}

// Close tears down sessionID's topic, disconnecting every subscriber.
// Intended to be called once the Overseer's orchestration for that
// session has finished and no more progress events will be published.
func (b *Bus) Close(sessionID string) {
	if v, ok := b.topics.LoadAndDelete(sessionID); ok {
		v.(*topic).closeAll()
	}
}

// topic is one session's ring buffer plus its subscriber set.
type topic struct {
	mu      sync.Mutex
	ring    []Event
	start   int // index of the oldest retained entry
	count   int // number of valid entries in ring
	nextSeq uint64

	subMu sync.Mutex
	subs  map[string]*subscriber

	queueSize int
}

type subscriber struct {
	ch      chan Event
	dropped uint64
}

func newTopic(ringSize, queueSize int) *topic {
	return &topic{
		ring:      make([]Event, ringSize),
		subs:      make(map[string]*subscriber),
		queueSize: queueSize,
	}
}

func (t *topic) publish(ev Event) Event {
	t.mu.Lock()
	t.nextSeq++
	ev.Seq = t.nextSeq
	ev.Timestamp = time.Now()

	idx := (t.start + t.count) % len(t.ring)
	if t.count == len(t.ring) {
		// Ring is full; overwrite the oldest slot and advance start.
		t.ring[t.start] = ev
		t.start = (t.start + 1) % len(t.ring)
	} else {
		t.ring[idx] = ev
		t.count++
	}
	t.mu.Unlock()

	t.fanOut(ev)
	return ev
}

func (t *topic) fanOut(ev Event) {
	t.subMu.Lock()
	defer t.subMu.Unlock()

	for _, sub := range t.subs {
		select {
		case sub.ch <- ev:
		default:
			// Subscriber's queue is full: drop its oldest queued event
			// (never the publish) to make room, per the bus's
			// drop-oldest-for-slow-consumer policy.
			select {
			case <-sub.ch:
				atomic.AddUint64(&sub.dropped, 1)
			default:
			}
			select {
			case sub.ch <- ev:
			default:
				// Another goroutine drained concurrently and refilled
				// it; count this as a drop rather than block.
				atomic.AddUint64(&sub.dropped, 1)
			}
		}
	}
}

func (t *topic) subscribe(afterSeq uint64) *Subscriber {
	t.mu.Lock()
	backlog := make([]Event, 0, t.count)
	for i := 0; i < t.count; i++ {
		ev := t.ring[(t.start+i)%len(t.ring)]
		if ev.Seq > afterSeq {
			backlog = append(backlog, ev)
		}
	}
	t.mu.Unlock()

	sub := &subscriber{ch: make(chan Event, t.queueSize)}
	id := newSubscriberID()

	t.subMu.Lock()
	t.subs[id] = sub
	t.subMu.Unlock()

	// Replay obeys the same bounded-queue, drop-oldest policy as live
	// fan-out: a replay larger than the queue capacity keeps only its
	// most recent tail.
	for _, ev := range backlog {
		select {
		case sub.ch <- ev:
		default:
			<-sub.ch
			atomic.AddUint64(&sub.dropped, 1)
			sub.ch <- ev
		}
	}

	return &Subscriber{
		ID:      id,
		Events:  sub.ch,
		Dropped: func() uint64 { return atomic.LoadUint64(&sub.dropped) },
		topic:   t,
		id:      id,
	}
}

func (t *topic) unsubscribe(id string) {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	if sub, ok := t.subs[id]; ok {
		delete(t.subs, id)
		close(sub.ch)
	}
}

func (t *topic) closeAll() {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	for id, sub := range t.subs {
		delete(t.subs, id)
		close(sub.ch)
	}
}

var subscriberSeq uint64

func newSubscriberID() string {
	n := atomic.AddUint64(&subscriberSeq, 1)
	return "sub-" + itoa(n)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
