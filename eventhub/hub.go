// Package eventhub implements the in-process typed publish/subscribe bus
// of spec.md 4.7, grounded on original_source's EventBus.h semantics. The
// snapshot-copy-then-unlock fan-out and atomic per-topic counters follow
// the teacher's telemetry collector idiom (infrastructure/telemetry/
// trafficstats/collector.go): readers copy state out under a brief lock,
// then operate lock-free.
package eventhub

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Priority orders subscriber invocation within a topic; higher runs first.
type Priority int

// Filter decides whether a subscriber should receive a given event.
// Returning false skips the callback and increments the filtered counter.
type Filter func(data any) bool

// Callback is a subscriber's handler. Panics are recovered, counted as
// failures, and reported to the onPanic hook given to New (when non-nil) —
// they never propagate to the publisher.
type Callback func(data any)

type subscription struct {
	priority Priority
	callback Callback
	filter   Filter
	seq      int // insertion order, tiebreaker within equal priority
}

// TopicCounters are the atomic per-topic publish/filter/failure counts
// spec.md 4.7 requires.
type TopicCounters struct {
	Published uint64
	Filtered  uint64
	Failed    uint64
}

type topicState struct {
	mu   sync.RWMutex
	subs []subscription
	nextSeq int

	published atomic.Uint64
	filtered  atomic.Uint64
	failed    atomic.Uint64
}

// Hub is a typed, in-process pub/sub bus. One Hub instance is shared by
// every component that publishes or subscribes to SentinelFS events.
type Hub struct {
	mu     sync.Mutex
	topics map[string]*topicState
	onPanic func(topic string, r any)
}

// New creates an empty hub. onPanic, if non-nil, is called whenever a
// subscriber callback panics (after it has been recovered and counted).
func New(onPanic func(topic string, r any)) *Hub {
	return &Hub{topics: make(map[string]*topicState), onPanic: onPanic}
}

func (h *Hub) topic(name string) *topicState {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[name]
	if !ok {
		t = &topicState{}
		h.topics[name] = t
	}
	return t
}

// Subscribe registers callback on topic at priority, optionally gated by
// filter. Subscribers are invoked in descending priority order; within
// equal priority, in subscription order.
func (h *Hub) Subscribe(topic string, priority Priority, callback Callback, filter Filter) {
	t := h.topic(topic)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, subscription{priority: priority, callback: callback, filter: filter, seq: t.nextSeq})
	t.nextSeq++
	sort.SliceStable(t.subs, func(i, j int) bool { return t.subs[i].priority > t.subs[j].priority })
}

// Publish snapshot-copies topic's subscriber list under its lock, releases
// the lock, then invokes each callback outside any lock.
func (h *Hub) Publish(topic string, data any) {
	t := h.topic(topic)
	t.published.Add(1)

	t.mu.RLock()
	subs := make([]subscription, len(t.subs))
	copy(subs, t.subs)
	t.mu.RUnlock()

	for _, s := range subs {
		if s.filter != nil && !s.filter(data) {
			t.filtered.Add(1)
			continue
		}
		h.invoke(topic, t, s, data)
	}
}

func (h *Hub) invoke(topic string, t *topicState, s subscription, data any) {
	defer func() {
		if r := recover(); r != nil {
			t.failed.Add(1)
			if h.onPanic != nil {
				h.onPanic(topic, r)
			}
		}
	}()
	s.callback(data)
}

// PublishBatch publishes each event in order, preserving inter-event
// ordering within the batch (spec.md 4.7).
func (h *Hub) PublishBatch(topic string, events []any) {
	for _, e := range events {
		h.Publish(topic, e)
	}
}

// Counters returns topic's published/filtered/failed counts.
func (h *Hub) Counters(topic string) TopicCounters {
	t := h.topic(topic)
	return TopicCounters{
		Published: t.published.Load(),
		Filtered:  t.filtered.Load(),
		Failed:    t.failed.Load(),
	}
}
