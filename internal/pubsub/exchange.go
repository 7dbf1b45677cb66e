// Package pubsub provides the topic-based broadcast directory shared by the
// event dispatcher and its subscribers.
package pubsub

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/termrun/schema"
)

// Broadcast is one published payload on a topic.
type Broadcast = schema.Broadcast

// Exchange fans broadcasts out to per-topic subscribers. Lookups are safe for
// concurrent readers; entries are inserted and removed, never mutated in
// place.
type Exchange struct {
	mu    sync.RWMutex
	subs  map[string]map[chan Broadcast]struct{}
	log   pslog.Logger
	depth int
}

// New constructs an Exchange.
func New(logger pslog.Logger) *Exchange {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Exchange{
		subs:  make(map[string]map[chan Broadcast]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the topic and returns a channel plus
// a cancel function. Cancel is idempotent per subscriber.
func (e *Exchange) Subscribe(topic string) (<-chan Broadcast, func()) {
	if e == nil {
		return nil, func() {}
	}
	ch := make(chan Broadcast, e.depth)
	e.mu.Lock()
	topicSubs := e.subs[topic]
	if topicSubs == nil {
		topicSubs = make(map[chan Broadcast]struct{})
		e.subs[topic] = topicSubs
	}
	topicSubs[ch] = struct{}{}
	count := len(topicSubs)
	e.mu.Unlock()
	if e.log != nil {
		e.log.With("topic", topic).Debug("pubsub subscribe", "subs", count)
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			if subs := e.subs[topic]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(e.subs, topic)
				}
			}
			close(ch)
			e.mu.Unlock()
			if e.log != nil {
				e.log.With("topic", topic).Debug("pubsub unsubscribe")
			}
		})
	}
}

// Subscribers reports the current subscriber count for a topic.
func (e *Exchange) Subscribers(topic string) int {
	if e == nil {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs[topic])
}

// Publish delivers the payload to all current subscribers of the topic.
// Delivery is best-effort: a full subscriber channel drops the broadcast.
// Absence of subscribers is not an error.
func (e *Exchange) Publish(topic string, payload any) {
	if e == nil {
		return
	}
	e.mu.RLock()
	topicSubs := e.subs[topic]
	if len(topicSubs) == 0 {
		e.mu.RUnlock()
		return
	}
	event := Broadcast{Topic: topic, Payload: payload}
	dropped := 0
	// Sends stay under the read lock so a concurrent cancel, which closes
	// the channel under the write lock, can never race a send.
	for sub := range topicSubs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	e.mu.RUnlock()
	if dropped > 0 && e.log != nil {
		e.log.With("topic", topic).Trace("pubsub dropped", "count", dropped)
	}
}
