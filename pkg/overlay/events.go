package overlay

import "sync"

// Broker replaces the source's cyclic back-pointer from a leaf into its
// scheduler's listener (§9 "Cyclic observer graph"): each endpoint
// publishes typed events by name and listeners subscribe by handle, with
// explicit unsubscription. No raw pointer into a foreign lifetime is
// held anywhere in pkg/overlay.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[int]func(any)
	next int
}

// NewBroker returns an empty, ready-to-use event broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[int]func(any))}
}

// Handle identifies one subscription so it can later be removed.
type Handle struct {
	topic string
	id    int
}

// Subscribe registers fn to run (synchronously, from Publish's caller)
// whenever topic is published. Returns a Handle for Unsubscribe.
func (b *Broker) Subscribe(topic string, fn func(any)) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]func(any))
	}
	b.next++
	id := b.next
	b.subs[topic][id] = fn
	return Handle{topic: topic, id: id}
}

// Unsubscribe removes a previously registered listener. Safe to call
// more than once.
func (b *Broker) Unsubscribe(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[h.topic], h.id)
}

// Publish synchronously invokes every listener currently subscribed to
// topic, in an unspecified order. Handlers run inline (the node is
// single-threaded cooperative per §5) and must not block.
func (b *Broker) Publish(topic string, payload any) {
	b.mu.Lock()
	fns := make([]func(any), 0, len(b.subs[topic]))
	for _, fn := range b.subs[topic] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(payload)
	}
}

// Scheduler observer topics (§6 "Scheduler observer interface"). Payload
// types are documented alongside each topic's publisher in leaf.go.
const (
	TopicFatherChanging     = "fatherChanging"
	TopicFatherChanged      = "fatherChanged"
	TopicAvailabilityChange = "availabilityChanged"
)

// FatherChangedEvent is the payload published on TopicFatherChanged.
type FatherChangedEvent struct {
	OK bool
}

// AvailabilityChangedEvent is the payload published on
// TopicAvailabilityChange.
type AvailabilityChangedEvent struct {
	Available bool
}
