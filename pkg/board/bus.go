package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler consumes one bus event.
type Handler func(Event)

// BusOption customizes Bus construction.
type BusOption func(*Bus)

// BusWithLogger injects a logger for recovered handler panics.
func BusWithLogger(logger *zap.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// BusWithClock overrides the timestamp source for published events.
func BusWithClock(now func() time.Time) BusOption {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

type subscription struct {
	seq     uint64
	pattern string
	handler Handler
}

// Bus is the shared, ordered publish/subscribe channel.
//
// Delivery is cooperative and single-threaded: Publish on an idle bus drains
// the queue on the caller's goroutine, while a Publish made from inside a
// handler only enqueues. Every event reaches all matching subscribers in
// registration order before the next event is dispatched. The Bus is not safe
// for concurrent use; the engine loop serializes all access.
type Bus struct {
	subs        []*subscription
	seq         uint64
	queue       []Event
	dispatching bool
	logger      *zap.Logger
	now         func() time.Time
}

// NewBus constructs an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Subscribe registers handler for pattern and returns a function that removes
// the subscription. Patterns are an exact channel name, "*" for every channel,
// or "*.suffix" for every channel ending in ".suffix".
func (b *Bus) Subscribe(pattern string, handler Handler) func() {
	b.seq++
	sub := &subscription{seq: b.seq, pattern: pattern, handler: handler}
	b.subs = append(b.subs, sub)
	return func() { b.remove(sub) }
}

// Publish enqueues payload on channel and, unless a dispatch is already in
// progress, drains the queue.
func (b *Bus) Publish(channel string, payload any) {
	b.queue = append(b.queue, Event{
		ID:          uuid.New().String(),
		Channel:     channel,
		Payload:     payload,
		PublishedAt: b.now(),
	})
	if b.dispatching {
		return
	}
	b.drain()
}

// Pending returns the number of queued, undispatched events.
func (b *Bus) Pending() int {
	return len(b.queue)
}

func (b *Bus) drain() {
	b.dispatching = true
	defer func() { b.dispatching = false }()

	for len(b.queue) > 0 {
		event := b.queue[0]
		b.queue = b.queue[1:]
		for _, sub := range b.snapshot() {
			if Matches(sub.pattern, event.Channel) {
				b.deliver(sub, event)
			}
		}
	}
}

// snapshot copies the subscriber list so handlers may (un)subscribe mid-dispatch.
func (b *Bus) snapshot() []*subscription {
	return append([]*subscription(nil), b.subs...)
}

func (b *Bus) deliver(sub *subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus handler panicked",
				zap.String("channel", event.Channel),
				zap.String("event_id", event.ID),
				zap.String("pattern", sub.pattern),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	sub.handler(event)
}

func (b *Bus) remove(target *subscription) {
	for i, sub := range b.subs {
		if sub == target {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Matches reports whether channel satisfies a subscription pattern.
func Matches(pattern, channel string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(channel, pattern[1:])
	default:
		return pattern == channel
	}
}

// Collect subscribes to pattern and returns a function reporting every event
// received so far. Intended for tests and diagnostics.
func (b *Bus) Collect(pattern string) func() []Event {
	var events []Event
	b.Subscribe(pattern, func(e Event) { events = append(events, e) })
	return func() []Event { return append([]Event(nil), events...) }
}
