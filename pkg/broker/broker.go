package broker

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/theia-log/theia/pkg/filter"
	"github.com/theia-log/theia/pkg/log"
	"github.com/theia-log/theia/pkg/metrics"
	"github.com/theia-log/theia/pkg/model"
)

// Sink is the outbound side of a live subscriber. Send enqueues one
// serialized event and must not block indefinitely: implementations
// return an error once their bounded buffer stays full past a grace
// period, or when the underlying channel is gone. Any error evicts the
// subscription.
type Sink interface {
	Send(payload []byte) error
}

// subscription pairs a subscriber's sink with its compiled filter.
type subscription struct {
	id      string
	sink    Sink
	match   filter.Predicate
	created time.Time
}

// Broker maintains the live subscription set and dispatches events to
// matching subscribers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]*subscription
	logger zerolog.Logger
}

// New creates an empty broker.
func New() *Broker {
	return &Broker{
		subs:   make(map[string]*subscription),
		logger: log.WithComponent("broker"),
	}
}

// Subscribe registers a sink with its compiled filter and returns the
// subscription id.
func (b *Broker) Subscribe(sink Sink, match filter.Predicate) string {
	sub := &subscription{
		id:      uuid.New().String(),
		sink:    sink,
		match:   match,
		created: time.Now(),
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	count := len(b.subs)
	b.mu.Unlock()

	metrics.LiveSubscribers.Set(float64(count))
	b.logger.Debug().Str("subscription", sub.id).Int("total", count).Msg("Subscriber added")
	return sub.id
}

// Unsubscribe removes a subscription. Unknown ids are ignored, so the
// call is safe after an eviction already removed the subscriber.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	_, ok := b.subs[id]
	delete(b.subs, id)
	count := len(b.subs)
	b.mu.Unlock()

	if ok {
		metrics.LiveSubscribers.Set(float64(count))
		b.logger.Debug().Str("subscription", id).Int("total", count).Msg("Subscriber removed")
	}
}

// Dispatch delivers one event to every live subscriber whose filter
// matches. It runs on the caller's goroutine and never blocks on a slow
// subscriber: a failing sink is evicted instead.
func (b *Broker) Dispatch(ev *model.Event) {
	b.mu.RLock()
	snapshot := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		snapshot = append(snapshot, sub)
	}
	b.mu.RUnlock()

	var payload []byte
	var evicted []string
	for _, sub := range snapshot {
		if !sub.match(ev) {
			continue
		}
		if payload == nil {
			payload = model.Marshal(ev)
		}
		if err := sub.sink.Send(payload); err != nil {
			b.logger.Info().
				Err(err).
				Str("subscription", sub.id).
				Str("event", ev.ID).
				Msg("Evicting subscriber")
			evicted = append(evicted, sub.id)
			continue
		}
		metrics.EventsDispatched.Inc()
	}

	if len(evicted) > 0 {
		metrics.SubscribersEvicted.Add(float64(len(evicted)))
		b.mu.Lock()
		for _, id := range evicted {
			delete(b.subs, id)
		}
		count := len(b.subs)
		b.mu.Unlock()
		metrics.LiveSubscribers.Set(float64(count))
	}
}

// Count returns the number of live subscriptions.
func (b *Broker) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Shutdown drops all subscriptions. The owning connections are closed
// by the server, not here.
func (b *Broker) Shutdown() {
	b.mu.Lock()
	b.subs = make(map[string]*subscription)
	b.mu.Unlock()
	metrics.LiveSubscribers.Set(0)
}
