// Package eventbus fans controller events out to observers on a bounded worker pool.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// EventType names what happened in the controller.
type EventType string

const (
	EventTypeLabel    EventType = "label"    // detected label changed
	EventTypeDispatch EventType = "dispatch" // an action was performed
	EventTypeSequence EventType = "sequence" // a sequence rule matched
	EventTypeMode     EventType = "mode"     // the active mode changed
)

// AllEventTypes lists every event type the controller publishes.
var AllEventTypes = []EventType{EventTypeLabel, EventTypeDispatch, EventTypeSequence, EventTypeMode}

const (
	DefaultWorkerCount = 4
	DefaultQueueSize   = 100
)

// Event is one controller notification.
type Event struct {
	Type EventType      `json:"type"`
	Time time.Time      `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

// Handler observes events. Handlers run on pool workers, never on the publisher.
type Handler func(Event)

// Stats counts deliveries since the bus was created.
type Stats struct {
	Published uint64 `json:"published"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Panics    uint64 `json:"panics"`
}

type delivery struct {
	event   Event
	handler Handler
}

// Bus routes events to handlers through a fixed set of workers. Publishing
// never blocks the controller tick: deliveries that do not fit the queue are
// dropped and counted.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler

	queue   chan delivery
	workers sync.WaitGroup

	closing   chan struct{}
	closeOnce sync.Once

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64
}

// New creates a bus with DefaultWorkerCount workers and a DefaultQueueSize queue.
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates a bus with the given pool size and queue capacity.
func NewWithConfig(workerCount, queueSize int) *Bus {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	if queueSize < 0 {
		queueSize = 0
	}

	b := &Bus{
		handlers: make(map[EventType][]Handler),
		queue:    make(chan delivery, queueSize),
		closing:  make(chan struct{}),
	}
	b.workers.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go b.work(i)
	}

	log.Debug().Int("workers", workerCount).Int("queue_size", queueSize).Msg("Event bus started")
	return b
}

func (b *Bus) work(id int) {
	defer b.workers.Done()
	for d := range b.queue {
		b.deliver(id, d)
	}
}

func (b *Bus) deliver(worker int, d delivery) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			log.Error().
				Interface("panic", r).
				Str("event_type", string(d.event.Type)).
				Int("worker", worker).
				Msg("Event handler panicked")
		}
	}()
	d.handler(d.event)
	b.delivered.Add(1)
}

// Subscribe registers handler for one event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
}

// SubscribeAll registers handler for every controller event type.
func (b *Bus) SubscribeAll(handler Handler) {
	for _, t := range AllEventTypes {
		b.Subscribe(t, handler)
	}
}

// Publish queues event for every handler of its type. A zero Time is set to now.
// The read lock spans the sends so Close cannot close the queue underneath them.
func (b *Bus) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.closing:
		b.dropped.Add(1)
		return
	default:
	}

	b.published.Add(1)
	for _, handler := range b.handlers[event.Type] {
		select {
		case b.queue <- delivery{event: event, handler: handler}:
		default:
			b.dropped.Add(1)
			log.Warn().Str("event_type", string(event.Type)).Msg("Event bus queue full, dropping event")
		}
	}
}

// Stats returns the delivery counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		Dropped:   b.dropped.Load(),
		Panics:    b.panics.Load(),
	}
}

// Close stops accepting events and waits for queued deliveries until ctx
// expires. Safe to call more than once.
func (b *Bus) Close(ctx context.Context) {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		close(b.closing)
		close(b.queue)
		b.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		b.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		stats := b.Stats()
		log.Debug().
			Uint64("published", stats.Published).
			Uint64("dropped", stats.Dropped).
			Msg("Event bus stopped")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, queued events lost")
	}
}
