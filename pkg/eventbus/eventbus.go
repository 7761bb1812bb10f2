package eventbus

import (
	"sync"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
)

// Handler handles a run event.
type Handler func(event model.Event)

// EventBus provides in-process pub/sub for run events, keyed by event type.
type EventBus struct {
	handlers map[string][]Handler
	wildcard []Handler
	mu       sync.RWMutex
	inflight sync.WaitGroup
}

// New creates a new EventBus.
func New() *EventBus {
	return &EventBus{
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for one event type, e.g. "term.failed".
func (e *EventBus) Subscribe(eventType string, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[eventType] = append(e.handlers[eventType], handler)
}

// SubscribeAll registers a handler that receives every event.
func (e *EventBus) SubscribeAll(handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wildcard = append(e.wildcard, handler)
}

func (e *EventBus) targets(event model.Event) []Handler {
	e.mu.RLock()
	defer e.mu.RUnlock()
	typed := e.handlers[event.EventType()]
	out := make([]Handler, 0, len(typed)+len(e.wildcard))
	out = append(out, typed...)
	return append(out, e.wildcard...)
}

// Publish delivers event to all subscribers on their own goroutines.
// Use Wait to drain in-flight deliveries before shutdown.
func (e *EventBus) Publish(event model.Event) {
	for _, h := range e.targets(event) {
		e.inflight.Add(1)
		go func(h Handler) {
			defer e.inflight.Done()
			h(event)
		}(h)
	}
}

// PublishSync delivers event to all subscribers in registration order.
func (e *EventBus) PublishSync(event model.Event) {
	for _, h := range e.targets(event) {
		h(event)
	}
}

// Wait blocks until every asynchronous delivery has returned.
func (e *EventBus) Wait() {
	e.inflight.Wait()
}

// HasSubscribers returns true if anything would receive eventType.
func (e *EventBus) HasSubscribers(eventType string) bool {
	return e.SubscriberCount(eventType) > 0
}

// SubscriberCount returns the number of handlers that would receive eventType.
func (e *EventBus) SubscriberCount(eventType string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[eventType]) + len(e.wildcard)
}
