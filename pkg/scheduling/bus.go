package scheduling

import (
	"context"
	"errors"
	"sync"
)

// Message is a cross-frame message posted by the embedded widget.
type Message struct {
	Event   string  `json:"event"`
	Payload Payload `json:"payload"`
}

type Payload struct {
	Event   ResourceRef `json:"event"`
	Invitee ResourceRef `json:"invitee"`
}

type ResourceRef struct {
	URI string `json:"uri"`
}

// Handler consumes messages published on a topic.
type Handler func(ctx context.Context, msg Message) error

// Bus fans messages out to topic subscribers. Delivery is synchronous.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[uint64]Handler)}
}

// Subscription is a registered handler. Close is safe to call repeatedly.
type Subscription struct {
	bus   *Bus
	topic string
	id    uint64
	once  sync.Once
}

// Subscribe registers h for topic.
func (b *Bus) Subscribe(topic string, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]Handler)
	}
	b.subs[topic][b.nextID] = h
	return &Subscription{bus: b, topic: topic, id: b.nextID}
}

func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		handlers := s.bus.subs[s.topic]
		delete(handlers, s.id)
		if len(handlers) == 0 {
			delete(s.bus.subs, s.topic)
		}
	})
}

// Subscribers returns the number of handlers on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Publish delivers msg to every handler of topic and returns how many were
// called together with their joined errors.
func (b *Bus) Publish(ctx context.Context, topic string, msg Message) (int, error) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return len(handlers), errors.Join(errs...)
}
