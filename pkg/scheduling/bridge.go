package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventScheduled is the only widget message the bridge acts on.
const EventScheduled = "calendly.event_scheduled"

var ErrUnconfirmed = errors.New("appointment time could not be confirmed")

// Confirmation is an appointment time verified with the vendor API.
type Confirmation struct {
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime,omitempty"`
	EventURI   string    `json:"eventUri"`
	InviteeURI string    `json:"inviteeUri,omitempty"`
}

// ConfirmFunc receives verified appointments.
type ConfirmFunc func(ctx context.Context, c Confirmation) error

// Bridge listens for widget messages on one topic while its owner is on the
// scheduling step.
type Bridge struct {
	bus       *Bus
	topic     string
	source    EventSource
	onConfirm ConfirmFunc

	mu  sync.Mutex
	sub *Subscription
}

func NewBridge(bus *Bus, topic string, source EventSource, onConfirm ConfirmFunc) *Bridge {
	return &Bridge{bus: bus, topic: topic, source: source, onConfirm: onConfirm}
}

// Enter acquires the listener. It reports false when already listening.
func (b *Bridge) Enter() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub != nil {
		return false
	}
	b.sub = b.bus.Subscribe(b.topic, b.handle)
	return true
}

// Exit releases the listener.
func (b *Bridge) Exit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sub.Close()
	b.sub = nil
}

func (b *Bridge) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sub != nil
}

func (b *Bridge) handle(ctx context.Context, msg Message) error {
	if msg.Event != EventScheduled {
		return nil
	}
	c, err := Resolve(ctx, b.source, msg)
	if err != nil {
		return err
	}
	if b.onConfirm == nil {
		return nil
	}
	return b.onConfirm(ctx, c)
}

// Resolve treats msg as untrusted and fetches the canonical start time.
// Every failure matches ErrUnconfirmed.
func Resolve(ctx context.Context, source EventSource, msg Message) (Confirmation, error) {
	if msg.Event != EventScheduled {
		return Confirmation{}, fmt.Errorf("%w: unexpected event %q", ErrUnconfirmed, msg.Event)
	}
	if source == nil {
		return Confirmation{}, fmt.Errorf("%w: no event source configured", ErrUnconfirmed)
	}
	id, err := EventUUID(msg.Payload.Event.URI)
	if err != nil {
		return Confirmation{}, fmt.Errorf("%w: %v", ErrUnconfirmed, err)
	}
	event, err := source.ScheduledEvent(ctx, id)
	if err != nil {
		return Confirmation{}, fmt.Errorf("%w: %v", ErrUnconfirmed, err)
	}
	if event.StartTime.IsZero() {
		return Confirmation{}, fmt.Errorf("%w: event has no start time", ErrUnconfirmed)
	}
	uri := event.URI
	if uri == "" {
		uri = msg.Payload.Event.URI
	}
	return Confirmation{
		StartTime:  event.StartTime,
		EndTime:    event.EndTime,
		EventURI:   uri,
		InviteeURI: msg.Payload.Invitee.URI,
	}, nil
}

// EventUUID returns the UUID in the last path segment of an event URI.
func EventUUID(uri string) (uuid.UUID, error) {
	uri = strings.TrimRight(strings.TrimSpace(uri), "/")
	if uri == "" {
		return uuid.Nil, errors.New("event uri is empty")
	}
	segment := uri[strings.LastIndex(uri, "/")+1:]
	id, err := uuid.Parse(segment)
	if err != nil {
		return uuid.Nil, fmt.Errorf("event uri %q: %w", uri, err)
	}
	return id, nil
}
