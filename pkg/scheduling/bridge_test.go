package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const eventID = "5b2a1c8e-3f4d-4a6b-9c1d-2e3f4a5b6c7d"

func newVendor(t *testing.T, startTime string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer cal-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "unauthenticated"})
			return
		}
		if r.URL.Path != "/scheduled_events/"+eventID {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "not found"})
			return
		}
		if status != 0 {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "vendor down"})
			return
		}
		resource := map[string]string{
			"uri":      "https://api.calendly.com/scheduled_events/" + eventID,
			"name":     "Engine diagnostic",
			"status":   "active",
			"end_time": "2024-06-03T15:00:00Z",
		}
		if startTime != "" {
			resource["start_time"] = startTime
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"resource": resource})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func scheduledMessage() Message {
	return Message{
		Event: EventScheduled,
		Payload: Payload{
			Event:   ResourceRef{URI: "https://api.calendly.com/scheduled_events/" + eventID},
			Invitee: ResourceRef{URI: "https://api.calendly.com/scheduled_events/" + eventID + "/invitees/abc"},
		},
	}
}

func TestBridgeConfirmsFromVendorAPI(t *testing.T) {
	srv := newVendor(t, "2024-06-03T14:00:00Z", 0)
	bus := NewBus()
	var got []Confirmation
	bridge := NewBridge(bus, "session-1", NewClient(srv.URL, "cal-token"), func(_ context.Context, c Confirmation) error {
		got = append(got, c)
		return nil
	})

	if !bridge.Enter() {
		t.Fatalf("first Enter should acquire the listener")
	}
	if bridge.Enter() {
		t.Fatalf("second Enter should be a no-op")
	}
	if n := bus.Subscribers("session-1"); n != 1 {
		t.Fatalf("expected exactly one listener, got %d", n)
	}

	n, err := bus.Publish(context.Background(), "session-1", scheduledMessage())
	if err != nil || n != 1 {
		t.Fatalf("publish = %d, %v", n, err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one confirmation, got %d", len(got))
	}
	want := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	if !got[0].StartTime.Equal(want) || !strings.Contains(got[0].InviteeURI, "/invitees/") {
		t.Fatalf("unexpected confirmation: %+v", got[0])
	}

	bridge.Exit()
	bridge.Exit()
	if bus.Subscribers("session-1") != 0 || bridge.Active() {
		t.Fatalf("listener not released")
	}
	if n, _ := bus.Publish(context.Background(), "session-1", scheduledMessage()); n != 0 {
		t.Fatalf("message delivered after exit")
	}
}

func TestBridgeIgnoresOtherEvents(t *testing.T) {
	bus := NewBus()
	called := false
	bridge := NewBridge(bus, "s", nil, func(context.Context, Confirmation) error {
		called = true
		return nil
	})
	bridge.Enter()
	defer bridge.Exit()
	if _, err := bus.Publish(context.Background(), "s", Message{Event: "calendly.profile_page_viewed"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("non-scheduling event must be ignored")
	}
}

func TestBridgeFailurePolicy(t *testing.T) {
	tests := []struct {
		name   string
		start  string
		status int
	}{
		{name: "vendor error", start: "2024-06-03T14:00:00Z", status: http.StatusInternalServerError},
		{name: "missing start time"},
		{name: "unparseable start time", start: "next tuesday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newVendor(t, tt.start, tt.status)
			bus := NewBus()
			called := false
			bridge := NewBridge(bus, "s", NewClient(srv.URL, "cal-token"), func(context.Context, Confirmation) error {
				called = true
				return nil
			})
			bridge.Enter()
			defer bridge.Exit()
			_, err := bus.Publish(context.Background(), "s", scheduledMessage())
			if !errors.Is(err, ErrUnconfirmed) {
				t.Fatalf("expected ErrUnconfirmed, got %v", err)
			}
			if called {
				t.Fatalf("unconfirmed time must not be reported")
			}
		})
	}
}

func TestResolveRejectsBadURI(t *testing.T) {
	msg := scheduledMessage()
	msg.Payload.Event.URI = "https://api.calendly.com/scheduled_events/not-a-uuid"
	if _, err := Resolve(context.Background(), NewClient("http://127.0.0.1:1", ""), msg); !errors.Is(err, ErrUnconfirmed) {
		t.Fatalf("expected ErrUnconfirmed, got %v", err)
	}
}

func TestEventUUID(t *testing.T) {
	id, err := EventUUID("https://api.calendly.com/scheduled_events/" + eventID + "/")
	if err != nil || id.String() != eventID {
		t.Fatalf("EventUUID() = %v, %v", id, err)
	}
	if _, err := EventUUID(""); err == nil {
		t.Fatalf("expected error for empty uri")
	}
}

func TestBusJoinsHandlerErrors(t *testing.T) {
	bus := NewBus()
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	bus.Subscribe("t", func(context.Context, Message) error { return errA })
	bus.Subscribe("t", func(context.Context, Message) error { return errB })
	sub := bus.Subscribe("t", func(context.Context, Message) error { return nil })

	n, err := bus.Publish(context.Background(), "t", Message{})
	if n != 3 || !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("publish = %d, %v", n, err)
	}
	sub.Close()
	sub.Close()
	if bus.Subscribers("t") != 2 {
		t.Fatalf("expected 2 subscribers after close, got %d", bus.Subscribers("t"))
	}
}
