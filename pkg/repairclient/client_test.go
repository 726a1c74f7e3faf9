package repairclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"marinehub/pkg/domain"
)

func writeEnvelope(w http.ResponseWriter, status int, success bool, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"success": success}
	if data != nil {
		body["data"] = data
	}
	if message != "" {
		body["message"] = message
	}
	_ = json.NewEncoder(w).Encode(body)
}

func TestClientRoutesAndAuthHeader(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		call   func(c *Client) error
	}{
		{name: "create", method: http.MethodPost, path: "/api/boat-repairs", call: func(c *Client) error {
			_, err := c.Create(context.Background(), "tok", CreatePayload{ServiceType: domain.ServicePlumbing})
			return err
		}},
		{name: "get", method: http.MethodGet, path: "/api/boat-repairs/r1", call: func(c *Client) error {
			_, err := c.Get(context.Background(), "tok", "r1")
			return err
		}},
		{name: "by booking", method: http.MethodGet, path: "/api/boat-repairs/booking/BR-100", call: func(c *Client) error {
			_, err := c.GetByBookingID(context.Background(), "tok", "BR-100")
			return err
		}},
		{name: "update", method: http.MethodPut, path: "/api/boat-repairs/r1/customer-edit", call: func(c *Client) error {
			_, err := c.CustomerUpdate(context.Background(), "tok", "r1", UpdatePayload{})
			return err
		}},
		{name: "cancel", method: http.MethodPatch, path: "/api/boat-repairs/r1/cancel", call: func(c *Client) error {
			_, err := c.CustomerCancel(context.Background(), "tok", "r1")
			return err
		}},
		{name: "delete", method: http.MethodDelete, path: "/api/boat-repairs/r1/customer-delete", call: func(c *Client) error {
			return c.CustomerDelete(context.Background(), "tok", "r1")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != tt.method || r.URL.Path != tt.path {
					writeEnvelope(w, http.StatusNotFound, false, nil, "no route "+r.Method+" "+r.URL.Path)
					return
				}
				if got := r.Header.Get("Authorization"); got != "Bearer tok" {
					writeEnvelope(w, http.StatusUnauthorized, false, nil, "bad auth "+got)
					return
				}
				writeEnvelope(w, http.StatusOK, true, domain.RepairRequest{ID: "r1"}, "")
			}))
			defer srv.Close()
			if err := tt.call(NewClient(srv.URL)); err != nil {
				t.Fatalf("call: %v", err)
			}
		})
	}
}

func TestClientSurfacesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusBadRequest, false, nil, "Boat year is invalid")
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Create(context.Background(), "tok", CreatePayload{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "Boat year is invalid" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestClientTreatsUnsuccessfulEnvelopeAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, false, nil, "Repair not found")
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Get(context.Background(), "tok", "missing")
	if err == nil || err.Error() != "Repair not found" {
		t.Fatalf("expected server message, got %v", err)
	}
}

func TestListMineDecodesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, true, []domain.RepairRequest{
			{ID: "r1", Status: domain.StatusPending, ServiceLocation: domain.LocationEnvelope{Location: domain.ServiceCenter{}}},
			{ID: "r2", Status: domain.StatusCompleted, ServiceLocation: domain.LocationEnvelope{Location: domain.Marina{Name: "North", Dock: "7"}}},
		}, "")
	}))
	defer srv.Close()

	items, err := NewClient(srv.URL).ListMine(context.Background(), "tok")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[1].ServiceLocation.Location != (domain.Marina{Name: "North", Dock: "7"}) {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestDeleteGuardedNeverCallsServerInsideWindow(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeEnvelope(w, http.StatusOK, true, nil, "")
	}))
	defer srv.Close()
	client := NewClient(srv.URL)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	soon := now.Add(48 * time.Hour)
	err := client.DeleteGuarded(context.Background(), "tok", domain.RepairRequest{ID: "r1", ScheduledDateTime: &soon}, now)
	if !errors.Is(err, ErrDeleteTooClose) {
		t.Fatalf("expected ErrDeleteTooClose, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Fatalf("guarded delete reached server %d times", got)
	}

	later := now.Add(4 * 24 * time.Hour)
	if err := client.DeleteGuarded(context.Background(), "tok", domain.RepairRequest{ID: "r1", ScheduledDateTime: &later}, now); err != nil {
		t.Fatalf("delete outside window: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one server call, got %d", got)
	}
}

func TestGuardDelete(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}
	tests := []struct {
		name      string
		scheduled *time.Time
		allowed   bool
	}{
		{name: "unscheduled", scheduled: nil, allowed: true},
		{name: "in one day", scheduled: at(24 * time.Hour), allowed: false},
		{name: "exactly three days", scheduled: at(72 * time.Hour), allowed: false},
		{name: "three days and a minute", scheduled: at(72*time.Hour + time.Minute), allowed: true},
		{name: "in past", scheduled: at(-time.Hour), allowed: false},
		{name: "next month", scheduled: at(30 * 24 * time.Hour), allowed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := GuardDelete(domain.RepairRequest{ScheduledDateTime: tt.scheduled}, now)
			if tt.allowed && err != nil {
				t.Fatalf("expected allowed, got %v", err)
			}
			if !tt.allowed && !errors.Is(err, ErrDeleteTooClose) {
				t.Fatalf("expected ErrDeleteTooClose, got %v", err)
			}
		})
	}
}

func TestExportPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/boat-repairs/r1/pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4\n%broken body\n"))
		case "/api/boat-repairs/r2/pdf":
			writeEnvelope(w, http.StatusOK, false, nil, "Report unavailable")
		default:
			writeEnvelope(w, http.StatusNotFound, false, nil, "Repair not found")
		}
	}))
	defer srv.Close()
	client := NewClient(srv.URL)

	doc, err := client.ExportPDF(context.Background(), "tok", "r1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(string(doc.Data), "%PDF-") || doc.Pages != 0 {
		t.Fatalf("unexpected document: pages=%d data=%q", doc.Pages, doc.Data)
	}

	if _, err := client.ExportPDF(context.Background(), "tok", "r2"); err == nil || err.Error() != "Report unavailable" {
		t.Fatalf("expected json message for non-pdf body, got %v", err)
	}
	var apiErr *APIError
	if _, err := client.ExportPDF(context.Background(), "tok", "r3"); !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404 api error, got %v", err)
	}
}

func TestExportPDFRejectsOversizedReport(t *testing.T) {
	prev := maxPDFBytes
	maxPDFBytes = 64
	t.Cleanup(func() { maxPDFBytes = prev })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		body := "%PDF-1.4\n" + strings.Repeat("%", 64)
		if r.URL.Path == "/api/boat-repairs/fits/pdf" {
			body = body[:64]
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	client := NewClient(srv.URL)

	if _, err := client.ExportPDF(context.Background(), "tok", "big"); !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %v", err)
	}
	doc, err := client.ExportPDF(context.Background(), "tok", "fits")
	if err != nil || len(doc.Data) != 64 {
		t.Fatalf("report at the limit: len=%d err=%v", len(doc.Data), err)
	}
}
