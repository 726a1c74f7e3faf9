package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"marinehub/pkg/domain"
	"marinehub/pkg/repairclient"
)

func repairServer(t *testing.T, scheduled time.Time, deleted *bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var data any
		switch {
		case r.URL.Path == "/api/boat-repairs/my-repairs":
			data = []domain.RepairRequest{{ID: "r-1", BookingID: "BK-1", ServiceType: domain.ServicePlumbing, Status: domain.StatusPending, ScheduledDateTime: &scheduled}}
		case r.Method == http.MethodGet && r.URL.Path == "/api/boat-repairs/r-1":
			data = domain.RepairRequest{ID: "r-1", ScheduledDateTime: &scheduled}
		case r.Method == http.MethodDelete && r.URL.Path == "/api/boat-repairs/r-1/customer-delete":
			*deleted = true
		default:
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunList(t *testing.T) {
	var deleted bool
	srv := repairServer(t, time.Now().Add(240*time.Hour), &deleted)
	var out bytes.Buffer
	if err := run(context.Background(), repairclient.NewClient(srv.URL), "tok", []string{"list"}, &out); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out.String(), "BK-1") || !strings.Contains(out.String(), "plumbing") {
		t.Fatalf("unexpected list output:\n%s", out.String())
	}
}

func TestRunDeleteGuarded(t *testing.T) {
	var deleted bool
	srv := repairServer(t, time.Now().Add(24*time.Hour), &deleted)
	err := run(context.Background(), repairclient.NewClient(srv.URL), "tok", []string{"delete", "r-1"}, &bytes.Buffer{})
	if !errors.Is(err, repairclient.ErrDeleteTooClose) {
		t.Fatalf("expected ErrDeleteTooClose, got %v", err)
	}
	if deleted {
		t.Fatalf("delete must not be sent inside the window")
	}
}

func TestRunArgErrors(t *testing.T) {
	client := repairclient.NewClient("http://127.0.0.1:0")
	cases := [][]string{{"get"}, {"pdf", "r-1"}, {"frobnicate"}}
	for _, args := range cases {
		if err := run(context.Background(), client, "", args, &bytes.Buffer{}); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestRunExport(t *testing.T) {
	var deleted bool
	srv := repairServer(t, time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC), &deleted)
	path := filepath.Join(t.TempDir(), "repairs.xlsx")
	if err := run(context.Background(), repairclient.NewClient(srv.URL), "tok", []string{"export", path}, &bytes.Buffer{}); err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	for cell, want := range map[string]string{"A1": "ID", "A2": "r-1", "B2": "BK-1", "C2": "plumbing", "G2": "2024-05-01 09:30"} {
		got, err := f.GetCellValue(exportSheet, cell)
		if err != nil {
			t.Fatalf("read %s: %v", cell, err)
		}
		if got != want {
			t.Fatalf("%s = %q, want %q", cell, got, want)
		}
	}
}
