package util

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWithRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "propagates incoming", incoming: "req-incoming-123", keep: true},
		{name: "generates when missing"},
		{name: "replaces oversized", incoming: strings.Repeat("x", 129)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromRequest(r)
			}))
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tc.incoming != "" {
				req.Header.Set(RequestIDHeader, tc.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if got == "" || got != seen {
				t.Fatalf("header %q and context %q must match and be set", got, seen)
			}
			if tc.keep && got != tc.incoming {
				t.Fatalf("expected incoming id %q, got %q", tc.incoming, got)
			}
			if !tc.keep && got == tc.incoming {
				t.Fatalf("expected a generated id")
			}
		})
	}
}

func TestWithRequestIDAddsLoggerField(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&buf, "info", "wizard")
	handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		LoggerFromContext(r.Context()).Info("handled")
	}))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req = req.WithContext(ContextWithLogger(req.Context(), base))
	req.Header.Set(RequestIDHeader, "abc")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), `"request_id":"abc"`) {
		t.Fatalf("expected request_id in log line, got %s", buf.String())
	}
}
