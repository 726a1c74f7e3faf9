package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestLocationEnvelopeDecodesEachMember(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ServiceLocation
	}{
		{name: "service center", raw: `{"type":"service_center"}`, want: ServiceCenter{}},
		{name: "marina", raw: `{"type":"marina","name":"Harbor Point","dock":"B12"}`, want: Marina{Name: "Harbor Point", Dock: "B12"}},
		{
			name: "customer location",
			raw:  `{"type":"customer_location","address":{"street":"1 Bay Rd","city":"Miami","state":"FL","zip":"33101"}}`,
			want: CustomerLocation{Address: Address{Street: "1 Bay Rd", City: "Miami", State: "FL", Zip: "33101"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env LocationEnvelope
			if err := json.Unmarshal([]byte(tt.raw), &env); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if env.Location != tt.want {
				t.Fatalf("location = %#v, want %#v", env.Location, tt.want)
			}
		})
	}
}

func TestLocationEnvelopeRejectsUnknownType(t *testing.T) {
	var env LocationEnvelope
	err := json.Unmarshal([]byte(`{"type":"houseboat"}`), &env)
	if err == nil || !strings.Contains(err.Error(), "houseboat") {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}

func TestLocationEnvelopeMarinaOmitsAddress(t *testing.T) {
	data, err := json.Marshal(LocationEnvelope{Location: Marina{Name: "Harbor Point", Dock: "B12"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "address") {
		t.Fatalf("marina payload should not carry address: %s", data)
	}
}
