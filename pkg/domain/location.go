package domain

import (
	"encoding/json"
	"fmt"
)

type LocationType string

const (
	LocationServiceCenter    LocationType = "service_center"
	LocationMarina           LocationType = "marina"
	LocationCustomerLocation LocationType = "customer_location"
)

// ServiceLocation is one of ServiceCenter, Marina or CustomerLocation.
type ServiceLocation interface {
	LocationType() LocationType
	isServiceLocation()
}

type ServiceCenter struct{}

type Marina struct {
	Name string `json:"name"`
	Dock string `json:"dock"`
}

type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

type CustomerLocation struct {
	Address Address `json:"address"`
}

func (ServiceCenter) LocationType() LocationType    { return LocationServiceCenter }
func (Marina) LocationType() LocationType           { return LocationMarina }
func (CustomerLocation) LocationType() LocationType { return LocationCustomerLocation }

func (ServiceCenter) isServiceLocation()    {}
func (Marina) isServiceLocation()           {}
func (CustomerLocation) isServiceLocation() {}

// LocationEnvelope carries a ServiceLocation through JSON as
// {"type": "...", ...member fields}.
type LocationEnvelope struct {
	Location ServiceLocation
}

type locationWire struct {
	Type    LocationType `json:"type"`
	Name    string       `json:"name,omitempty"`
	Dock    string       `json:"dock,omitempty"`
	Address *Address     `json:"address,omitempty"`
}

func (e LocationEnvelope) MarshalJSON() ([]byte, error) {
	switch loc := e.Location.(type) {
	case nil:
		return []byte("null"), nil
	case ServiceCenter:
		return json.Marshal(locationWire{Type: LocationServiceCenter})
	case Marina:
		return json.Marshal(locationWire{Type: LocationMarina, Name: loc.Name, Dock: loc.Dock})
	case CustomerLocation:
		addr := loc.Address
		return json.Marshal(locationWire{Type: LocationCustomerLocation, Address: &addr})
	default:
		return nil, fmt.Errorf("unsupported service location %T", e.Location)
	}
}

func (e *LocationEnvelope) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		e.Location = nil
		return nil
	}
	var wire locationWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	loc, err := wire.location()
	if err != nil {
		return err
	}
	e.Location = loc
	return nil
}

func (w locationWire) location() (ServiceLocation, error) {
	switch w.Type {
	case LocationServiceCenter:
		return ServiceCenter{}, nil
	case LocationMarina:
		return Marina{Name: w.Name, Dock: w.Dock}, nil
	case LocationCustomerLocation:
		var addr Address
		if w.Address != nil {
			addr = *w.Address
		}
		return CustomerLocation{Address: addr}, nil
	case "":
		return nil, fmt.Errorf("service location type required")
	default:
		return nil, fmt.Errorf("unknown service location type %q", w.Type)
	}
}
