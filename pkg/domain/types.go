package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ServiceType string

const (
	ServiceEngineRepair       ServiceType = "engine_repair"
	ServiceElectricalSystems  ServiceType = "electrical_systems"
	ServiceHullRepair         ServiceType = "hull_repair"
	ServicePlumbing           ServiceType = "plumbing"
	ServiceGeneralMaintenance ServiceType = "general_maintenance"
	ServiceEmergencyRepair    ServiceType = "emergency_repair"
	ServiceOther              ServiceType = "other"
)

// ServiceTypes lists every bookable service type in display order.
var ServiceTypes = []ServiceType{
	ServiceEngineRepair,
	ServiceElectricalSystems,
	ServiceHullRepair,
	ServicePlumbing,
	ServiceGeneralMaintenance,
	ServiceEmergencyRepair,
	ServiceOther,
}

// Valid reports whether t is a known service type.
func (t ServiceType) Valid() bool {
	for _, known := range ServiceTypes {
		if t == known {
			return true
		}
	}
	return false
}

type RepairStatus string

const (
	StatusPending    RepairStatus = "pending"
	StatusAssigned   RepairStatus = "assigned"
	StatusInProgress RepairStatus = "in_progress"
	StatusCompleted  RepairStatus = "completed"
	StatusCancelled  RepairStatus = "cancelled"
)

type EngineType string

const (
	EngineOutboard   EngineType = "outboard"
	EngineInboard    EngineType = "inboard"
	EngineSterndrive EngineType = "sterndrive"
	EngineJetDrive   EngineType = "jet_drive"
	EngineElectric   EngineType = "electric"
	EngineOther      EngineType = "other"
)

func (t EngineType) Valid() bool {
	switch t {
	case EngineOutboard, EngineInboard, EngineSterndrive, EngineJetDrive, EngineElectric, EngineOther:
		return true
	}
	return false
}

type HullType string

const (
	HullFiberglass HullType = "fiberglass"
	HullAluminum   HullType = "aluminum"
	HullWood       HullType = "wood"
	HullSteel      HullType = "steel"
	HullInflatable HullType = "inflatable"
	HullOther      HullType = "other"
)

func (t HullType) Valid() bool {
	switch t {
	case HullFiberglass, HullAluminum, HullWood, HullSteel, HullInflatable, HullOther:
		return true
	}
	return false
}

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

type BoatDetails struct {
	Make       string     `json:"make"`
	Model      string     `json:"model"`
	Year       int        `json:"year"`
	EngineType EngineType `json:"engineType"`
	HullType   HullType   `json:"hullType"`
	Length     string     `json:"length,omitempty"`
}

// UploadedFile is one media asset attached to a repair request.
type UploadedFile struct {
	StorageID        string    `json:"storageId"`
	OriginalFilename string    `json:"originalFilename"`
	URL              string    `json:"url"`
	SizeBytes        int64     `json:"sizeBytes"`
	Format           string    `json:"format,omitempty"`
	Kind             MediaKind `json:"kind"`
	UploadedAt       time.Time `json:"uploadedAt"`
}

type Scheduling struct {
	ScheduledDateTime *time.Time `json:"scheduledDateTime"`
	EventURI          string     `json:"eventUri,omitempty"`
	InviteeURI        string     `json:"inviteeUri,omitempty"`
}

type Payment struct {
	PaymentID string          `json:"paymentId"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
}

type RepairRequest struct {
	ID                 string           `json:"id"`
	BookingID          string           `json:"bookingId,omitempty"`
	ServiceType        ServiceType      `json:"serviceType"`
	BoatDetails        BoatDetails      `json:"boatDetails"`
	ProblemDescription string           `json:"problemDescription"`
	Photos             []UploadedFile   `json:"photos"`
	ScheduledDateTime  *time.Time       `json:"scheduledDateTime"`
	ServiceLocation    LocationEnvelope `json:"serviceLocation"`
	Payment            *Payment         `json:"payment,omitempty"`
	Status             RepairStatus     `json:"status"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}
