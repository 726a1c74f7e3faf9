package payment

import (
	"fmt"

	"github.com/shopspring/decimal"

	"marinehub/pkg/domain"
)

const Currency = "usd"

// diagnosticFees is charged before a technician reviews the request.
var diagnosticFees = map[domain.ServiceType]decimal.Decimal{
	domain.ServiceEngineRepair:       decimal.RequireFromString("150.00"),
	domain.ServiceElectricalSystems:  decimal.RequireFromString("120.00"),
	domain.ServiceHullRepair:         decimal.RequireFromString("175.00"),
	domain.ServicePlumbing:           decimal.RequireFromString("95.00"),
	domain.ServiceGeneralMaintenance: decimal.RequireFromString("75.00"),
	domain.ServiceEmergencyRepair:    decimal.RequireFromString("250.00"),
	domain.ServiceOther:              decimal.RequireFromString("100.00"),
}

// FeeFor returns the diagnostic fee for a service type.
func FeeFor(t domain.ServiceType) (decimal.Decimal, error) {
	fee, ok := diagnosticFees[t]
	if !ok {
		return decimal.Zero, fmt.Errorf("no diagnostic fee for service type %q", t)
	}
	return fee, nil
}

// MinorUnits converts an amount to cents.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
