package wizard

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"marinehub/pkg/domain"
)

const (
	minMakeLength        = 2
	minModelLength       = 1
	minDescriptionLength = 10
	minMarinaNameLength  = 2
	minYear              = 1900
)

var (
	yearPattern = regexp.MustCompile(`^[0-9]{4}$`)
	zipPattern  = regexp.MustCompile(`^[0-9]{5}(-[0-9]{4})?$`)
)

// ValidateYear checks a raw boat year against [1900, current year]. It
// returns an empty string when the year is acceptable.
func ValidateYear(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "Boat year is required"
	}
	if !yearPattern.MatchString(raw) {
		return "Year must be a 4-digit number"
	}
	year, _ := strconv.Atoi(raw)
	if year < minYear {
		return "Year cannot be before 1900"
	}
	if year > now.Year() {
		return "Year cannot be in the future"
	}
	return ""
}

// validateDetails returns field-keyed errors for step 1.
func validateDetails(d Draft, now time.Time) map[string]string {
	errs := map[string]string{}
	if !d.ServiceType.Valid() {
		errs["serviceType"] = "Please select a service type"
	}
	minLength(errs, "boatDetails.make", d.Make, minMakeLength, "Boat make")
	minLength(errs, "boatDetails.model", d.Model, minModelLength, "Boat model")
	if msg := ValidateYear(d.Year, now); msg != "" {
		errs["boatDetails.year"] = msg
	}
	if !d.EngineType.Valid() {
		errs["boatDetails.engineType"] = "Please select an engine type"
	}
	if !d.HullType.Valid() {
		errs["boatDetails.hullType"] = "Please select a hull type"
	}
	minLength(errs, "problemDescription", d.ProblemDescription, minDescriptionLength, "Problem description")
	validateLocation(errs, d.Location.Location)
	return errs
}

func validateLocation(errs map[string]string, loc domain.ServiceLocation) {
	switch loc := loc.(type) {
	case domain.ServiceCenter:
	case domain.Marina:
		minLength(errs, "serviceLocation.name", loc.Name, minMarinaNameLength, "Marina name")
		minLength(errs, "serviceLocation.dock", loc.Dock, 1, "Dock or slip")
	case domain.CustomerLocation:
		minLength(errs, "serviceLocation.address.street", loc.Address.Street, 1, "Street")
		minLength(errs, "serviceLocation.address.city", loc.Address.City, 1, "City")
		minLength(errs, "serviceLocation.address.state", loc.Address.State, 1, "State")
		zip := strings.TrimSpace(loc.Address.Zip)
		switch {
		case zip == "":
			errs["serviceLocation.address.zip"] = "ZIP code is required"
		case !zipPattern.MatchString(zip):
			errs["serviceLocation.address.zip"] = "ZIP code must be 5 digits or ZIP+4"
		}
	default:
		errs["serviceLocation"] = "Please choose a service location"
	}
}

func minLength(errs map[string]string, key, value string, n int, label string) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		errs[key] = label + " is required"
	case utf8.RuneCountInString(value) < n:
		errs[key] = label + " must be at least " + strconv.Itoa(n) + " characters"
	}
}
