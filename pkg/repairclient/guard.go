package repairclient

import (
	"errors"
	"fmt"
	"time"

	"marinehub/pkg/domain"
)

// DeleteWindow is how far ahead an appointment must be for the customer to
// delete the request.
const DeleteWindow = 72 * time.Hour

// ErrDeleteTooClose is returned by GuardDelete for appointments inside the
// delete window.
var ErrDeleteTooClose = errors.New("repair request cannot be deleted within 3 days of the appointment")

// GuardDelete reports whether req may be deleted at now. Requests without a
// scheduled time are always deletable; past appointments never are.
func GuardDelete(req domain.RepairRequest, now time.Time) error {
	if req.ScheduledDateTime == nil {
		return nil
	}
	until := req.ScheduledDateTime.Sub(now)
	if until > DeleteWindow {
		return nil
	}
	return fmt.Errorf("%w (appointment %s); cancel the request or contact support instead",
		ErrDeleteTooClose, req.ScheduledDateTime.UTC().Format(time.RFC1123))
}
