package wizard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"marinehub/pkg/domain"
	"marinehub/pkg/payment"
	"marinehub/pkg/repairclient"
)

const genericSubmitMessage = "We could not submit your request. Please try again."

// Submitter persists the assembled request.
type Submitter interface {
	Create(ctx context.Context, token string, payload repairclient.CreatePayload) (domain.RepairRequest, error)
	CustomerUpdate(ctx context.Context, token, id string, payload repairclient.UpdatePayload) (domain.RepairRequest, error)
}

// Controller drives one FormState through its steps.
type Controller struct {
	state *FormState
	now   func() time.Time

	// Release is called with a removed attachment.
	Release func(Attachment)
}

func NewController(state *FormState) *Controller {
	if state.Errors == nil {
		state.Errors = map[string]string{}
	}
	if state.Step == 0 {
		state.Step = 1
	}
	return &Controller{state: state, now: time.Now}
}

// WithClock replaces the clock used for year validation.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

func (c *Controller) State() *FormState {
	return c.state
}

// FieldPatch updates draft fields. Nil members are left alone.
type FieldPatch struct {
	ServiceType        *domain.ServiceType      `json:"serviceType"`
	Make               *string                  `json:"make"`
	Model              *string                  `json:"model"`
	Year               *string                  `json:"year"`
	EngineType         *domain.EngineType       `json:"engineType"`
	HullType           *domain.HullType         `json:"hullType"`
	Length             *string                  `json:"length"`
	ProblemDescription *string                  `json:"problemDescription"`
	Location           *domain.LocationEnvelope `json:"serviceLocation"`
}

// Update applies p and clears errors of the touched fields.
func (c *Controller) Update(p FieldPatch) {
	d := &c.state.Draft
	if p.ServiceType != nil {
		d.ServiceType = *p.ServiceType
		delete(c.state.Errors, "serviceType")
		if !c.paymentCovers(d.ServiceType) {
			c.state.Payment = nil
			c.state.PaymentCompleted = false
		}
	}
	setString(&d.Make, p.Make, c.state.Errors, "boatDetails.make")
	setString(&d.Model, p.Model, c.state.Errors, "boatDetails.model")
	setString(&d.Year, p.Year, c.state.Errors, "boatDetails.year")
	setString(&d.Length, p.Length, c.state.Errors, "boatDetails.length")
	setString(&d.ProblemDescription, p.ProblemDescription, c.state.Errors, "problemDescription")
	if p.EngineType != nil {
		d.EngineType = *p.EngineType
		delete(c.state.Errors, "boatDetails.engineType")
	}
	if p.HullType != nil {
		d.HullType = *p.HullType
		delete(c.state.Errors, "boatDetails.hullType")
	}
	if p.Location != nil {
		d.Location = *p.Location
		for k := range c.state.Errors {
			if strings.HasPrefix(k, "serviceLocation") {
				delete(c.state.Errors, k)
			}
		}
	}
	c.touch()
}

func setString(dst *string, v *string, errs map[string]string, key string) {
	if v == nil {
		return
	}
	*dst = *v
	delete(errs, key)
}

// Validate runs the guard of one step.
func (c *Controller) Validate(kind StepKind) map[string]string {
	switch kind {
	case StepBoatDetails:
		return validateDetails(c.state.Draft, c.now())
	case StepUpload:
		if c.state.Uploading {
			return map[string]string{"uploads": "Please wait for uploads to finish"}
		}
	case StepSchedule:
		if c.state.Scheduling.ScheduledDateTime == nil {
			return map[string]string{"scheduledDateTime": "Please book an appointment time"}
		}
	case StepPayment:
		if !c.state.PaymentCompleted || c.state.Payment == nil {
			return map[string]string{"payment": "Please complete the diagnostic fee payment"}
		}
		if !c.paymentCovers(c.state.Draft.ServiceType) {
			return map[string]string{"payment": "The diagnostic fee changed with the service type. Please pay again"}
		}
	}
	return nil
}

// paymentCovers reports whether a recorded payment matches the fee of t.
// It is true when nothing has been paid yet.
func (c *Controller) paymentCovers(t domain.ServiceType) bool {
	if c.state.Payment == nil {
		return true
	}
	fee, err := payment.FeeFor(t)
	return err == nil && c.state.Payment.Amount.Equal(fee)
}

// Next advances one step when the current step's guard passes.
func (c *Controller) Next() error {
	if c.state.Last() {
		return ErrLastStep
	}
	kind := c.state.Current()
	if errs := c.Validate(kind); len(errs) > 0 {
		c.state.Errors = errs
		return &ValidationError{Step: kind, Fields: errs}
	}
	c.state.Errors = map[string]string{}
	c.state.Step++
	c.touch()
	return nil
}

// Previous goes back one step. It is refused on step 1.
func (c *Controller) Previous() error {
	if c.state.Step <= 1 {
		return ErrFirstStep
	}
	c.state.Step--
	c.touch()
	return nil
}

// ConfirmSchedule records a vendor-confirmed appointment. It may arrive on
// any step; the latest confirmation wins.
func (c *Controller) ConfirmSchedule(s domain.Scheduling) error {
	if c.state.Mode == ModeEdit {
		return ErrEditMode
	}
	if s.ScheduledDateTime == nil || s.ScheduledDateTime.IsZero() {
		return errors.New("confirmation has no scheduled time")
	}
	at := s.ScheduledDateTime.UTC()
	s.ScheduledDateTime = &at
	c.state.Scheduling = s
	delete(c.state.Errors, "scheduledDateTime")
	c.touch()
	return nil
}

// CompletePayment records the payment component's success callback.
func (c *Controller) CompletePayment(p domain.Payment) error {
	if c.state.Mode == ModeEdit {
		return ErrEditMode
	}
	if strings.TrimSpace(p.PaymentID) == "" {
		return errors.New("payment id required")
	}
	c.state.Payment = &p
	c.state.PaymentCompleted = true
	delete(c.state.Errors, "payment")
	c.touch()
	return nil
}

// BeginUpload marks an upload batch in flight.
func (c *Controller) BeginUpload() {
	c.state.Uploading = true
	c.state.UploadProgress = 0
	delete(c.state.Errors, "uploads")
	c.touch()
}

// SetProgress records aggregate upload progress.
func (c *Controller) SetProgress(p float64) {
	if p > c.state.UploadProgress {
		c.state.UploadProgress = p
	}
}

// FinishUpload ends the in-flight batch. With an empty message the files
// are appended to both lists; otherwise message is shown under uploads.
func (c *Controller) FinishUpload(files []domain.UploadedFile, message string) {
	c.state.Uploading = false
	if message != "" {
		c.state.Errors["uploads"] = message
		c.touch()
		return
	}
	for _, f := range files {
		c.state.Files = append(c.state.Files, attachmentFor(f))
		c.state.Photos = append(c.state.Photos, f)
	}
	c.state.UploadProgress = 100
	c.touch()
}

// CancelUpload ends the in-flight batch without recording an error.
func (c *Controller) CancelUpload() {
	c.state.Uploading = false
	c.state.UploadProgress = 0
	c.touch()
}

// RemoveUpload deletes the file at index i from both lists.
func (c *Controller) RemoveUpload(i int) (domain.UploadedFile, error) {
	if i < 0 || i >= len(c.state.Photos) {
		return domain.UploadedFile{}, fmt.Errorf("%w: %d", ErrUploadIndex, i)
	}
	removed := c.state.Photos[i]
	c.state.Photos = append(c.state.Photos[:i:i], c.state.Photos[i+1:]...)
	if i < len(c.state.Files) {
		att := c.state.Files[i]
		c.state.Files = append(c.state.Files[:i:i], c.state.Files[i+1:]...)
		if c.Release != nil {
			c.Release(att)
		}
	}
	c.touch()
	return removed, nil
}

// boatDetails normalizes the draft into the typed sub-object.
func (c *Controller) boatDetails() domain.BoatDetails {
	d := c.state.Draft
	year, _ := strconv.Atoi(strings.TrimSpace(d.Year))
	return domain.BoatDetails{
		Make:       strings.TrimSpace(d.Make),
		Model:      strings.TrimSpace(d.Model),
		Year:       year,
		EngineType: d.EngineType,
		HullType:   d.HullType,
		Length:     strings.TrimSpace(d.Length),
	}
}

// CreatePayload assembles the new-request body.
func (c *Controller) CreatePayload() repairclient.CreatePayload {
	var pay domain.Payment
	if c.state.Payment != nil {
		pay = *c.state.Payment
	}
	return repairclient.CreatePayload{
		ServiceType:        c.state.Draft.ServiceType,
		BoatDetails:        c.boatDetails(),
		ProblemDescription: strings.TrimSpace(c.state.Draft.ProblemDescription),
		Photos:             c.photos(),
		ServiceLocation:    c.state.Draft.Location,
		Scheduling:         c.state.Scheduling,
		Payment:            pay,
	}
}

// UpdatePayload assembles the edit body. It never carries scheduling or
// payment.
func (c *Controller) UpdatePayload() repairclient.UpdatePayload {
	return repairclient.UpdatePayload{
		ServiceType:        c.state.Draft.ServiceType,
		BoatDetails:        c.boatDetails(),
		ProblemDescription: strings.TrimSpace(c.state.Draft.ProblemDescription),
		Photos:             c.photos(),
		ServiceLocation:    c.state.Draft.Location,
	}
}

func (c *Controller) photos() []domain.UploadedFile {
	out := make([]domain.UploadedFile, len(c.state.Photos))
	copy(out, c.state.Photos)
	return out
}

// Submit re-checks every step and sends the request. On failure the state
// is kept for a retry.
func (c *Controller) Submit(ctx context.Context, s Submitter, token string) (domain.RepairRequest, error) {
	if c.state.Submitted != nil {
		return domain.RepairRequest{}, ErrAlreadySent
	}
	if !c.state.Last() {
		return domain.RepairRequest{}, fmt.Errorf("%w: on step %d of %d", ErrNotOnReview, c.state.Step, len(Steps(c.state.Mode)))
	}
	for _, kind := range Steps(c.state.Mode) {
		if errs := c.Validate(kind); len(errs) > 0 {
			c.state.Errors = errs
			return domain.RepairRequest{}, &ValidationError{Step: kind, Fields: errs}
		}
	}

	var (
		saved domain.RepairRequest
		err   error
	)
	if c.state.Mode == ModeEdit {
		if c.state.Original == nil || c.state.Original.ID == "" {
			return domain.RepairRequest{}, errors.New("edit session has no original request")
		}
		saved, err = s.CustomerUpdate(ctx, token, c.state.Original.ID, c.UpdatePayload())
	} else {
		saved, err = s.Create(ctx, token, c.CreatePayload())
	}
	if err != nil {
		msg := genericSubmitMessage
		var apiErr *repairclient.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		c.state.Errors["submit"] = msg
		c.touch()
		return domain.RepairRequest{}, &SubmitError{Message: msg, Err: err}
	}
	delete(c.state.Errors, "submit")
	c.state.Submitted = &saved
	c.touch()
	return saved, nil
}

func (c *Controller) touch() {
	c.state.UpdatedAt = c.now().UTC()
}
