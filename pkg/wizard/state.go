package wizard

import (
	"strconv"
	"time"

	"marinehub/pkg/domain"
)

type Mode string

const (
	ModeNew  Mode = "new"
	ModeEdit Mode = "edit"
)

func (m Mode) Valid() bool {
	return m == ModeNew || m == ModeEdit
}

// StepKind names what a step collects.
type StepKind string

const (
	StepBoatDetails StepKind = "boat_details"
	StepUpload      StepKind = "upload"
	StepSchedule    StepKind = "schedule"
	StepPayment     StepKind = "payment"
	StepReview      StepKind = "review"
)

var (
	newSteps  = []StepKind{StepBoatDetails, StepUpload, StepSchedule, StepPayment, StepReview}
	editSteps = []StepKind{StepBoatDetails, StepUpload, StepReview}
)

// Steps returns the ordered steps for mode. Edit mode has no scheduling or
// payment steps.
func Steps(mode Mode) []StepKind {
	if mode == ModeEdit {
		return editSteps
	}
	return newSteps
}

// Draft holds the user's raw input. Year stays a string until submit so
// invalid input can be shown back.
type Draft struct {
	ServiceType        domain.ServiceType      `json:"serviceType"`
	Make               string                  `json:"make"`
	Model              string                  `json:"model"`
	Year               string                  `json:"year"`
	EngineType         domain.EngineType       `json:"engineType"`
	HullType           domain.HullType         `json:"hullType"`
	Length             string                  `json:"length,omitempty"`
	ProblemDescription string                  `json:"problemDescription"`
	Location           domain.LocationEnvelope `json:"serviceLocation"`
}

// Attachment is the local view of an uploaded file. Preview is released
// when the file is removed.
type Attachment struct {
	Name    string           `json:"name"`
	Size    int64            `json:"size"`
	Kind    domain.MediaKind `json:"kind"`
	Preview string           `json:"preview,omitempty"`
}

// FormState is everything a wizard session accumulates.
type FormState struct {
	Mode             Mode                  `json:"mode"`
	Step             int                   `json:"step"`
	Draft            Draft                 `json:"draft"`
	Files            []Attachment          `json:"files"`
	Photos           []domain.UploadedFile `json:"photos"`
	Scheduling       domain.Scheduling     `json:"scheduling"`
	PaymentCompleted bool                  `json:"paymentCompleted"`
	Payment          *domain.Payment       `json:"payment,omitempty"`
	Errors           map[string]string     `json:"errors,omitempty"`
	UploadProgress   float64               `json:"uploadProgress"`
	Uploading        bool                  `json:"uploading"`
	WidgetHTML       string                `json:"widgetHtml,omitempty"`

	Original  *domain.RepairRequest `json:"original,omitempty"`
	Submitted *domain.RepairRequest `json:"submitted,omitempty"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// NewState starts a new-request wizard on step 1.
func NewState() *FormState {
	return &FormState{Mode: ModeNew, Step: 1, Errors: map[string]string{}}
}

// NewEdit loads an existing request into edit mode.
func NewEdit(req domain.RepairRequest) *FormState {
	original := req
	photos := append([]domain.UploadedFile(nil), req.Photos...)
	files := make([]Attachment, 0, len(photos))
	for _, p := range photos {
		files = append(files, attachmentFor(p))
	}
	year := ""
	if req.BoatDetails.Year != 0 {
		year = strconv.Itoa(req.BoatDetails.Year)
	}
	return &FormState{
		Mode: ModeEdit,
		Step: 1,
		Draft: Draft{
			ServiceType:        req.ServiceType,
			Make:               req.BoatDetails.Make,
			Model:              req.BoatDetails.Model,
			Year:               year,
			EngineType:         req.BoatDetails.EngineType,
			HullType:           req.BoatDetails.HullType,
			Length:             req.BoatDetails.Length,
			ProblemDescription: req.ProblemDescription,
			Location:           req.ServiceLocation,
		},
		Files:    files,
		Photos:   photos,
		Errors:   map[string]string{},
		Original: &original,
	}
}

// Current returns the kind of the current step.
func (s *FormState) Current() StepKind {
	steps := Steps(s.Mode)
	if s.Step < 1 || s.Step > len(steps) {
		return ""
	}
	return steps[s.Step-1]
}

// Last reports whether the current step is the review step.
func (s *FormState) Last() bool {
	return s.Step == len(Steps(s.Mode))
}

func attachmentFor(f domain.UploadedFile) Attachment {
	return Attachment{Name: f.OriginalFilename, Size: f.SizeBytes, Kind: f.Kind, Preview: f.URL}
}
