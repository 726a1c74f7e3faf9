package wizard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrFirstStep   = errors.New("already on the first step")
	ErrLastStep    = errors.New("already on the review step")
	ErrEditMode    = errors.New("scheduling and payment cannot change in edit mode")
	ErrUploadIndex = errors.New("upload index out of range")
	ErrAlreadySent = errors.New("request already submitted")
	ErrNotOnReview = errors.New("submit is only allowed from the review step")
)

// ValidationError blocks a step transition. Fields maps form keys to
// messages.
type ValidationError struct {
	Step   StepKind
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s step is incomplete: %s", e.Step, strings.Join(parts, "; "))
}

// SubmitError wraps a failed create or update. Message is safe to show.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	return "submit repair request: " + e.Message
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}
