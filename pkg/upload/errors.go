package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned when the caller cancels an in-flight batch.
	ErrCancelled = errors.New("upload cancelled")
	// ErrUnsupportedMedia is returned for files that are neither image nor video.
	ErrUnsupportedMedia = errors.New("unsupported media type")
	// ErrUnknownSize is returned for a body without a declared length.
	ErrUnknownSize = errors.New("upload size must be declared")
	// ErrNoBackendRemove means the configured backend cannot delete assets.
	ErrNoBackendRemove = errors.New("upload backend does not support removal")
)

// SizeError reports a file over its media-kind ceiling.
type SizeError struct {
	Filename string
	Kind     string
	Size     int64
	Limit    int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%q is too large: %s files must be %dMB or smaller", e.Filename, e.Kind, e.Limit/(1<<20))
}

// RequestError is a network or storage-side failure of a single file.
type RequestError struct {
	Filename string
	Status   int
	Message  string
	Err      error
}

func (e *RequestError) Error() string {
	switch {
	case e.Message != "" && e.Status > 0:
		return fmt.Sprintf("upload %q failed (%d): %s", e.Filename, e.Status, e.Message)
	case e.Message != "":
		return fmt.Sprintf("upload %q failed: %s", e.Filename, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("upload %q failed: %v", e.Filename, e.Err)
	default:
		return fmt.Sprintf("upload %q failed", e.Filename)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
