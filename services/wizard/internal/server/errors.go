package server

import (
	"errors"
	"net/http"

	"marinehub/internal/util"
	"marinehub/pkg/payment"
	"marinehub/pkg/repairclient"
	"marinehub/pkg/scheduling"
	"marinehub/pkg/upload"
	"marinehub/pkg/wizard"
	"marinehub/services/wizard/internal/app"
	"marinehub/services/wizard/internal/store"
)

// writeAppError maps domain errors to a status and a stable code.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *wizard.ValidationError
		submitErr  *wizard.SubmitError
		sizeErr    *upload.SizeError
		reqErr     *upload.RequestError
		apiErr     *repairclient.APIError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:     "please fix the highlighted fields",
			Code:      "validation_failed",
			RequestID: util.RequestIDFromRequest(r),
			Fields:    validation.Fields,
		})
	case errors.Is(err, store.ErrSessionNotFound):
		writeError(w, r, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, wizard.ErrFirstStep), errors.Is(err, wizard.ErrLastStep), errors.Is(err, wizard.ErrNotOnReview):
		writeError(w, r, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, wizard.ErrEditMode), errors.Is(err, app.ErrNewModeOnly):
		writeError(w, r, http.StatusConflict, "mode_conflict", err.Error())
	case errors.Is(err, wizard.ErrAlreadySent):
		writeError(w, r, http.StatusConflict, "already_submitted", err.Error())
	case errors.Is(err, wizard.ErrUploadIndex):
		writeError(w, r, http.StatusNotFound, "upload_not_found", err.Error())
	case errors.Is(err, app.ErrInvalidMode):
		writeError(w, r, http.StatusBadRequest, "invalid_mode", err.Error())
	case errors.As(err, &submitErr):
		status := http.StatusBadGateway
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			status = apiErr.Status
		}
		writeError(w, r, status, "submit_failed", submitErr.Message)
	case errors.As(err, &sizeErr):
		writeError(w, r, http.StatusRequestEntityTooLarge, "file_too_large", sizeErr.Error())
	case errors.Is(err, upload.ErrUnknownSize):
		writeError(w, r, http.StatusBadRequest, "invalid_upload", err.Error())
	case errors.Is(err, upload.ErrUnsupportedMedia):
		writeError(w, r, http.StatusUnsupportedMediaType, "unsupported_media", err.Error())
	case errors.Is(err, upload.ErrCancelled):
		writeError(w, r, http.StatusConflict, "upload_cancelled", "upload cancelled")
	case errors.Is(err, app.ErrUploadInFlight):
		writeError(w, r, http.StatusConflict, "upload_in_progress", err.Error())
	case errors.As(err, &reqErr):
		writeError(w, r, http.StatusBadGateway, "upload_failed", reqErr.Error())
	case errors.Is(err, app.ErrListenerInactive):
		writeError(w, r, http.StatusConflict, "listener_inactive", err.Error())
	case errors.Is(err, scheduling.ErrUnconfirmed):
		writeError(w, r, http.StatusBadGateway, "schedule_unconfirmed", "appointment could not be confirmed, please book again")
	case errors.Is(err, payment.ErrIncomplete):
		writeError(w, r, http.StatusPaymentRequired, "payment_incomplete", err.Error())
	case errors.Is(err, repairclient.ErrDeleteTooClose):
		writeError(w, r, http.StatusConflict, "delete_window", err.Error())
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		writeError(w, r, status, "upstream_error", apiErr.Message)
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "internal error")
	}
}
