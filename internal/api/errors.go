package api

import (
	"errors"
	"net/http"

	"procurement-workflow/internal/domain"
	"procurement-workflow/internal/storage"
	"procurement-workflow/internal/upload"
	"procurement-workflow/internal/verification"
)

var (
	ErrProcessNotFound = errors.New("process not found")
	ErrFileTooLarge    = errors.New("file exceeds size limit")
	ErrInvalidRequest  = errors.New("invalid request")
)

func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrProcessNotFound),
		errors.Is(err, upload.ErrProcessNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTransitionRejected),
		errors.Is(err, upload.ErrSubmissionInFlight):
		return http.StatusConflict
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidStage),
		errors.Is(err, upload.ErrInvalidFile),
		errors.Is(err, upload.ErrInvalidResult),
		errors.Is(err, verification.ErrInvalidEndpoint):
		return http.StatusBadRequest
	case errors.Is(err, upload.ErrDispatchFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
