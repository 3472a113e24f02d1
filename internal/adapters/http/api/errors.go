package api

import (
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/studyroom/internal/app"
	"github.com/okian/studyroom/internal/domain/results"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest           = errors.New("bad request")
	ErrStreamingUnsupported = errors.New("streaming unsupported")
)

// NewKind tags kind with the operation that produced it.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind tags err with op and kind so both match errors.Is.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// Wrap tags err with op.
func Wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// errorStatus maps service errors to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, service.ErrNoOpenStay):
		return http.StatusConflict, "no_open_stay"
	case errors.Is(err, service.ErrSessionNotOver):
		return http.StatusConflict, "session_not_over"
	case errors.Is(err, service.ErrAlreadyFinalized):
		return http.StatusConflict, "already_finalized"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidSession),
		errors.Is(err, service.ErrInvalidResult),
		errors.Is(err, service.ErrInvalidUID):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, results.ErrStorage):
		return http.StatusServiceUnavailable, "storage_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeServiceError writes err with the status errorStatus assigns it.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	status, code := errorStatus(err)
	writeError(w, status, code, Wrap(op, err))
}
