package dto

import (
	"errors"
	"net/http"

	"github.com/erp/settlement/internal/domain/shared"
)

// Error codes produced by the HTTP layer itself. Domain errors carry their own
// codes (NO_ACTIVE_SERIES, SERIES_LIMIT_REACHED, ...) which pass through as-is.
const (
	ErrCodeInternal        = "ERR_INTERNAL"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeNotFound        = "ERR_NOT_FOUND"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// kindStatus maps each error kind to its HTTP status
var kindStatus = map[shared.ErrorKind]int{
	shared.KindValidation:          http.StatusBadRequest,
	shared.KindBusinessRule:        http.StatusUnprocessableEntity,
	shared.KindNotFound:            http.StatusNotFound,
	shared.KindConcurrencyConflict: http.StatusConflict,
	shared.KindStorageFailure:      http.StatusInternalServerError,
}

// StatusForKind returns the HTTP status for an error kind, 500 when unknown
func StatusForKind(kind shared.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorFor converts err into an HTTP status and error body. Storage failures
// and unknown errors never leak their message.
func ErrorFor(err error) (int, ErrorInfo) {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, ErrorInfo{Code: ErrCodeInternal, Message: "An unexpected error occurred"}
	}

	status := StatusForKind(de.Kind)
	if status == http.StatusInternalServerError {
		return status, ErrorInfo{Code: ErrCodeInternal, Message: "An unexpected error occurred"}
	}
	return status, ErrorInfo{Code: de.Code, Message: de.Message}
}
