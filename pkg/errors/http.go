package errors

import (
	"errors"
)

// HTTPStatusCode maps an error to the response status. Conflicts on the waitlist
// (already verified, duplicate email) are client mistakes and surface as 400.
func HTTPStatusCode(err error) int {
	if err == nil {
		return StatusInternalServerError
	}

	switch GetErrorType(err) {
	case ErrorTypeNotFound:
		return StatusNotFound
	case ErrorTypeInvalidRequest, ErrorTypeConflict:
		return StatusBadRequest
	case ErrorTypeUnauthorized:
		return StatusUnauthorized
	case ErrorTypeForbidden:
		return StatusForbidden
	case ErrorTypeTooManyRequests, ErrorTypeRateLimitExceeded:
		return StatusTooManyRequests
	case ErrorTypeRequestTimeout:
		return StatusRequestTimeout
	case ErrorTypeMethodNotAllowed:
		return StatusMethodNotAllowed
	default:
		// DATABASE_ERROR, DELIVERY_FAILED, INTERNAL_SERVER_ERROR and anything untyped.
		return StatusInternalServerError
	}
}

func GetHumanReadableMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}

	// SECURITY: avoid leaking internal error strings (DB errors, SMTP replies, etc.)
	return "An unexpected error occurred"
}
