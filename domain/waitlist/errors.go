package waitlist

import (
	"errors"

	apperrors "github.com/akeren/launch-waitlist/pkg/errors"
)

// Sentinels stay reachable through errors.Is after being wrapped in an AppError,
// which carries the HTTP mapping and the client-facing message.
var (
	ErrEntryNotFound       = errors.New("waitlist entry not found")
	ErrAlreadyVerified     = errors.New("waitlist entry already verified")
	ErrInvalidCode         = errors.New("invalid verification code")
	ErrCodeExpired         = errors.New("verification code expired")
	ErrEmailDeliveryFailed = errors.New("email delivery failed")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrEmptyPatch          = errors.New("no fields to update")
)

func entryNotFound(message string) error {
	return apperrors.NewNotFoundError(message, ErrEntryNotFound)
}

func alreadyVerified(message string) error {
	return apperrors.NewConflictError(message, ErrAlreadyVerified)
}

func invalidCode() error {
	return apperrors.NewInvalidRequestError("Invalid verification code", ErrInvalidCode)
}

func codeExpired() error {
	return apperrors.NewInvalidRequestError("Verification code has expired. Please request a new code.", ErrCodeExpired)
}

func deliveryFailed(reason string) error {
	return apperrors.NewDeliveryError("Failed to send verification email. Please try again.", errors.Join(ErrEmailDeliveryFailed, errors.New(reason)))
}

func invalidEmail() error {
	return apperrors.NewInvalidRequestError("Invalid email address", ErrInvalidEmail)
}
