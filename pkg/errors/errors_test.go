package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("missing", nil), StatusNotFound},
		{"invalid request", NewInvalidRequestError("bad", nil), StatusBadRequest},
		{"conflict maps to bad request", NewConflictError("already verified", nil), StatusBadRequest},
		{"unauthorized", NewUnauthorizedError("nope", nil), StatusUnauthorized},
		{"delivery failure", NewDeliveryError("send failed", io.ErrClosedPipe), StatusInternalServerError},
		{"database", NewDatabaseError("db", nil), StatusInternalServerError},
		{"wrapped", fmt.Errorf("outer: %w", NewNotFoundError("missing", nil)), StatusNotFound},
		{"untyped", fmt.Errorf("boom"), StatusInternalServerError},
		{"nil", nil, StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatusCode(tc.err))
		})
	}
}

func TestGetHumanReadableMessage_HidesUntypedErrors(t *testing.T) {
	assert.Equal(t, "Entry not found", GetHumanReadableMessage(NewNotFoundError("Entry not found", fmt.Errorf("record not found"))))
	assert.Equal(t, "An unexpected error occurred", GetHumanReadableMessage(fmt.Errorf("pq: password authentication failed")))
}

func TestIsDuplicateKeyError(t *testing.T) {
	assert.True(t, IsDuplicateKeyError(fmt.Errorf("UNIQUE constraint failed: waitlist_entries.email")))
	assert.True(t, IsDuplicateKeyError(fmt.Errorf(`pq: duplicate key value violates unique constraint "idx_email"`)))
	assert.True(t, IsDuplicateKeyError(NewConflictError("exists", nil)))
	assert.False(t, IsDuplicateKeyError(fmt.Errorf("connection refused")))
	assert.False(t, IsDuplicateKeyError(nil))
}

type signupBody struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"max=5"`
}

func TestFormatValidationErrors_UsesJSONFieldNames(t *testing.T) {
	err := validator.New().Struct(signupBody{Email: "not-an-email", Name: "far too long"})
	require.Error(t, err)

	got := FormatValidationErrors(err, &signupBody{})
	require.Len(t, got, 2)
	assert.Equal(t, ValidationErrorResponse{Field: "email", Message: "Invalid email format"}, got[0])
	assert.Equal(t, ValidationErrorResponse{Field: "name", Message: "Must not exceed 5 characters"}, got[1])
}

func TestFormatValidationErrors_DecoderFailures(t *testing.T) {
	var body signupBody

	syntaxErr := json.Unmarshal([]byte(`{"email":`), &body)
	got := FormatValidationErrors(syntaxErr, &body)
	require.Len(t, got, 1)
	assert.Equal(t, "body", got[0].Field)

	typeErr := json.Unmarshal([]byte(`{"email": 42}`), &body)
	got = FormatValidationErrors(typeErr, &body)
	require.Len(t, got, 1)
	assert.Equal(t, "email", got[0].Field)

	got = FormatValidationErrors(fmt.Errorf(`json: unknown field "isAdmin"`), &body)
	require.Len(t, got, 1)
	assert.Equal(t, ValidationErrorResponse{Field: "isAdmin", Message: "Field is not allowed"}, got[0])

	got = FormatValidationErrors(io.EOF, &body)
	require.Len(t, got, 1)
	assert.Equal(t, "Request body is required", got[0].Message)

	assert.Empty(t, FormatValidationErrors(nil, &body))
}
