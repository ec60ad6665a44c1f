package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func msgForTag(tag string) string {
	switch tag {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return "Value is too short or too small"
	case "max":
		return "Value is too long or too large"
	case "len":
		return "Value must be exact length"
	case "numeric":
		return "Value must be numeric"
	case "e164":
		return "Phone number must be in international format"
	case "oneof":
		return "Value is not one of the allowed options"
	case "uuid", "uuid4":
		return "Invalid identifier"
	default:
		return "Invalid value"
	}
}

func messageWithParam(fieldError validator.FieldError) string {
	if fieldError.Param() == "" {
		return msgForTag(fieldError.Tag())
	}

	switch fieldError.Tag() {
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fieldError.Param())
	case "max":
		return fmt.Sprintf("Must not exceed %s characters", fieldError.Param())
	case "len":
		return fmt.Sprintf("Must be exactly %s characters", fieldError.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fieldError.Param())
	default:
		return msgForTag(fieldError.Tag())
	}
}

func getJSONFieldName(structType reflect.Type, fieldName string) string {
	if structType == nil || structType.Kind() != reflect.Struct {
		return fieldName
	}

	field, found := structType.FieldByName(fieldName)
	if !found {
		return fieldName
	}

	jsonTag := field.Tag.Get("json")
	if jsonTag == "" || jsonTag == "-" {
		return fieldName
	}

	return strings.Split(jsonTag, ",")[0]
}

// FormatValidationErrors flattens binding failures into field/message pairs.
// Decoder failures (bad JSON, wrong types, unknown fields) collapse to a single entry.
func FormatValidationErrors(err error, model any) []ValidationErrorResponse {
	var errorsList []ValidationErrorResponse

	if err == nil {
		return errorsList
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []ValidationErrorResponse{{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("Invalid type for field %s. Expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value),
		}}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return []ValidationErrorResponse{{Field: "body", Message: "Malformed JSON body"}}
	}

	if errors.Is(err, io.EOF) {
		return []ValidationErrorResponse{{Field: "body", Message: "Request body is required"}}
	}

	// encoding/json reports DisallowUnknownFields violations as plain strings.
	if msg := err.Error(); strings.HasPrefix(msg, "json: unknown field ") {
		field := strings.Trim(strings.TrimPrefix(msg, "json: unknown field "), `"`)
		return []ValidationErrorResponse{{Field: field, Message: "Field is not allowed"}}
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []ValidationErrorResponse{{Field: "body", Message: "Invalid request body"}}
	}

	var structType reflect.Type
	if model != nil {
		structType = reflect.TypeOf(model)
		if structType.Kind() == reflect.Ptr {
			structType = structType.Elem()
		}
	}

	errorsList = make([]ValidationErrorResponse, len(validationErrors))
	for i, fieldError := range validationErrors {
		errorsList[i] = ValidationErrorResponse{
			Field:   getJSONFieldName(structType, fieldError.Field()),
			Message: messageWithParam(fieldError),
		}
	}

	return errorsList
}
