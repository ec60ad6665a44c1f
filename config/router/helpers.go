package router

import (
	"net/http"

	"github.com/akeren/launch-waitlist/internal/log"
	apperrors "github.com/akeren/launch-waitlist/pkg/errors"
	"github.com/google/uuid"
)

func GetLogger(ctx *RequestContext) *log.Logger {
	if logger := ctx.Request.Context().Value(log.LoggerKeyForContext); logger != nil {
		if l, ok := logger.(*log.Logger); ok {
			return l
		}
	}

	baseLogger := log.NewLoggerWithJSONOutput()
	return baseLogger.WithCorrelationID(ctx.Request.Context())
}

func OKResult(data any, message string) *ServiceResult {
	return &ServiceResult{
		StatusCode: http.StatusOK,
		Data:       data,
		Message:    message,
	}
}

func CreatedResult(data any, resourceName string) *ServiceResult {
	return &ServiceResult{
		StatusCode: http.StatusCreated,
		Data:       data,
		Message:    resourceName + " created successfully",
	}
}

func TooManyRequestsResult(data RateLimitResponse) *ServiceResult {
	return &ServiceResult{
		StatusCode: http.StatusTooManyRequests,
		Data:       data,
		Message:    "Too Many Requests",
	}
}

func BadRequestResult(message string, payload any) *ServiceResult {
	return &ServiceResult{
		StatusCode: http.StatusBadRequest,
		Data:       payload,
		Message:    message,
	}
}

func UnauthorizedResult(message string) *ServiceResult {
	return &ServiceResult{
		StatusCode: http.StatusUnauthorized,
		Data:       nil,
		Message:    message,
	}
}

func NotFoundResult(message string) *ServiceResult {
	return &ServiceResult{
		StatusCode: http.StatusNotFound,
		Data:       nil,
		Message:    message,
	}
}

func InternalServerErrorResult(message string) *ServiceResult {
	return &ServiceResult{
		StatusCode: http.StatusInternalServerError,
		Data:       nil,
		Message:    message,
	}
}

func ForbiddenResult(message string) *ServiceResult {
	return &ServiceResult{
		StatusCode: http.StatusForbidden,
		Data:       nil,
		Message:    message,
	}
}

func ErrorResult(statusCode int, message string, data any) *ServiceResult {
	return &ServiceResult{
		StatusCode: statusCode,
		Data:       data,
		Message:    message,
	}
}

// ErrorResultFrom maps an application error onto its HTTP status without leaking internals.
func ErrorResultFrom(err error) *ServiceResult {
	return ErrorResult(
		apperrors.HTTPStatusCode(err),
		apperrors.GetHumanReadableMessage(err),
		nil,
	)
}

// ParseUUIDParam reads a path parameter that must hold a UUID.
func ParseUUIDParam(ctx *RequestContext, paramName string) (string, *ServiceResult) {
	logger := GetLogger(ctx)

	idParam := ctx.Param(paramName)
	id, err := uuid.Parse(idParam)

	if err != nil {
		logger.Warn("Invalid ID parameter", "param", paramName, "value", idParam, "error", err)
		return "", BadRequestResult("Invalid ID parameter", nil)
	}

	return id.String(), nil
}
