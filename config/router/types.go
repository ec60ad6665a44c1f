package router

import (
	"github.com/gin-gonic/gin"
)

type RequestContext = gin.Context

// MiddlewareFunc runs before a single handler, e.g. the admin session guard.
type MiddlewareFunc = gin.HandlerFunc

// ServiceResult is the {code, data, message} envelope every endpoint answers with.
// StatusCode doubles as the HTTP status.
type ServiceResult struct {
	StatusCode int    `json:"code"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
}

// RateLimitResponse is the data of a 429, telling clients when to retry.
type RateLimitResponse struct {
	Limit      int    `json:"limit"`
	Window     string `json:"window"`
	RetryAfter string `json:"retry_after"`
}

type HandlerFunction func(*RequestContext) *ServiceResult

type RESTController struct {
	name         string
	mountPoint   string
	version      string
	handlerCount int
	prepare      func(*RouterService, *RESTController)
}

func (result *ServiceResult) ToJSON() gin.H {
	return gin.H{
		"code":    result.StatusCode,
		"data":    result.Data,
		"message": result.Message,
	}
}
