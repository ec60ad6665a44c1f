package auth

import (
	"time"

	"github.com/akeren/launch-waitlist/config/router"
	"github.com/akeren/launch-waitlist/pkg/factory"
)

const (
	loginRequestsPerWindow = 10
	loginWindow            = time.Minute
)

type LoginRequest struct {
	Sequence []string `json:"sequence" binding:"required"`
}

type SessionResponse struct {
	Authenticated bool `json:"authenticated"`
}

func NewAuthController(admin *Admin, limiters factory.RateLimiterFactory) *router.RESTController {
	return router.NewRESTController(
		"AuthController",
		"/api/auth",
		func(rs *router.RouterService, c *router.RESTController) {
			loginLimiter := limiters.ForEndpoint("admin-login", loginRequestsPerWindow, loginWindow)

			rs.AddPostHandler(c, loginLimiter, "admin", loginHandler(admin))
			rs.AddGetHandler(c, nil, "admin", sessionHandler(admin))
			rs.AddDeleteHandler(c, nil, "admin", logoutHandler(admin))
		},
	)
}

func loginHandler(admin *Admin) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		logger := router.GetLogger(ctx)

		var req LoginRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid admin login payload", "error", err)
			return router.BadRequestResult("Invalid sequence format", nil)
		}

		if !admin.Matches(req.Sequence) {
			logger.Warn("Admin login rejected", "remote_addr", ctx.ClientIP())
			return router.UnauthorizedResult("Incorrect password")
		}

		if err := admin.Login(ctx.Writer, ctx.Request); err != nil {
			logger.Error("Failed to save admin session", "error", err)
			return router.InternalServerErrorResult("Server error")
		}

		logger.Info("Admin logged in", "remote_addr", ctx.ClientIP())
		return router.OKResult(SessionResponse{Authenticated: true}, "Admin authenticated")
	}
}

func sessionHandler(admin *Admin) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		return router.OKResult(SessionResponse{Authenticated: admin.IsAuthenticated(ctx.Request)}, "Admin session status")
	}
}

func logoutHandler(admin *Admin) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		if err := admin.Logout(ctx.Writer, ctx.Request); err != nil {
			router.GetLogger(ctx).Error("Failed to clear admin session", "error", err)
			return router.InternalServerErrorResult("Server error")
		}
		return router.OKResult(SessionResponse{Authenticated: false}, "Admin logged out")
	}
}
