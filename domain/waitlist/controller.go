package waitlist

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/akeren/launch-waitlist/config/router"
	"github.com/akeren/launch-waitlist/pkg/constants"
	apperrors "github.com/akeren/launch-waitlist/pkg/errors"
	"github.com/akeren/launch-waitlist/pkg/factory"
)

const (
	defaultRequestCodeLimit  = 10
	defaultRequestCodeWindow = time.Minute
)

// ControllerConfig tunes the public signup endpoints.
type ControllerConfig struct {
	RequestCodeLimit  int
	RequestCodeWindow time.Duration
}

func (c ControllerConfig) withDefaults() ControllerConfig {
	if c.RequestCodeLimit <= 0 {
		c.RequestCodeLimit = defaultRequestCodeLimit
	}
	if c.RequestCodeWindow <= 0 {
		c.RequestCodeWindow = defaultRequestCodeWindow
	}
	return c
}

// Guard protects the admin routes.
type Guard interface {
	RequireAdmin() router.MiddlewareFunc
}

func NewWaitlistController(
	service WaitlistService,
	guard Guard,
	limiters factory.RateLimiterFactory,
	cfg ControllerConfig,
) *router.RESTController {
	cfg = cfg.withDefaults()

	return router.NewRESTController(
		"WaitlistController",
		"/api/waitlist",
		func(rs *router.RouterService, c *router.RESTController) {
			requestCodeLimiter := limiters.ForEndpoint("request-code", cfg.RequestCodeLimit, cfg.RequestCodeWindow)
			requireAdmin := guard.RequireAdmin()

			rs.AddPostHandler(c, requestCodeLimiter, "request-code", requestCodeHandler(service))
			rs.AddPostHandler(c, nil, "verify", verifyCodeHandler(service))

			rs.AddGetHandler(c, nil, "", listEntriesHandler(service), requireAdmin)
			rs.AddGetHandler(c, nil, "stats", statsHandler(service), requireAdmin)
			rs.AddPatchHandler(c, nil, ":id", updateEntryHandler(service), requireAdmin)
			rs.AddDeleteHandler(c, nil, ":id", deleteEntryHandler(service), requireAdmin)
		},
	)
}

func bindFailure(err error, model any) *router.ServiceResult {
	validationErrors := apperrors.FormatValidationErrors(err, model)
	if len(validationErrors) > 0 {
		return router.BadRequestResult("Invalid request payload", validationErrors)
	}
	return router.BadRequestResult("Invalid request body", nil)
}

func requestCodeHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		logger := router.GetLogger(ctx)

		var req RequestCodeRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			logger.Warn("Failed to bind request-code payload", "error", err)
			return bindFailure(err, &req)
		}

		if err := service.RequestCode(ctx.Request.Context(), req.Email); err != nil {
			return router.ErrorResultFrom(err)
		}

		return router.OKResult(nil, "Verification code sent to your email")
	}
}

func verifyCodeHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		logger := router.GetLogger(ctx)

		var req VerifyCodeRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			logger.Warn("Failed to bind verify payload", "error", err)
			return bindFailure(err, &req)
		}

		entry, err := service.VerifyCode(ctx.Request.Context(), &req)
		if err != nil {
			return router.ErrorResultFrom(err)
		}

		return router.OKResult(EntryEnvelope{Entry: *entry}, "Successfully joined the waitlist!")
	}
}

// parseListQuery falls back to defaults for unusable page/limit values but
// rejects filters that are present and not booleans.
func parseListQuery(ctx *router.RequestContext) (ListQuery, *router.ServiceResult) {
	query := ListQuery{
		Page:  constants.DefaultPage,
		Limit: constants.DefaultPageSize,
	}

	if v, err := strconv.Atoi(ctx.Query("page")); err == nil {
		query.Page = v
	}
	if v, err := strconv.Atoi(ctx.Query("limit")); err == nil {
		query.Limit = v
	}

	for param, target := range map[string]**bool{"verified": &query.Verified, "isOG": &query.IsOG} {
		raw := strings.TrimSpace(ctx.Query(param))
		if raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return query, router.BadRequestResult("Invalid query parameter", []apperrors.ValidationErrorResponse{
				{Field: param, Message: param + " must be true or false"},
			})
		}
		*target = &b
	}

	return query.normalized(), nil
}

func listEntriesHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		query, errResult := parseListQuery(ctx)
		if errResult != nil {
			return errResult
		}

		response, err := service.ListEntries(ctx.Request.Context(), query)
		if err != nil {
			return router.ErrorResultFrom(err)
		}

		return router.OKResult(response, "Waitlist entries retrieved successfully")
	}
}

func statsHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		stats, err := service.GetStats(ctx.Request.Context())
		if err != nil {
			return router.ErrorResultFrom(err)
		}
		return router.OKResult(stats, "Waitlist stats retrieved successfully")
	}
}

// decodePatch rejects unknown fields, wrong types and trailing data.
func decodePatch(body io.Reader, req *UpdateEntryRequest) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(req); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func updateEntryHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		logger := router.GetLogger(ctx)

		id, errResult := router.ParseUUIDParam(ctx, "id")
		if errResult != nil {
			return errResult
		}

		var req UpdateEntryRequest
		if err := decodePatch(ctx.Request.Body, &req); err != nil {
			logger.Warn("Rejected waitlist patch", "entry_id", id, "error", err)
			return bindFailure(err, &req)
		}

		entry, err := service.UpdateEntry(ctx.Request.Context(), id, &req)
		if err != nil {
			return router.ErrorResultFrom(err)
		}

		return router.OKResult(EntryEnvelope{Entry: *entry}, "Waitlist entry updated successfully")
	}
}

func deleteEntryHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		id, errResult := router.ParseUUIDParam(ctx, "id")
		if errResult != nil {
			return errResult
		}

		if err := service.DeleteEntry(ctx.Request.Context(), id); err != nil {
			return router.ErrorResultFrom(err)
		}

		return router.OKResult(nil, "Waitlist entry deleted")
	}
}
