package monitoring

import (
	"context"
	"time"

	"github.com/akeren/launch-waitlist/config/router"
	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/akeren/launch-waitlist/pkg/circuitbreaker"
	"github.com/akeren/launch-waitlist/pkg/factory"
	"gorm.io/gorm"
)

const (
	serviceName                 = "launch-waitlist"
	monitoringRequestsPerMinute = 10
	healthCheckTimeout          = 3 * time.Second
)

type Cache interface {
	Ping(ctx context.Context) error
}

// MailStatus is the slice of the mailer the health check needs.
type MailStatus interface {
	TransportName() string
	BreakerState() circuitbreaker.CircuitState
}

type HealthStatus struct {
	Database      int    `json:"database"` // 1 = healthy, 0 = unhealthy
	Cache         int    `json:"cache"`    // 1 = healthy, 0 = unhealthy/not configured
	Mail          int    `json:"mail"`     // 1 = breaker closed, 0 = open or half-open
	MailTransport string `json:"mail_transport"`
	MailBreaker   string `json:"mail_breaker"`
	Uptime        int    `json:"uptime"` // uptime in seconds
}

type MonitoringController struct {
	db        *gorm.DB
	logger    *log.Logger
	cache     Cache
	mail      MailStatus
	startTime time.Time
}

func NewMonitoringController(db *gorm.DB, logger *log.Logger, cache Cache, mail MailStatus, limiters factory.RateLimiterFactory) *router.RESTController {
	ctrl := &MonitoringController{
		db:        db,
		logger:    logger,
		cache:     cache,
		mail:      mail,
		startTime: time.Now(),
	}

	return router.NewRESTController(
		"MonitoringController",
		"/",
		func(routerService *router.RouterService, controller *router.RESTController) {
			monitoringRateLimiter := limiters.ForEndpoint("monitoring", monitoringRequestsPerMinute, time.Minute)

			routerService.AddGetHandler(controller, monitoringRateLimiter, "", func(c *router.RequestContext) *router.ServiceResult {
				return ctrl.monitor(c)
			})

			routerService.AddGetHandler(controller, monitoringRateLimiter, "health", func(c *router.RequestContext) *router.ServiceResult {
				return ctrl.healthCheck(routerService, c)
			})
		},
	)
}

func (ctrl *MonitoringController) healthCheck(
	routerService *router.RouterService,
	c *router.RequestContext,
) *router.ServiceResult {
	logger := routerService.GetLogger(c)
	logger.Info("Health check endpoint called")

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()
	healthStatus := ctrl.performHealthChecks(ctx, logger)

	return &router.ServiceResult{
		StatusCode: 200,
		Data:       healthStatus,
		Message:    serviceName + " health check completed",
	}
}

func (ctrl *MonitoringController) monitor(
	c *router.RequestContext,
) *router.ServiceResult {
	return &router.ServiceResult{
		StatusCode: 200,
		Data:       "Waitlist API is operational.",
		Message:    "Monitoring successful",
	}
}

func (ctrl *MonitoringController) performHealthChecks(ctx context.Context, logger *log.Logger) HealthStatus {
	status := HealthStatus{
		Uptime: int(time.Since(ctrl.startTime).Seconds()),
	}

	checkDatabaseConnectivity(ctx, ctrl, &status, logger)

	checkCacheConnectivity(ctx, ctrl, &status, logger)

	checkMail(ctrl, &status, logger)

	return status
}

func checkCacheConnectivity(ctx context.Context, ctrl *MonitoringController, status *HealthStatus, logger *log.Logger) {
	if ctrl.cache != nil {
		if ctrl.checkCache(ctx) {
			status.Cache = 1
			logger.Info("Cache health check passed")
		} else {
			status.Cache = 0
			logger.Error("Cache health check failed")
		}
	} else {
		status.Cache = 0 // Cache not configured
		logger.Info("Cache not configured, cache health check skipped")
	}
}

func checkDatabaseConnectivity(ctx context.Context, ctrl *MonitoringController, status *HealthStatus, logger *log.Logger) {
	if ctrl.checkDatabase(ctx) {
		status.Database = 1
		logger.Info("Database health check passed")
	} else {
		status.Database = 0
		logger.Error("Database health check failed")
	}
}

// checkMail reads the breaker without sending anything.
func checkMail(ctrl *MonitoringController, status *HealthStatus, logger *log.Logger) {
	if ctrl.mail == nil {
		logger.Info("Mailer not configured, mail health check skipped")
		return
	}

	state := ctrl.mail.BreakerState()
	status.MailTransport = ctrl.mail.TransportName()
	status.MailBreaker = state.String()

	if state == circuitbreaker.Closed {
		status.Mail = 1
		logger.Info("Mail health check passed", "transport", status.MailTransport)
	} else {
		logger.Warn("Mail circuit breaker is not closed", "transport", status.MailTransport, "state", status.MailBreaker)
	}
}

func (ctrl *MonitoringController) checkDatabase(ctx context.Context) bool {
	if ctrl.db == nil {
		return false
	}
	sqlDB, err := ctrl.db.DB()
	if err != nil {
		return false
	}

	return sqlDB.PingContext(ctx) == nil
}

func (ctrl *MonitoringController) checkCache(ctx context.Context) bool {
	return ctrl.cache.Ping(ctx) == nil
}
