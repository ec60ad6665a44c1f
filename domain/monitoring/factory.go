package monitoring

import (
	"github.com/akeren/launch-waitlist/config/router"
	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/akeren/launch-waitlist/pkg/factory"
	"gorm.io/gorm"
)

type MonitoringControllerFactory interface {
	CreateController() *router.RESTController
}

type DefaultMonitoringControllerFactory struct {
	db       *gorm.DB
	logger   *log.Logger
	cache    Cache
	mail     MailStatus
	limiters factory.RateLimiterFactory
}

func NewMonitoringControllerFactory(db *gorm.DB, logger *log.Logger, cache Cache, mail MailStatus, limiters factory.RateLimiterFactory) MonitoringControllerFactory {
	return &DefaultMonitoringControllerFactory{
		db:       db,
		logger:   logger,
		cache:    cache,
		mail:     mail,
		limiters: limiters,
	}
}

func (f *DefaultMonitoringControllerFactory) CreateController() *router.RESTController {
	return NewMonitoringController(f.db, f.logger, f.cache, f.mail, f.limiters)
}
