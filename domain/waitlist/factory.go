package waitlist

import (
	"time"

	"github.com/akeren/launch-waitlist/config/router"
	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/akeren/launch-waitlist/pkg/factory"
	"gorm.io/gorm"
)

type WaitlistServiceFactory interface {
	CreateService() WaitlistService
	CreateController() *router.RESTController
	CreateImporter() *Importer
}

// FactoryConfig carries the settings shared by the service and its controller.
type FactoryConfig struct {
	CodeTTL           time.Duration
	RequestCodeLimit  int
	RequestCodeWindow time.Duration
}

type DefaultWaitlistServiceFactory struct {
	db       *gorm.DB
	logger   *log.Logger
	notifier Notifier
	guard    Guard
	limiters factory.RateLimiterFactory
	cfg      FactoryConfig
}

func NewWaitlistServiceFactory(
	db *gorm.DB,
	logger *log.Logger,
	notifier Notifier,
	guard Guard,
	limiters factory.RateLimiterFactory,
	cfg FactoryConfig,
) WaitlistServiceFactory {
	return &DefaultWaitlistServiceFactory{
		db:       db,
		logger:   logger,
		notifier: notifier,
		guard:    guard,
		limiters: limiters,
		cfg:      cfg,
	}
}

func (f *DefaultWaitlistServiceFactory) CreateService() WaitlistService {
	repository := NewWaitlistRepository(f.db)
	return NewWaitlistService(f.logger, repository, f.notifier, WithCodeTTL(f.cfg.CodeTTL))
}

func (f *DefaultWaitlistServiceFactory) CreateController() *router.RESTController {
	return NewWaitlistController(f.CreateService(), f.guard, f.limiters, ControllerConfig{
		RequestCodeLimit:  f.cfg.RequestCodeLimit,
		RequestCodeWindow: f.cfg.RequestCodeWindow,
	})
}

func (f *DefaultWaitlistServiceFactory) CreateImporter() *Importer {
	return NewImporter(NewWaitlistRepository(f.db), f.logger)
}
