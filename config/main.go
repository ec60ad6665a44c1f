package config

import (
	"context"
	"time"

	"github.com/akeren/launch-waitlist/config/router"
	"github.com/akeren/launch-waitlist/internal/avatar"
	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/akeren/launch-waitlist/internal/models"
	"github.com/akeren/launch-waitlist/internal/notify"
	"github.com/akeren/launch-waitlist/pkg/constants"
	"github.com/akeren/launch-waitlist/pkg/utils"
	"github.com/gorilla/sessions"
	"gorm.io/gorm"
)

type ApplicationConfig struct {
	DB              *gorm.DB
	RouterService   *router.RouterService
	Logger          *log.Logger
	Cache           Cache
	Config          *AppConfig
	Waitlist        *WaitlistConfig
	Mailer          *notify.Mailer
	Notifier        *notify.Service
	Avatars         *avatar.Resolver
	Sessions        sessions.Store
	TracingShutdown func(context.Context) error
}

type AppConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RequestTimeout    time.Duration
}

func NewAppConfig() *AppConfig {
	config := &AppConfig{
		RateLimitRequests: constants.DefaultRateLimitRequests,
		RateLimitWindow:   constants.DefaultRateLimitWindow(),
		RequestTimeout:    30 * time.Second,
	}

	config.RateLimitRequests = positiveIntFromEnv("RATE_LIMIT_REQUESTS", config.RateLimitRequests)
	config.RateLimitWindow = utils.GetEnvPositiveDuration("RATE_LIMIT_WINDOW", config.RateLimitWindow)
	// Mail sends block the request for up to MAIL_SEND_TIMEOUT, so keep this above it.
	config.RequestTimeout = utils.GetEnvPositiveDuration("REQUEST_TIMEOUT", config.RequestTimeout)

	return config
}

func (ac *ApplicationConfig) Cleanup() {
	if ac.TracingShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ac.TracingShutdown(ctx); err != nil {
			ac.Logger.Error("Failed to shutdown tracer provider", "error", err)
		}
	}

	if ac.DB != nil {
		CloseDatabase(ac.DB, ac.Logger)
	}

	if ac.RouterService != nil {
		ac.RouterService.Cleanup()
	}

	if ac.Cache != nil {
		_ = CloseCache(ac.Cache, ac.Logger)
	}

	ac.Logger.Info("Application cleanup completed")
}

func LoadApplicationConfiguration(logger *log.Logger, autoMigrate bool) (*ApplicationConfig, error) {
	InitializeEnvFile(logger)

	if autoMigrate {
		appEnv := GetAppEnv()
		if err := ValidateAutoMigrateAllowed(appEnv); err != nil {
			return nil, err
		}
		if appEnv == "" {
			logger.Warn("APP_ENV not set; allowing --auto-migrate as development")
		}
	}

	waitlistCfg, err := LoadWaitlistConfig(context.Background())
	if err != nil {
		return nil, err
	}

	tracingShutdown, err := SetupTracing(logger)
	if err != nil {
		return nil, err
	}

	db, err := NewDatabase(logger, NewDBConfig())
	if err != nil {
		return nil, err
	}

	if autoMigrate {
		if err := AutoMigrate(logger, db, models.ModelRegistry...); err != nil {
			CloseDatabase(db, logger)
			return nil, err
		}
	}

	appConfig := NewAppConfig()
	cache := NewCacheConfig().NewCacheOrNil(logger)

	routerService := router.CreateRouterService(logger, cache, &router.RouterConfig{
		RateLimitRequests: appConfig.RateLimitRequests,
		RateLimitWindow:   appConfig.RateLimitWindow,
		RequestTimeout:    appConfig.RequestTimeout,
	})

	app := &ApplicationConfig{
		DB:              db,
		RouterService:   routerService,
		Logger:          logger,
		Cache:           cache,
		Config:          appConfig,
		Waitlist:        waitlistCfg,
		TracingShutdown: tracingShutdown,
	}

	if err := app.wireWaitlist(); err != nil {
		app.Cleanup()
		return nil, err
	}

	logger.Info("Application configuration loaded successfully")

	return app, nil
}

func (ac *ApplicationConfig) wireWaitlist() error {
	mailer, notifier, err := ac.Waitlist.NewNotifier(ac.DB, ac.RouterService.MetricsRegisterer(), ac.Logger)
	if err != nil {
		return err
	}

	store, err := ac.Waitlist.NewSessionStore(ac.Logger, utils.IsProduction())
	if err != nil {
		return err
	}

	if ac.Waitlist.AdminPassword == "" {
		ac.Logger.Warn("ADMIN_PASSWORD not set; admin login is disabled")
	}

	if ac.Waitlist.MailSendTimeout >= ac.Config.RequestTimeout {
		ac.Logger.Warn("MAIL_SEND_TIMEOUT is not below REQUEST_TIMEOUT; slow sends may surface as request timeouts",
			"mail_send_timeout", ac.Waitlist.MailSendTimeout,
			"request_timeout", ac.Config.RequestTimeout,
		)
	}

	ac.Mailer = mailer
	ac.Notifier = notifier
	ac.Avatars = ac.Waitlist.NewAvatarResolver(ac.Logger)
	ac.Sessions = store
	return nil
}
