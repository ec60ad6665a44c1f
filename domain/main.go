package domain

import (
	"github.com/akeren/launch-waitlist/config"
	"github.com/akeren/launch-waitlist/domain/auth"
	"github.com/akeren/launch-waitlist/domain/monitoring"
	"github.com/akeren/launch-waitlist/domain/wall"
	"github.com/akeren/launch-waitlist/domain/waitlist"
	"github.com/akeren/launch-waitlist/pkg/factory"
)

func SetupCoreDomain(appConfig *config.ApplicationConfig) {
	rs := appConfig.RouterService
	limiters := factory.NewRateLimiterFactory(rs.RedisClient(), appConfig.Logger)
	admin := auth.NewAdmin(appConfig.Waitlist.AdminPassword, appConfig.Sessions, appConfig.Logger)

	var mail monitoring.MailStatus
	if appConfig.Mailer != nil {
		mail = appConfig.Mailer
	}

	rs.MountController(monitoring.NewMonitoringControllerFactory(appConfig.DB, appConfig.Logger, appConfig.Cache, mail, limiters).CreateController())
	rs.MountController(auth.NewAuthController(admin, limiters))
	rs.MountController(waitlist.NewWaitlistServiceFactory(
		appConfig.DB,
		appConfig.Logger,
		appConfig.Notifier,
		admin,
		limiters,
		waitlist.FactoryConfig{
			CodeTTL:           appConfig.Waitlist.CodeTTL,
			RequestCodeLimit:  appConfig.Waitlist.RequestCodeLimit,
			RequestCodeWindow: appConfig.Waitlist.RequestCodeWindow,
		},
	).CreateController())
	rs.MountController(wall.NewWallControllerFactory(appConfig.DB, appConfig.Logger, appConfig.Avatars).CreateController())
}
