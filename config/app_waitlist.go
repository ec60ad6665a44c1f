package config

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/akeren/launch-waitlist/internal/avatar"
	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/akeren/launch-waitlist/internal/notify"
	"github.com/akeren/launch-waitlist/pkg/circuitbreaker"
	"github.com/akeren/launch-waitlist/pkg/constants"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sethvargo/go-envconfig"
	"gorm.io/gorm"
)

const (
	MailProviderSMTP   = "smtp"
	MailProviderResend = "resend"
)

// WaitlistConfig holds everything the waitlist, its mailer and the avatar wall read from the environment.
type WaitlistConfig struct {
	ProductName   string        `env:"PRODUCT_NAME, default=SkillKenya"`
	PublicBaseURL string        `env:"PUBLIC_BASE_URL, default=http://localhost:5173"`
	CodeTTL       time.Duration `env:"VERIFICATION_CODE_TTL, default=10m"`

	RequestCodeLimit  int           `env:"REQUEST_CODE_RATE_LIMIT, default=10"`
	RequestCodeWindow time.Duration `env:"REQUEST_CODE_RATE_WINDOW, default=1m"`

	AdminPassword string `env:"ADMIN_PASSWORD"`
	SessionSecret string `env:"SESSION_SECRET"`
	SecureCookies bool   `env:"SESSION_SECURE_COOKIES"`

	MailProvider    string        `env:"MAIL_PROVIDER, default=smtp"`
	MailSendTimeout time.Duration `env:"MAIL_SEND_TIMEOUT, default=20s"`
	EmailFrom       string        `env:"EMAIL_FROM, default=noreply@localhost"`
	EmailFromName   string        `env:"EMAIL_FROM_NAME, default=SkillKenya"`
	SMTPHost        string        `env:"SMTP_HOST"`
	SMTPPort        int           `env:"SMTP_PORT, default=587"`
	SMTPSecure      bool          `env:"SMTP_SECURE, default=false"`
	SMTPUser        string        `env:"SMTP_USER"`
	SMTPPass        string        `env:"SMTP_PASS"`
	SMTPTimeout     time.Duration `env:"SMTP_TIMEOUT, default=15s"`
	ResendAPIKey    string        `env:"RESEND_API_KEY"`

	BreakerFailures int           `env:"MAIL_BREAKER_FAILURES, default=5"`
	BreakerCooldown time.Duration `env:"MAIL_BREAKER_COOLDOWN, default=30s"`

	GravatarBaseURL    string        `env:"GRAVATAR_BASE_URL, default=https://www.gravatar.com"`
	DicebearBaseURL    string        `env:"DICEBEAR_BASE_URL, default=https://api.dicebear.com"`
	AvatarProbeTimeout time.Duration `env:"AVATAR_PROBE_TIMEOUT, default=2s"`
	AvatarConcurrency  int           `env:"AVATAR_PROBE_CONCURRENCY, default=16"`
}

func LoadWaitlistConfig(ctx context.Context) (*WaitlistConfig, error) {
	return LoadWaitlistConfigWith(ctx, envconfig.OsLookuper())
}

// LoadWaitlistConfigWith reads from lookuper instead of the process environment.
func LoadWaitlistConfigWith(ctx context.Context, lookuper envconfig.Lookuper) (*WaitlistConfig, error) {
	var cfg WaitlistConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("load waitlist config: %w", err)
	}

	cfg.MailProvider = strings.ToLower(strings.TrimSpace(cfg.MailProvider))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *WaitlistConfig) Validate() error {
	var errs []error

	switch c.MailProvider {
	case MailProviderSMTP:
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			errs = append(errs, fmt.Errorf("SMTP_PORT %d out of range", c.SMTPPort))
		}
	case MailProviderResend:
		if c.ResendAPIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required when MAIL_PROVIDER=resend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported MAIL_PROVIDER %q (allowed: smtp, resend)", c.MailProvider))
	}

	if c.RequestCodeLimit <= 0 {
		errs = append(errs, errors.New("REQUEST_CODE_RATE_LIMIT must be positive"))
	}
	if c.CodeTTL <= 0 {
		errs = append(errs, errors.New("VERIFICATION_CODE_TTL must be positive"))
	}

	return errors.Join(errs...)
}

func (c *WaitlistConfig) NewTransport() notify.Transport {
	if c.MailProvider == MailProviderResend {
		return notify.NewResendTransport(c.ResendAPIKey)
	}
	return notify.NewSMTPTransport(notify.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Secure:   c.SMTPSecure,
		Username: c.SMTPUser,
		Password: c.SMTPPass,
		Timeout:  c.SMTPTimeout,
	})
}

// NewNotifier resolves the template registry, which fails startup on a broken template,
// and wires the mailer to its transport, breaker, EmailLog store and metrics.
func (c *WaitlistConfig) NewNotifier(db *gorm.DB, reg prometheus.Registerer, logger *log.Logger) (*notify.Mailer, *notify.Service, error) {
	registry, err := notify.NewRegistry()
	if err != nil {
		return nil, nil, fmt.Errorf("load email templates: %w", err)
	}

	transport := c.NewTransport()
	if c.MailProvider == MailProviderSMTP && c.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set; every email send will fail and be logged as FAILED")
	}

	breaker := circuitbreaker.NewCircuitBreaker(&circuitbreaker.Config{
		FailureThreshold: c.BreakerFailures,
		RecoveryTimeout:  c.BreakerCooldown,
		SuccessThreshold: 1,
		OnStateChange: func(from, to circuitbreaker.CircuitState) {
			logger.Warn("Mail transport circuit changed state", "transport", transport.Name(), "from", from.String(), "to", to.String())
		},
	})

	mailer := notify.NewMailer(notify.MailerConfig{
		Registry:    registry,
		Transport:   transport,
		Store:       notify.NewGormStore(db),
		Breaker:     breaker,
		Metrics:     notify.NewMetrics(reg),
		From:        c.EmailFrom,
		FromName:    c.EmailFromName,
		SendTimeout: c.MailSendTimeout,
		Logger:      logger,
	})

	service := notify.NewService(mailer, notify.ServiceConfig{
		ProductName: c.ProductName,
		BaseURL:     c.PublicBaseURL,
		CodeTTL:     c.CodeTTL,
	})

	logger.Info("Mailer configured", "transport", transport.Name(), "from", c.EmailFrom, "send_timeout", c.MailSendTimeout)
	return mailer, service, nil
}

func (c *WaitlistConfig) NewAvatarResolver(logger *log.Logger) *avatar.Resolver {
	return avatar.NewResolver(avatar.Config{
		GravatarBaseURL: c.GravatarBaseURL,
		DicebearBaseURL: c.DicebearBaseURL,
		ProbeTimeout:    c.AvatarProbeTimeout,
		Concurrency:     c.AvatarConcurrency,
	}, logger)
}

// NewSessionStore signs the admin cookie. Without SESSION_SECRET a random key is used,
// so admin sessions do not survive a restart.
func (c *WaitlistConfig) NewSessionStore(logger *log.Logger, production bool) (*sessions.CookieStore, error) {
	secret := []byte(c.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		logger.Warn("SESSION_SECRET not set; generated an ephemeral key")
	}

	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(constants.AdminSessionMaxAge / time.Second),
		HttpOnly: true,
		Secure:   production || c.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	}
	return store, nil
}
