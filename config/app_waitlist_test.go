package config

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/akeren/launch-waitlist/internal/notify"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromMap(t *testing.T, env map[string]string) (*WaitlistConfig, error) {
	t.Helper()
	return LoadWaitlistConfigWith(context.Background(), envconfig.MapLookuper(env))
}

func TestLoadWaitlistConfig_Defaults(t *testing.T) {
	cfg, err := loadFromMap(t, map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "SkillKenya", cfg.ProductName)
	assert.Equal(t, "http://localhost:5173", cfg.PublicBaseURL)
	assert.Equal(t, 10*time.Minute, cfg.CodeTTL)
	assert.Equal(t, 10, cfg.RequestCodeLimit)
	assert.Equal(t, time.Minute, cfg.RequestCodeWindow)
	assert.Equal(t, MailProviderSMTP, cfg.MailProvider)
	assert.Equal(t, 20*time.Second, cfg.MailSendTimeout)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.False(t, cfg.SMTPSecure)
	assert.Equal(t, 2*time.Second, cfg.AvatarProbeTimeout)
	assert.Equal(t, "https://www.gravatar.com", cfg.GravatarBaseURL)
}

func TestLoadWaitlistConfig_Overrides(t *testing.T) {
	cfg, err := loadFromMap(t, map[string]string{
		"PRODUCT_NAME":      "Acme",
		"SMTP_HOST":         "smtp.example.com",
		"SMTP_PORT":         "465",
		"SMTP_SECURE":       "true",
		"MAIL_SEND_TIMEOUT": "5s",
		"MAIL_PROVIDER":     " SMTP ",
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme", cfg.ProductName)
	assert.Equal(t, 465, cfg.SMTPPort)
	assert.True(t, cfg.SMTPSecure)
	assert.Equal(t, 5*time.Second, cfg.MailSendTimeout)
	assert.Equal(t, MailProviderSMTP, cfg.MailProvider)

	transport := cfg.NewTransport()
	assert.Equal(t, "smtp", transport.Name())
}

func TestLoadWaitlistConfig_ResendNeedsKey(t *testing.T) {
	_, err := loadFromMap(t, map[string]string{"MAIL_PROVIDER": "resend"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESEND_API_KEY")

	cfg, err := loadFromMap(t, map[string]string{"MAIL_PROVIDER": "resend", "RESEND_API_KEY": "re_test"})
	require.NoError(t, err)
	_, ok := cfg.NewTransport().(*notify.ResendTransport)
	assert.True(t, ok)
}

func TestLoadWaitlistConfig_RejectsUnknownProvider(t *testing.T) {
	_, err := loadFromMap(t, map[string]string{"MAIL_PROVIDER": "carrier-pigeon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported MAIL_PROVIDER")
}

func TestLoadWaitlistConfig_RejectsMalformedDuration(t *testing.T) {
	_, err := loadFromMap(t, map[string]string{"MAIL_SEND_TIMEOUT": "soon"})
	require.Error(t, err)
}

func TestNewSessionStore_CookieOptions(t *testing.T) {
	cfg, err := loadFromMap(t, map[string]string{"SESSION_SECRET": "0123456789abcdef0123456789abcdef"})
	require.NoError(t, err)

	store, err := cfg.NewSessionStore(log.NewDiscardLogger(), true)
	require.NoError(t, err)

	assert.True(t, store.Options.HttpOnly)
	assert.True(t, store.Options.Secure)
	assert.Equal(t, http.SameSiteStrictMode, store.Options.SameSite)
	assert.Equal(t, 24*60*60, store.Options.MaxAge)
	assert.Equal(t, "/", store.Options.Path)
}

func TestNewSessionStore_GeneratesSecretWhenMissing(t *testing.T) {
	cfg, err := loadFromMap(t, map[string]string{})
	require.NoError(t, err)

	store, err := cfg.NewSessionStore(log.NewDiscardLogger(), false)
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.False(t, store.Options.Secure)
}

func TestNewAvatarResolver_UsesConfiguredBases(t *testing.T) {
	cfg, err := loadFromMap(t, map[string]string{"DICEBEAR_BASE_URL": "https://dice.test/"})
	require.NoError(t, err)

	r := cfg.NewAvatarResolver(log.NewDiscardLogger())
	assert.Equal(t,
		"https://dice.test/9.x/avataaars/svg?seed=a%40b.com&backgroundColor=transparent",
		r.FallbackURL("a@b.com"),
	)
}
