package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/akeren/launch-waitlist/config/router"
	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/akeren/launch-waitlist/pkg/constants"
	"github.com/gorilla/sessions"
)

const authenticatedKey = "authenticated"

// Admin checks the shared-secret gesture sequence and manages the signed admin cookie.
type Admin struct {
	password string
	store    sessions.Store
	logger   *log.Logger
}

func NewAdmin(password string, store sessions.Store, logger *log.Logger) *Admin {
	return &Admin{password: password, store: store, logger: logger}
}

// Enabled is false when no ADMIN_PASSWORD is configured; every login then fails.
func (a *Admin) Enabled() bool {
	return a.password != ""
}

// Matches joins sequence with "+" and compares it against the configured password
// in constant time. Hashing first keeps the comparison independent of length.
func (a *Admin) Matches(sequence []string) bool {
	if !a.Enabled() {
		return false
	}
	submitted := sha256.Sum256([]byte(strings.Join(sequence, "+")))
	expected := sha256.Sum256([]byte(a.password))
	return subtle.ConstantTimeCompare(submitted[:], expected[:]) == 1
}

func (a *Admin) IsAuthenticated(r *http.Request) bool {
	session, err := a.store.Get(r, constants.AdminSessionName)
	if err != nil {
		return false
	}
	ok, _ := session.Values[authenticatedKey].(bool)
	return ok
}

func (a *Admin) Login(w http.ResponseWriter, r *http.Request) error {
	// Get returns a usable fresh session alongside a decode error for a tampered cookie.
	session, _ := a.store.Get(r, constants.AdminSessionName)
	session.Values[authenticatedKey] = true
	return session.Save(r, w)
}

func (a *Admin) Logout(w http.ResponseWriter, r *http.Request) error {
	session, _ := a.store.Get(r, constants.AdminSessionName)
	delete(session.Values, authenticatedKey)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// RequireAdmin rejects requests without a valid admin session.
func (a *Admin) RequireAdmin() router.MiddlewareFunc {
	return func(c *router.RequestContext) {
		if !a.IsAuthenticated(c.Request) {
			router.GetLogger(c).Warn("Admin endpoint called without a session", "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, router.UnauthorizedResult("Admin authentication required").ToJSON())
			return
		}
		c.Next()
	}
}
