package waitlist

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akeren/launch-waitlist/config/router"
	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/akeren/launch-waitlist/pkg/factory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const entryID = "5f0c8a53-7a3e-4b9f-9a57-0e0b8f4a2c11"

// headerGuard admits requests carrying X-Test-Admin.
type headerGuard struct{}

func (headerGuard) RequireAdmin() router.MiddlewareFunc {
	return func(c *router.RequestContext) {
		if c.GetHeader("X-Test-Admin") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, router.UnauthorizedResult("Admin authentication required").ToJSON())
			return
		}
		c.Next()
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newControllerFixture(t *testing.T, cfg ControllerConfig) (*router.RouterService, *MockWaitlistService) {
	t.Helper()

	ctrl := gomock.NewController(t)
	service := NewMockWaitlistService(ctrl)

	logger := log.NewDiscardLogger()
	rs := router.CreateRouterService(logger, nil, &router.RouterConfig{
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    5 * time.Second,
	})
	t.Cleanup(rs.Cleanup)

	rs.MountController(NewWaitlistController(service, headerGuard{}, factory.NewRateLimiterFactory(nil, logger), cfg))
	return rs, service
}

func call(t *testing.T, rs *router.RouterService, method, path, body string, admin bool) (int, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Test-Admin", "1")
	}
	w := httptest.NewRecorder()
	rs.GetEngine().ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestRequestCodeHandler(t *testing.T) {
	rs, service := newControllerFixture(t, ControllerConfig{})

	service.EXPECT().RequestCode(gomock.Any(), "Foo@Example.com ").Return(nil)
	code, env := call(t, rs, http.MethodPost, "/api/waitlist/request-code", `{"email":"Foo@Example.com "}`, false)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Verification code sent to your email", env.Message)

	service.EXPECT().RequestCode(gomock.Any(), "done@example.com").Return(alreadyVerified("This email is already on the waitlist"))
	code, env = call(t, rs, http.MethodPost, "/api/waitlist/request-code", `{"email":"done@example.com"}`, false)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "This email is already on the waitlist", env.Message)

	service.EXPECT().RequestCode(gomock.Any(), "down@example.com").Return(deliveryFailed("smtp down"))
	code, env = call(t, rs, http.MethodPost, "/api/waitlist/request-code", `{"email":"down@example.com"}`, false)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.NotContains(t, env.Message, "smtp")

	code, _ = call(t, rs, http.MethodPost, "/api/waitlist/request-code", `{}`, false)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRequestCodeHandler_RateLimited(t *testing.T) {
	rs, service := newControllerFixture(t, ControllerConfig{RequestCodeLimit: 2, RequestCodeWindow: time.Minute})

	service.EXPECT().RequestCode(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	for i := 0; i < 2; i++ {
		code, _ := call(t, rs, http.MethodPost, "/api/waitlist/request-code", `{"email":"a@example.com"}`, false)
		require.Equal(t, http.StatusOK, code)
	}

	code, _ := call(t, rs, http.MethodPost, "/api/waitlist/request-code", `{"email":"a@example.com"}`, false)
	assert.Equal(t, http.StatusTooManyRequests, code)

	// verify shares nothing with the request-code bucket.
	service.EXPECT().VerifyCode(gomock.Any(), gomock.Any()).Return(nil, invalidCode())
	code, _ = call(t, rs, http.MethodPost, "/api/waitlist/verify", `{"email":"a@example.com","code":"000000"}`, false)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestVerifyCodeHandler(t *testing.T) {
	rs, service := newControllerFixture(t, ControllerConfig{})

	service.EXPECT().VerifyCode(gomock.Any(), &VerifyCodeRequest{Email: "foo@example.com", Code: "123456", Name: "Ada"}).
		Return(&WaitlistEntryResponse{ID: entryID, Email: "foo@example.com", Verified: true}, nil)

	code, env := call(t, rs, http.MethodPost, "/api/waitlist/verify", `{"email":"foo@example.com","code":"123456","name":"Ada"}`, false)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Successfully joined the waitlist!", env.Message)

	var data EntryEnvelope
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, entryID, data.Entry.ID)
	assert.True(t, data.Entry.Verified)

	service.EXPECT().VerifyCode(gomock.Any(), gomock.Any()).
		Return(nil, entryNotFound("No verification code found for this email. Please request a new code."))
	code, _ = call(t, rs, http.MethodPost, "/api/waitlist/verify", `{"email":"x@example.com","code":"123456"}`, false)
	assert.Equal(t, http.StatusNotFound, code)

	service.EXPECT().VerifyCode(gomock.Any(), gomock.Any()).Return(nil, codeExpired())
	code, _ = call(t, rs, http.MethodPost, "/api/waitlist/verify", `{"email":"x@example.com","code":"123456"}`, false)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = call(t, rs, http.MethodPost, "/api/waitlist/verify", `{"email":"x@example.com","code":"12345"}`, false)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), `"field":"code"`)
}

func TestAdminRoutesRequireSession(t *testing.T) {
	rs, _ := newControllerFixture(t, ControllerConfig{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/waitlist"},
		{http.MethodGet, "/api/waitlist/stats"},
		{http.MethodPatch, "/api/waitlist/" + entryID},
		{http.MethodDelete, "/api/waitlist/" + entryID},
	} {
		code, _ := call(t, rs, tc.method, tc.path, `{}`, false)
		assert.Equal(t, http.StatusUnauthorized, code, tc.method+" "+tc.path)
	}
}

func TestListEntriesHandler(t *testing.T) {
	rs, service := newControllerFixture(t, ControllerConfig{})

	og := false
	service.EXPECT().ListEntries(gomock.Any(), ListQuery{Page: 2, Limit: 10, IsOG: &og}).
		Return(&ListEntriesResponse{
			Entries:    []WaitlistEntryResponse{},
			Pagination: Pagination{Page: 2, Limit: 10, Total: 25, Pages: 3},
		}, nil)

	code, env := call(t, rs, http.MethodGet, "/api/waitlist?page=2&limit=10&isOG=false", "", true)
	require.Equal(t, http.StatusOK, code)

	var data ListEntriesResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, int64(3), data.Pagination.Pages)

	service.EXPECT().ListEntries(gomock.Any(), ListQuery{Page: 1, Limit: 50}).
		Return(&ListEntriesResponse{Entries: []WaitlistEntryResponse{}}, nil)
	code, _ = call(t, rs, http.MethodGet, "/api/waitlist?page=abc&limit=-4", "", true)
	assert.Equal(t, http.StatusOK, code)

	code, env = call(t, rs, http.MethodGet, "/api/waitlist?verified=maybe", "", true)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), `"field":"verified"`)
}

func TestStatsHandler(t *testing.T) {
	rs, service := newControllerFixture(t, ControllerConfig{})

	service.EXPECT().GetStats(gomock.Any()).Return(&StatsResponse{Total: 4, Verified: 3, Pending: 1}, nil)

	code, env := call(t, rs, http.MethodGet, "/api/waitlist/stats", "", true)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"total":4,"verified":3,"ogCount":0,"recentWeek":0,"pending":1}`, string(env.Data))
}

func TestUpdateEntryHandler(t *testing.T) {
	rs, service := newControllerFixture(t, ControllerConfig{})

	service.EXPECT().UpdateEntry(gomock.Any(), entryID, &UpdateEntryRequest{IsOG: boolPtr(true)}).
		Return(&WaitlistEntryResponse{ID: entryID, IsOG: true}, nil)
	code, _ := call(t, rs, http.MethodPatch, "/api/waitlist/"+entryID, `{"isOG":true}`, true)
	assert.Equal(t, http.StatusOK, code)

	code, env := call(t, rs, http.MethodPatch, "/api/waitlist/"+entryID, `{"email":"hijack@example.com"}`, true)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), `"field":"email"`)

	code, _ = call(t, rs, http.MethodPatch, "/api/waitlist/"+entryID, `{"verified":"yes"}`, true)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, rs, http.MethodPatch, "/api/waitlist/"+entryID, `{"isOG":true}{"isOG":false}`, true)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, rs, http.MethodPatch, "/api/waitlist/not-a-uuid", `{"isOG":true}`, true)
	assert.Equal(t, http.StatusBadRequest, code)

	service.EXPECT().UpdateEntry(gomock.Any(), entryID, gomock.Any()).Return(nil, entryNotFound("waitlist entry not found"))
	code, _ = call(t, rs, http.MethodPatch, "/api/waitlist/"+entryID, `{"verified":false}`, true)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDeleteEntryHandler(t *testing.T) {
	rs, service := newControllerFixture(t, ControllerConfig{})

	service.EXPECT().DeleteEntry(gomock.Any(), entryID).Return(nil)
	code, env := call(t, rs, http.MethodDelete, "/api/waitlist/"+entryID, "", true)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Waitlist entry deleted", env.Message)

	service.EXPECT().DeleteEntry(gomock.Any(), entryID).Return(entryNotFound("waitlist entry not found"))
	code, _ = call(t, rs, http.MethodDelete, "/api/waitlist/"+entryID, "", true)
	assert.Equal(t, http.StatusNotFound, code)
}
