package waitlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/akeren/launch-waitlist/internal/models"
	"github.com/akeren/launch-waitlist/internal/notify"
	apperrors "github.com/akeren/launch-waitlist/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

type serviceFixture struct {
	repo     *MockWaitlistRepository
	notifier *MockNotifier
	service  WaitlistService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	ctrl := gomock.NewController(t)

	repo := NewMockWaitlistRepository(ctrl)
	notifier := NewMockNotifier(ctrl)
	service := NewWaitlistService(
		log.NewDiscardLogger(),
		repo,
		notifier,
		WithClock(func() time.Time { return fixedNow }),
		WithCodeGenerator(func() (string, error) { return "123456", nil }),
		WithCodeTTL(10*time.Minute),
	)

	return &serviceFixture{repo: repo, notifier: notifier, service: service}
}

func TestWaitlistService_RequestCode(t *testing.T) {
	ctx := context.Background()
	expiry := fixedNow.Add(10 * time.Minute)

	t.Run("creates a pending entry for a new email", func(t *testing.T) {
		f := newServiceFixture(t)

		f.repo.EXPECT().FindByEmail(gomock.Any(), "foo@example.com").
			Return(nil, entryNotFound("waitlist entry not found"))
		f.repo.EXPECT().CreatePending(gomock.Any(), "foo@example.com", "123456", expiry).
			Return(&models.WaitlistEntry{ID: "entry-1", Email: "foo@example.com"}, nil)
		f.notifier.EXPECT().SendVerificationCode(gomock.Any(), "entry-1", "foo@example.com", "123456").
			Return(notify.SendResult{Success: true, MessageID: "msg-1"})

		err := f.service.RequestCode(ctx, "  Foo@Example.com ")
		assert.NoError(t, err)
	})

	t.Run("overwrites the code of an unverified entry", func(t *testing.T) {
		f := newServiceFixture(t)

		old := "999999"
		f.repo.EXPECT().FindByEmail(gomock.Any(), "foo@example.com").
			Return(&models.WaitlistEntry{ID: "entry-1", Email: "foo@example.com", VerificationCode: &old}, nil)
		f.repo.EXPECT().SetVerificationCode(gomock.Any(), "entry-1", "123456", expiry).Return(nil)
		f.notifier.EXPECT().SendVerificationCode(gomock.Any(), "entry-1", "foo@example.com", "123456").
			Return(notify.SendResult{Success: true})

		assert.NoError(t, f.service.RequestCode(ctx, "foo@example.com"))
	})

	t.Run("rejects an already verified email", func(t *testing.T) {
		f := newServiceFixture(t)

		f.repo.EXPECT().FindByEmail(gomock.Any(), "foo@example.com").
			Return(&models.WaitlistEntry{ID: "entry-1", Email: "foo@example.com", Verified: true}, nil)

		err := f.service.RequestCode(ctx, "foo@example.com")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAlreadyVerified)
		assert.Equal(t, 400, apperrors.HTTPStatusCode(err))
	})

	t.Run("rejects an invalid email without touching the store", func(t *testing.T) {
		f := newServiceFixture(t)

		for _, email := range []string{"", "   ", "not-an-email"} {
			err := f.service.RequestCode(ctx, email)
			assert.ErrorIs(t, err, ErrInvalidEmail, email)
		}
	})

	t.Run("send failure keeps the stored code and reports delivery failure", func(t *testing.T) {
		f := newServiceFixture(t)

		f.repo.EXPECT().FindByEmail(gomock.Any(), "foo@example.com").
			Return(nil, entryNotFound("waitlist entry not found"))
		f.repo.EXPECT().CreatePending(gomock.Any(), "foo@example.com", "123456", expiry).
			Return(&models.WaitlistEntry{ID: "entry-1"}, nil)
		f.notifier.EXPECT().SendVerificationCode(gomock.Any(), "entry-1", "foo@example.com", "123456").
			Return(notify.SendResult{Success: false, Error: "smtp: connection refused"})

		err := f.service.RequestCode(ctx, "foo@example.com")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmailDeliveryFailed)
		assert.Equal(t, 500, apperrors.HTTPStatusCode(err))
		assert.Equal(t, "Failed to send verification email. Please try again.", apperrors.GetHumanReadableMessage(err))
	})

	t.Run("concurrent create falls back to overwriting the raced row", func(t *testing.T) {
		f := newServiceFixture(t)

		gomock.InOrder(
			f.repo.EXPECT().FindByEmail(gomock.Any(), "foo@example.com").
				Return(nil, entryNotFound("waitlist entry not found")),
			f.repo.EXPECT().CreatePending(gomock.Any(), "foo@example.com", "123456", expiry).
				Return(nil, apperrors.NewConflictError("exists", errors.New("UNIQUE constraint failed"))),
			f.repo.EXPECT().FindByEmail(gomock.Any(), "foo@example.com").
				Return(&models.WaitlistEntry{ID: "entry-2", Email: "foo@example.com"}, nil),
			f.repo.EXPECT().SetVerificationCode(gomock.Any(), "entry-2", "123456", expiry).Return(nil),
		)
		f.notifier.EXPECT().SendVerificationCode(gomock.Any(), "entry-2", "foo@example.com", "123456").
			Return(notify.SendResult{Success: true})

		assert.NoError(t, f.service.RequestCode(ctx, "foo@example.com"))
	})

	t.Run("code generation failure is internal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := NewMockWaitlistRepository(ctrl)
		service := NewWaitlistService(log.NewDiscardLogger(), repo, NewMockNotifier(ctrl),
			WithCodeGenerator(func() (string, error) { return "", errors.New("entropy exhausted") }))

		repo.EXPECT().FindByEmail(gomock.Any(), "foo@example.com").
			Return(nil, entryNotFound("waitlist entry not found"))

		err := service.RequestCode(ctx, "foo@example.com")
		assert.Equal(t, 500, apperrors.HTTPStatusCode(err))
	})
}

func pendingEntry(code string, expiry time.Time) *models.WaitlistEntry {
	return &models.WaitlistEntry{
		ID:                     "entry-1",
		Email:                  "foo@example.com",
		VerificationCode:       &code,
		VerificationCodeExpiry: &expiry,
		Source:                 "website",
	}
}

func TestWaitlistService_VerifyCode(t *testing.T) {
	ctx := context.Background()

	t.Run("verifies, merges the name and sends one welcome email", func(t *testing.T) {
		f := newServiceFixture(t)

		f.repo.EXPECT().FindByEmail(gomock.Any(), "foo@example.com").
			Return(pendingEntry("123456", fixedNow.Add(time.Minute)), nil)
		f.repo.EXPECT().MarkVerified(gomock.Any(), "entry-1", strPtr("Ada"), nil).
			Return(&models.WaitlistEntry{ID: "entry-1", Email: "foo@example.com", Name: strPtr("Ada"), Verified: true}, nil)
		f.notifier.EXPECT().SendWelcome(gomock.Any(), "entry-1", "foo@example.com", "Ada").
			Return(notify.SendResult{Success: true}).Times(1)

		resp, err := f.service.VerifyCode(ctx, &VerifyCodeRequest{Email: "Foo@Example.com ", Code: "123456", Name: " Ada "})
		require.NoError(t, err)
		assert.True(t, resp.Verified)
		assert.Equal(t, "foo@example.com", resp.Email)
		require.NotNil(t, resp.Name)
		assert.Equal(t, "Ada", *resp.Name)
	})

	t.Run("welcome failure does not undo verification", func(t *testing.T) {
		f := newServiceFixture(t)

		f.repo.EXPECT().FindByEmail(gomock.Any(), "foo@example.com").
			Return(pendingEntry("123456", fixedNow.Add(time.Minute)), nil)
		f.repo.EXPECT().MarkVerified(gomock.Any(), "entry-1", nil, nil).
			Return(&models.WaitlistEntry{ID: "entry-1", Email: "foo@example.com", Verified: true}, nil)
		f.notifier.EXPECT().SendWelcome(gomock.Any(), "entry-1", "foo@example.com", "").
			Return(notify.SendResult{Success: false, Error: "timeout"})

		resp, err := f.service.VerifyCode(ctx, &VerifyCodeRequest{Email: "foo@example.com", Code: "123456"})
		require.NoError(t, err)
		assert.True(t, resp.Verified)
	})

	t.Run("unknown email is not found", func(t *testing.T) {
		f := newServiceFixture(t)

		f.repo.EXPECT().FindByEmail(gomock.Any(), "foo@example.com").
			Return(nil, entryNotFound("waitlist entry not found"))

		_, err := f.service.VerifyCode(ctx, &VerifyCodeRequest{Email: "foo@example.com", Code: "123456"})
		assert.ErrorIs(t, err, ErrEntryNotFound)
		assert.Equal(t, 404, apperrors.HTTPStatusCode(err))
	})

	t.Run("already verified wins over code correctness", func(t *testing.T) {
		f := newServiceFixture(t)

		f.repo.EXPECT().FindByEmail(gomock.Any(), "foo@example.com").
			Return(&models.WaitlistEntry{ID: "entry-1", Email: "foo@example.com", Verified: true}, nil).Times(2)

		for _, code := range []string{"123456", "000000"} {
			_, err := f.service.VerifyCode(ctx, &VerifyCodeRequest{Email: "foo@example.com", Code: code})
			assert.ErrorIs(t, err, ErrAlreadyVerified)
		}
	})

	t.Run("wrong code leaves state unchanged", func(t *testing.T) {
		f := newServiceFixture(t)

		f.repo.EXPECT().FindByEmail(gomock.Any(), "foo@example.com").
			Return(pendingEntry("123456", fixedNow.Add(time.Minute)), nil)

		_, err := f.service.VerifyCode(ctx, &VerifyCodeRequest{Email: "foo@example.com", Code: "654321"})
		assert.ErrorIs(t, err, ErrInvalidCode)
		assert.Equal(t, 400, apperrors.HTTPStatusCode(err))
	})

	t.Run("submitted code is not normalized", func(t *testing.T) {
		f := newServiceFixture(t)

		f.repo.EXPECT().FindByEmail(gomock.Any(), "foo@example.com").
			Return(pendingEntry("123456", fixedNow.Add(time.Minute)), nil)

		_, err := f.service.VerifyCode(ctx, &VerifyCodeRequest{Email: "foo@example.com", Code: " 12345"})
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("expired code is rejected", func(t *testing.T) {
		f := newServiceFixture(t)

		f.repo.EXPECT().FindByEmail(gomock.Any(), "foo@example.com").
			Return(pendingEntry("123456", fixedNow.Add(-time.Second)), nil)

		_, err := f.service.VerifyCode(ctx, &VerifyCodeRequest{Email: "foo@example.com", Code: "123456"})
		assert.ErrorIs(t, err, ErrCodeExpired)
		assert.Equal(t, "Verification code has expired. Please request a new code.", apperrors.GetHumanReadableMessage(err))
	})

	t.Run("entry without a code never matches", func(t *testing.T) {
		f := newServiceFixture(t)

		f.repo.EXPECT().FindByEmail(gomock.Any(), "foo@example.com").
			Return(&models.WaitlistEntry{ID: "entry-1", Email: "foo@example.com"}, nil)

		_, err := f.service.VerifyCode(ctx, &VerifyCodeRequest{Email: "foo@example.com", Code: "123456"})
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("nil request", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.service.VerifyCode(ctx, nil)
		assert.Equal(t, 400, apperrors.HTTPStatusCode(err))
	})
}

func TestWaitlistService_ListEntries(t *testing.T) {
	f := newServiceFixture(t)

	verified := true
	f.repo.EXPECT().ListEntries(gomock.Any(), ListQuery{Page: 2, Limit: 10, Verified: &verified}).
		Return([]*models.WaitlistEntry{{ID: "a", CreatedAt: fixedNow}, {ID: "b", CreatedAt: fixedNow}}, int64(25), nil)

	resp, err := f.service.ListEntries(context.Background(), ListQuery{Page: 2, Limit: 10, Verified: &verified})
	require.NoError(t, err)
	assert.Len(t, resp.Entries, 2)
	assert.Equal(t, Pagination{Page: 2, Limit: 10, Total: 25, Pages: 3}, resp.Pagination)
	assert.Equal(t, "2026-03-14T12:00:00Z", resp.Entries[0].CreatedAt)
}

func TestWaitlistService_ListEntries_NormalizesQuery(t *testing.T) {
	f := newServiceFixture(t)

	f.repo.EXPECT().ListEntries(gomock.Any(), ListQuery{Page: 1, Limit: 500}).
		Return(nil, int64(0), nil)

	resp, err := f.service.ListEntries(context.Background(), ListQuery{Page: -3, Limit: 10000})
	require.NoError(t, err)
	assert.NotNil(t, resp.Entries)
	assert.Equal(t, int64(0), resp.Pagination.Pages)
}

func TestWaitlistService_GetStats(t *testing.T) {
	f := newServiceFixture(t)

	stats := &StatsResponse{Total: 10, Verified: 6, OGCount: 2, RecentWeek: 3, Pending: 4}
	f.repo.EXPECT().Stats(gomock.Any(), fixedNow.Add(-7*24*time.Hour)).Return(stats, nil)

	got, err := f.service.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stats, got)
}

func TestWaitlistService_UpdateEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("empty patch is rejected", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.service.UpdateEntry(ctx, "entry-1", &UpdateEntryRequest{})
		assert.ErrorIs(t, err, ErrEmptyPatch)
		assert.Equal(t, 400, apperrors.HTTPStatusCode(err))
	})

	t.Run("verifying clears the pending code and blank name becomes null", func(t *testing.T) {
		f := newServiceFixture(t)

		f.repo.EXPECT().UpdateEntry(gomock.Any(), "entry-1", map[string]any{
			"name":                     (*string)(nil),
			"is_og":                    true,
			"verified":                 true,
			"verification_code":        nil,
			"verification_code_expiry": nil,
		}).Return(&models.WaitlistEntry{ID: "entry-1", IsOG: true, Verified: true}, nil)

		resp, err := f.service.UpdateEntry(ctx, "entry-1", &UpdateEntryRequest{
			Name:     strPtr("   "),
			IsOG:     boolPtr(true),
			Verified: boolPtr(true),
		})
		require.NoError(t, err)
		assert.True(t, resp.IsOG)
		assert.Nil(t, resp.Name)
	})

	t.Run("not found propagates", func(t *testing.T) {
		f := newServiceFixture(t)

		f.repo.EXPECT().UpdateEntry(gomock.Any(), "missing", gomock.Any()).
			Return(nil, entryNotFound("waitlist entry not found"))

		_, err := f.service.UpdateEntry(ctx, "missing", &UpdateEntryRequest{Verified: boolPtr(false)})
		assert.Equal(t, 404, apperrors.HTTPStatusCode(err))
	})
}

func TestWaitlistService_DeleteEntry(t *testing.T) {
	f := newServiceFixture(t)

	f.repo.EXPECT().DeleteEntry(gomock.Any(), "entry-1").Return(nil)
	f.repo.EXPECT().DeleteEntry(gomock.Any(), "entry-2").Return(entryNotFound("waitlist entry not found"))

	assert.NoError(t, f.service.DeleteEntry(context.Background(), "entry-1"))
	assert.ErrorIs(t, f.service.DeleteEntry(context.Background(), "entry-2"), ErrEntryNotFound)
}
