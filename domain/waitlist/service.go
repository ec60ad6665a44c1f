package waitlist

import (
	"context"
	"errors"
	"time"

	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/akeren/launch-waitlist/internal/models"
	"github.com/akeren/launch-waitlist/internal/notify"
	"github.com/akeren/launch-waitlist/pkg/constants"
	apperrors "github.com/akeren/launch-waitlist/pkg/errors"
	"github.com/akeren/launch-waitlist/pkg/utils"
	"github.com/go-playground/validator/v10"
)

//go:generate mockgen -source=service.go -destination=mock_service.go -package=waitlist

// Notifier sends the two waitlist emails. Failures come back in the result, never as errors.
type Notifier interface {
	SendVerificationCode(ctx context.Context, entryID, email, code string) notify.SendResult
	SendWelcome(ctx context.Context, entryID, email, name string) notify.SendResult
}

type WaitlistService interface {
	// RequestCode issues a fresh verification code for email and mails it.
	RequestCode(ctx context.Context, email string) error

	// VerifyCode consumes the pending code and admits the entry to the waitlist.
	VerifyCode(ctx context.Context, req *VerifyCodeRequest) (*WaitlistEntryResponse, error)

	// ListEntries returns one filtered page of entries, newest first.
	ListEntries(ctx context.Context, query ListQuery) (*ListEntriesResponse, error)

	// GetStats summarizes the waitlist.
	GetStats(ctx context.Context) (*StatsResponse, error)

	// UpdateEntry applies an admin patch.
	UpdateEntry(ctx context.Context, id string, req *UpdateEntryRequest) (*WaitlistEntryResponse, error)

	// DeleteEntry removes an entry permanently.
	DeleteEntry(ctx context.Context, id string) error
}

type ServiceOption func(*waitlistService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *waitlistService) { s.now = now }
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(gen CodeGenerator) ServiceOption {
	return func(s *waitlistService) { s.generateCode = gen }
}

// WithCodeTTL changes how long a code stays valid.
func WithCodeTTL(ttl time.Duration) ServiceOption {
	return func(s *waitlistService) {
		if ttl > 0 {
			s.codeTTL = ttl
		}
	}
}

type waitlistService struct {
	logger       *log.Logger
	repository   WaitlistRepository
	notifier     Notifier
	validate     *validator.Validate
	generateCode CodeGenerator
	codeTTL      time.Duration
	now          func() time.Time
}

func NewWaitlistService(logger *log.Logger, repository WaitlistRepository, notifier Notifier, opts ...ServiceOption) WaitlistService {
	s := &waitlistService{
		logger:       logger,
		repository:   repository,
		notifier:     notifier,
		validate:     validator.New(),
		generateCode: GenerateVerificationCode,
		codeTTL:      constants.VerificationCodeTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *waitlistService) normalizeEmail(raw string) (string, error) {
	email := utils.NormalizeEmail(raw)
	if email == "" || s.validate.Var(email, "required,email,max=255") != nil {
		return "", invalidEmail()
	}
	return email, nil
}

func (s *waitlistService) RequestCode(ctx context.Context, rawEmail string) error {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	email, err := s.normalizeEmail(rawEmail)
	if err != nil {
		logger.Warn("RequestCode received invalid email")
		return err
	}

	existing, err := s.repository.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrEntryNotFound) {
		logger.Error("Failed to look up waitlist entry", "error", err)
		return err
	}

	if existing != nil && existing.Verified {
		logger.Info("Email is already verified and on the waitlist")
		return alreadyVerified("This email is already on the waitlist")
	}

	code, err := s.generateCode()
	if err != nil {
		logger.Error("Failed to generate verification code", "error", err)
		return apperrors.NewInternalServerError("An error occurred. Please try again.", err)
	}
	expiry := s.now().Add(s.codeTTL)

	entryID, err := s.storeCode(ctx, existing, email, code, expiry)
	if err != nil {
		logger.Error("Failed to store verification code", "error", err)
		return err
	}

	result := s.notifier.SendVerificationCode(ctx, entryID, email, code)
	if !result.Success {
		// The stored code stays valid; the client can simply ask again.
		logger.Error("Verification email was not delivered", "entry_id", entryID, "error", result.Error)
		return deliveryFailed(result.Error)
	}

	logger.Info("Verification code sent", "entry_id", entryID, "message_id", result.MessageID)
	return nil
}

// storeCode creates the pending entry or overwrites the code of an unverified one.
func (s *waitlistService) storeCode(ctx context.Context, existing *models.WaitlistEntry, email, code string, expiry time.Time) (string, error) {
	if existing != nil {
		return existing.ID, s.repository.SetVerificationCode(ctx, existing.ID, code, expiry)
	}

	created, err := s.repository.CreatePending(ctx, email, code, expiry)
	if err == nil {
		return created.ID, nil
	}
	if !apperrors.IsDuplicateKeyError(err) {
		return "", err
	}

	// A concurrent request created the row first; overwrite its code instead.
	raced, findErr := s.repository.FindByEmail(ctx, email)
	if findErr != nil {
		return "", findErr
	}
	if raced.Verified {
		return "", alreadyVerified("This email is already on the waitlist")
	}
	return raced.ID, s.repository.SetVerificationCode(ctx, raced.ID, code, expiry)
}

func (s *waitlistService) VerifyCode(ctx context.Context, req *VerifyCodeRequest) (*WaitlistEntryResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	if req == nil {
		logger.Error("VerifyCode received empty request")
		return nil, apperrors.NewInvalidRequestError("request cannot be nil", nil)
	}

	email, err := s.normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	entry, err := s.repository.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, entryNotFound("No verification code found for this email. Please request a new code.")
		}
		logger.Error("Failed to look up waitlist entry", "error", err)
		return nil, err
	}

	if entry.Verified {
		return nil, alreadyVerified("This email is already verified and on the waitlist")
	}

	if entry.VerificationCode == nil || *entry.VerificationCode != req.Code {
		logger.Info("Verification code mismatch", "entry_id", entry.ID)
		return nil, invalidCode()
	}

	if entry.VerificationCodeExpiry != nil && entry.VerificationCodeExpiry.Before(s.now()) {
		logger.Info("Verification code expired", "entry_id", entry.ID)
		return nil, codeExpired()
	}

	verified, err := s.repository.MarkVerified(ctx, entry.ID, optionalText(req.Name), optionalText(req.Phone))
	if err != nil {
		logger.Error("Failed to mark waitlist entry verified", "entry_id", entry.ID, "error", err)
		return nil, err
	}

	welcome := s.notifier.SendWelcome(ctx, verified.ID, verified.Email, verified.DisplayName(""))
	if !welcome.Success {
		logger.Warn("Welcome email was not delivered; entry stays verified", "entry_id", verified.ID, "error", welcome.Error)
	}

	logger.Info("Waitlist entry verified", "entry_id", verified.ID)
	response := ToWaitlistEntryResponse(verified)
	return &response, nil
}

func (s *waitlistService) ListEntries(ctx context.Context, query ListQuery) (*ListEntriesResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	query = query.normalized()
	entries, total, err := s.repository.ListEntries(ctx, query)
	if err != nil {
		logger.Error("Failed to list waitlist entries", "error", err)
		return nil, err
	}

	responses := make([]WaitlistEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, ToWaitlistEntryResponse(entry))
	}

	return &ListEntriesResponse{
		Entries: responses,
		Pagination: Pagination{
			Page:  query.Page,
			Limit: query.Limit,
			Total: total,
			Pages: pagesFor(total, query.Limit),
		},
	}, nil
}

func (s *waitlistService) GetStats(ctx context.Context) (*StatsResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	stats, err := s.repository.Stats(ctx, s.now().Add(-7*24*time.Hour))
	if err != nil {
		logger.Error("Failed to compute waitlist stats", "error", err)
		return nil, err
	}
	return stats, nil
}

func (s *waitlistService) UpdateEntry(ctx context.Context, id string, req *UpdateEntryRequest) (*WaitlistEntryResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	if req == nil || req.IsEmpty() {
		logger.Warn("UpdateEntry received request with no fields to update", "entry_id", id)
		return nil, apperrors.NewInvalidRequestError("at least one field must be provided for update", ErrEmptyPatch)
	}

	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = optionalText(*req.Name)
	}
	if req.Phone != nil {
		updates["phone"] = optionalText(*req.Phone)
	}
	if req.IsOG != nil {
		updates["is_og"] = *req.IsOG
	}
	if req.Verified != nil {
		updates["verified"] = *req.Verified
		if *req.Verified {
			updates["verification_code"] = nil
			updates["verification_code_expiry"] = nil
		}
	}

	entry, err := s.repository.UpdateEntry(ctx, id, updates)
	if err != nil {
		logger.Error("Failed to update waitlist entry", "entry_id", id, "error", err)
		return nil, err
	}

	response := ToWaitlistEntryResponse(entry)
	return &response, nil
}

func (s *waitlistService) DeleteEntry(ctx context.Context, id string) error {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	if err := s.repository.DeleteEntry(ctx, id); err != nil {
		logger.Error("Failed to delete waitlist entry", "entry_id", id, "error", err)
		return err
	}

	logger.Info("Waitlist entry deleted", "entry_id", id)
	return nil
}
