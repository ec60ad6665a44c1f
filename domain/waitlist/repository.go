package waitlist

import (
	"context"
	"errors"
	"time"

	"github.com/akeren/launch-waitlist/internal/models"
	"github.com/akeren/launch-waitlist/pkg/constants"
	apperrors "github.com/akeren/launch-waitlist/pkg/errors"
	"gorm.io/gorm"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=waitlist

type WaitlistRepository interface {
	// FindByEmail looks up an entry by its normalized email.
	FindByEmail(ctx context.Context, email string) (*models.WaitlistEntry, error)
	// FindByID retrieves an entry by its UUID.
	FindByID(ctx context.Context, id string) (*models.WaitlistEntry, error)
	// CreatePending inserts an unverified entry carrying a verification code.
	CreatePending(ctx context.Context, email, code string, expiry time.Time) (*models.WaitlistEntry, error)
	// SetVerificationCode replaces the pending code of an existing entry and touches nothing else.
	SetVerificationCode(ctx context.Context, id, code string, expiry time.Time) error
	// MarkVerified flips an unverified entry to verified, clears its code and merges non-nil profile fields.
	MarkVerified(ctx context.Context, id string, name, phone *string) (*models.WaitlistEntry, error)
	// UpdateEntry applies column updates and returns the fresh row.
	UpdateEntry(ctx context.Context, id string, updates map[string]any) (*models.WaitlistEntry, error)
	// DeleteEntry hard deletes an entry.
	DeleteEntry(ctx context.Context, id string) error
	// ListEntries returns one page of entries plus the filtered total.
	ListEntries(ctx context.Context, query ListQuery) ([]*models.WaitlistEntry, int64, error)
	// Stats counts entries for the admin dashboard.
	Stats(ctx context.Context, since time.Time) (*StatsResponse, error)
	// UpsertOG marks email as a verified OG member, creating it when absent.
	UpsertOG(ctx context.Context, email string, name, phone *string) (created bool, err error)
	// CountOG counts OG members.
	CountOG(ctx context.Context) (int64, error)
}

type waitlistRepository struct {
	db *gorm.DB
}

func NewWaitlistRepository(db *gorm.DB) WaitlistRepository {
	return &waitlistRepository{db: db}
}

func (wr *waitlistRepository) FindByEmail(ctx context.Context, email string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry

	if err := wr.db.WithContext(ctx).Where("email = ?", email).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entryNotFound("waitlist entry not found")
		}
		return nil, apperrors.NewDatabaseError("failed to fetch waitlist entry", err)
	}

	return &entry, nil
}

func (wr *waitlistRepository) FindByID(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry

	if err := wr.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entryNotFound("waitlist entry not found")
		}
		return nil, apperrors.NewDatabaseError("failed to fetch waitlist entry", err)
	}

	return &entry, nil
}

func (wr *waitlistRepository) CreatePending(ctx context.Context, email, code string, expiry time.Time) (*models.WaitlistEntry, error) {
	entry := &models.WaitlistEntry{
		Email:                  email,
		VerificationCode:       &code,
		VerificationCodeExpiry: &expiry,
		Source:                 constants.SourceWebsite,
	}

	if err := wr.db.WithContext(ctx).Create(entry).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, apperrors.NewConflictError("waitlist entry with this email already exists", err)
		}
		return nil, apperrors.NewDatabaseError("unable to create waitlist entry", err)
	}

	return entry, nil
}

func (wr *waitlistRepository) SetVerificationCode(ctx context.Context, id, code string, expiry time.Time) error {
	result := wr.db.WithContext(ctx).
		Model(&models.WaitlistEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"verification_code":        code,
			"verification_code_expiry": expiry,
		})

	if result.Error != nil {
		return apperrors.NewDatabaseError("unable to store verification code", result.Error)
	}

	if result.RowsAffected == 0 {
		return entryNotFound("waitlist entry not found")
	}

	return nil
}

func (wr *waitlistRepository) MarkVerified(ctx context.Context, id string, name, phone *string) (*models.WaitlistEntry, error) {
	updates := map[string]any{
		"verified":                 true,
		"verification_code":        nil,
		"verification_code_expiry": nil,
	}
	if name != nil {
		updates["name"] = *name
	}
	if phone != nil {
		updates["phone"] = *phone
	}

	var entry models.WaitlistEntry
	err := wr.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The verified=false guard makes a concurrent second verification a no-op.
		result := tx.Model(&models.WaitlistEntry{}).
			Where("id = ? AND verified = ?", id, false).
			Updates(updates)
		if result.Error != nil {
			return apperrors.NewDatabaseError("unable to verify waitlist entry", result.Error)
		}
		if result.RowsAffected == 0 {
			return alreadyVerified("This email is already verified and on the waitlist")
		}

		if err := tx.Where("id = ?", id).First(&entry).Error; err != nil {
			return apperrors.NewDatabaseError("failed to fetch waitlist entry", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func (wr *waitlistRepository) UpdateEntry(ctx context.Context, id string, updates map[string]any) (*models.WaitlistEntry, error) {
	if len(updates) == 0 {
		return nil, apperrors.NewInvalidRequestError("no fields to update", ErrEmptyPatch)
	}

	var entry models.WaitlistEntry
	err := wr.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.WaitlistEntry{}).
			Where("id = ?", id).
			Updates(updates)

		if result.Error != nil {
			return apperrors.NewDatabaseError("unable to update waitlist entry", result.Error)
		}

		if result.RowsAffected == 0 {
			return entryNotFound("waitlist entry not found")
		}

		if err := tx.Where("id = ?", id).First(&entry).Error; err != nil {
			return apperrors.NewDatabaseError("failed to fetch waitlist entry", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func (wr *waitlistRepository) DeleteEntry(ctx context.Context, id string) error {
	result := wr.db.WithContext(ctx).Where("id = ?", id).Delete(&models.WaitlistEntry{})

	if result.Error != nil {
		return apperrors.NewDatabaseError("unable to delete waitlist entry", result.Error)
	}

	if result.RowsAffected == 0 {
		return entryNotFound("waitlist entry not found")
	}

	return nil
}

func (wr *waitlistRepository) filtered(ctx context.Context, query ListQuery) *gorm.DB {
	q := wr.db.WithContext(ctx).Model(&models.WaitlistEntry{})
	if query.Verified != nil {
		q = q.Where("verified = ?", *query.Verified)
	}
	if query.IsOG != nil {
		q = q.Where("is_og = ?", *query.IsOG)
	}
	return q
}

func (wr *waitlistRepository) ListEntries(ctx context.Context, query ListQuery) ([]*models.WaitlistEntry, int64, error) {
	query = query.normalized()

	var total int64
	if err := wr.filtered(ctx, query).Count(&total).Error; err != nil {
		return nil, 0, apperrors.NewDatabaseError("unable to count waitlist entries", err)
	}

	entries := make([]*models.WaitlistEntry, 0, query.Limit)
	err := wr.filtered(ctx, query).
		Order("created_at DESC").
		Order("id DESC").
		Offset(query.offset()).
		Limit(query.Limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, apperrors.NewDatabaseError("unable to fetch waitlist entries", err)
	}

	return entries, total, nil
}

func (wr *waitlistRepository) count(ctx context.Context, where string, args ...any) (int64, error) {
	var n int64
	q := wr.db.WithContext(ctx).Model(&models.WaitlistEntry{})
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, apperrors.NewDatabaseError("unable to count waitlist entries", err)
	}
	return n, nil
}

func (wr *waitlistRepository) Stats(ctx context.Context, since time.Time) (*StatsResponse, error) {
	total, err := wr.count(ctx, "")
	if err != nil {
		return nil, err
	}
	verified, err := wr.count(ctx, "verified = ?", true)
	if err != nil {
		return nil, err
	}
	og, err := wr.count(ctx, "is_og = ?", true)
	if err != nil {
		return nil, err
	}
	recent, err := wr.count(ctx, "created_at >= ?", since)
	if err != nil {
		return nil, err
	}

	return &StatsResponse{
		Total:      total,
		Verified:   verified,
		OGCount:    og,
		RecentWeek: recent,
		Pending:    total - verified,
	}, nil
}

func (wr *waitlistRepository) UpsertOG(ctx context.Context, email string, name, phone *string) (bool, error) {
	created := false

	err := wr.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.WaitlistEntry
		err := tx.Where("email = ?", email).First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry := &models.WaitlistEntry{
				Email:    email,
				Name:     name,
				Phone:    phone,
				IsOG:     true,
				Verified: true,
				Source:   constants.SourceExcelImport,
			}
			if err := tx.Create(entry).Error; err != nil {
				return apperrors.NewDatabaseError("unable to create OG entry", err)
			}
			created = true
			return nil
		case err != nil:
			return apperrors.NewDatabaseError("failed to fetch waitlist entry", err)
		}

		updates := map[string]any{
			"is_og":                    true,
			"verified":                 true,
			"verification_code":        nil,
			"verification_code_expiry": nil,
		}
		if name != nil {
			updates["name"] = *name
		}
		if phone != nil {
			updates["phone"] = *phone
		}

		if err := tx.Model(&models.WaitlistEntry{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			return apperrors.NewDatabaseError("unable to update OG entry", err)
		}
		return nil
	})

	return created, err
}

func (wr *waitlistRepository) CountOG(ctx context.Context) (int64, error) {
	return wr.count(ctx, "is_og = ?", true)
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || apperrors.IsDuplicateKeyError(err)
}
