package wall

import (
	"context"

	"github.com/akeren/launch-waitlist/internal/models"
	apperrors "github.com/akeren/launch-waitlist/pkg/errors"
	"gorm.io/gorm"
)

type WallRepository interface {
	// Latest returns up to limit entries, newest first.
	Latest(ctx context.Context, limit int) ([]models.WaitlistEntry, error)
}

type wallRepository struct {
	db *gorm.DB
}

func NewWallRepository(db *gorm.DB) WallRepository {
	return &wallRepository{db: db}
}

func (wr *wallRepository) Latest(ctx context.Context, limit int) ([]models.WaitlistEntry, error) {
	var entries []models.WaitlistEntry

	err := wr.db.WithContext(ctx).
		Select("id", "email", "name", "is_og", "created_at").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError("unable to load wall entries", err)
	}

	return entries, nil
}
