package notify

import (
	"context"

	"github.com/akeren/launch-waitlist/internal/models"
	"gorm.io/gorm"
)

// Store persists the delivery audit trail.
type Store interface {
	CreateEmailLog(ctx context.Context, entry *models.EmailLog) error
	CreateNotification(ctx context.Context, n *models.Notification) error
}

type gormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) CreateEmailLog(ctx context.Context, entry *models.EmailLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *gormStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}
