package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WaitlistEntry is one signup. Email is stored trimmed and lowercased.
type WaitlistEntry struct {
	ID                     string     `gorm:"type:text;primaryKey" json:"id"`
	Email                  string     `gorm:"not null;uniqueIndex" json:"email"`
	Name                   *string    `json:"name"`
	Phone                  *string    `json:"phone"`
	IsOG                   bool       `gorm:"column:is_og;not null;default:false;index" json:"isOG"`
	Verified               bool       `gorm:"not null;default:false;index" json:"verified"`
	VerificationCode       *string    `gorm:"type:varchar(6)" json:"-"`
	VerificationCodeExpiry *time.Time `json:"-"`
	Source                 string     `gorm:"not null;default:website" json:"source"`
	CreatedAt              time.Time  `gorm:"not null;index" json:"createdAt"`
	UpdatedAt              time.Time  `gorm:"not null" json:"updatedAt"`
}

func (e *WaitlistEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// DisplayName returns the stored name or fallback when it is empty.
func (e *WaitlistEntry) DisplayName(fallback string) string {
	if e.Name == nil || *e.Name == "" {
		return fallback
	}
	return *e.Name
}
