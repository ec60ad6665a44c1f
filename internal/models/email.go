package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EmailStatusSent   = "SENT"
	EmailStatusFailed = "FAILED"
)

const (
	NotificationTypeWaitlistJoined     = "WAITLIST_JOINED"
	NotificationTypeWaitlistUpdate     = "WAITLIST_UPDATE"
	NotificationTypeLaunchAnnouncement = "LAUNCH_ANNOUNCEMENT"
)

// EmailLog records one send attempt. Rows are never updated.
type EmailLog struct {
	ID         string     `gorm:"type:text;primaryKey" json:"id"`
	WaitlistID *string    `gorm:"type:text;index" json:"waitlistId"`
	To         string     `gorm:"column:to_email;not null;index" json:"to"`
	From       string     `gorm:"column:from_email;not null" json:"from"`
	Subject    string     `gorm:"not null" json:"subject"`
	Template   string     `gorm:"not null" json:"template"`
	Status     string     `gorm:"not null;index" json:"status"`
	MessageID  *string    `json:"messageId"`
	Error      *string    `json:"error"`
	SentAt     *time.Time `json:"sentAt"`
	CreatedAt  time.Time  `gorm:"not null" json:"createdAt"`
}

func (l *EmailLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

type Notification struct {
	ID          string         `gorm:"type:text;primaryKey" json:"id"`
	WaitlistID  string         `gorm:"type:text;not null;index" json:"waitlistId"`
	Type        string         `gorm:"not null" json:"type"`
	Title       string         `gorm:"not null" json:"title"`
	Message     string         `gorm:"not null" json:"message"`
	Link        *string        `json:"link"`
	Metadata    datatypes.JSON `json:"metadata"`
	EmailSent   bool           `gorm:"not null;default:false" json:"emailSent"`
	EmailSentAt *time.Time     `json:"emailSentAt"`
	CreatedAt   time.Time      `gorm:"not null" json:"createdAt"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return nil
}
