package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/akeren/launch-waitlist/internal/models"
)

const defaultUserName = "there"

// Sender is the subset of Mailer the Service composes over.
type Sender interface {
	Send(ctx context.Context, msg Message) SendResult
	SendWithNotification(ctx context.Context, msg Message, input NotificationInput) SendResult
}

type ServiceConfig struct {
	ProductName string
	BaseURL     string
	CodeTTL     time.Duration
}

// Service builds the waitlist emails.
type Service struct {
	sender Sender
	cfg    ServiceConfig
	now    func() time.Time
}

func NewService(sender Sender, cfg ServiceConfig) *Service {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:5173"
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	return &Service{sender: sender, cfg: cfg, now: time.Now}
}

func (s *Service) SendVerificationCode(ctx context.Context, entryID, email, code string) SendResult {
	msg := Message{
		To:       email,
		Subject:  fmt.Sprintf("Verify Your Email - %s Waitlist", s.cfg.ProductName),
		Template: TemplateVerifyCode,
		Data: VerifyCodeData{
			Code:             code,
			ExpiresInMinutes: int(s.cfg.CodeTTL / time.Minute),
			ProductName:      s.cfg.ProductName,
			BaseURL:          s.cfg.BaseURL,
			Year:             s.now().Year(),
		},
	}
	if entryID != "" {
		msg.WaitlistID = &entryID
	}
	return s.sender.Send(ctx, msg)
}

// SendWelcome also records a WAITLIST_JOINED notification for the entry.
func (s *Service) SendWelcome(ctx context.Context, entryID, email, name string) SendResult {
	if name == "" {
		name = defaultUserName
	}
	link := s.cfg.BaseURL

	return s.sender.SendWithNotification(ctx,
		Message{
			To:         email,
			Subject:    fmt.Sprintf("Welcome to %s Waitlist! 🎓", s.cfg.ProductName),
			Template:   TemplateWelcome,
			WaitlistID: &entryID,
			Data: WelcomeData{
				UserName:    name,
				ProductName: s.cfg.ProductName,
				BaseURL:     s.cfg.BaseURL,
				Year:        s.now().Year(),
			},
		},
		NotificationInput{
			WaitlistID: entryID,
			Type:       models.NotificationTypeWaitlistJoined,
			Title:      fmt.Sprintf("Welcome to %s!", s.cfg.ProductName),
			Message:    fmt.Sprintf("Welcome %s! You're now on the waitlist and will be notified when we launch.", name),
			Link:       &link,
			Metadata:   map[string]any{"email": email, "template": string(TemplateWelcome)},
		},
	)
}
