package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/akeren/launch-waitlist/internal/models"
	"github.com/akeren/launch-waitlist/pkg/circuitbreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
)

const (
	DefaultSendTimeout = 20 * time.Second
	tracerName         = "github.com/akeren/launch-waitlist/internal/notify"
)

// Message is a request to send one templated email.
type Message struct {
	To         string
	Subject    string
	Template   TemplateName
	Data       any
	WaitlistID *string
}

// SendResult reports the outcome of a single attempt. Failures are values, not errors.
type SendResult struct {
	Success   bool
	MessageID string
	Error     string
}

type NotificationInput struct {
	WaitlistID string
	Type       string
	Title      string
	Message    string
	Link       *string
	Metadata   map[string]any
}

type MailerConfig struct {
	Registry    *Registry
	Transport   Transport
	Store       Store
	Breaker     circuitbreaker.CircuitBreaker
	Metrics     *Metrics
	From        string
	FromName    string
	SendTimeout time.Duration
	Logger      *log.Logger
}

type Mailer struct {
	registry  *Registry
	transport Transport
	store     Store
	breaker   circuitbreaker.CircuitBreaker
	metrics   *Metrics
	from      string
	fromName  string
	timeout   time.Duration
	logger    *log.Logger
	now       func() time.Time
}

func NewMailer(cfg MailerConfig) *Mailer {
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(&circuitbreaker.Config{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 1,
		})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLoggerWithJSONOutput()
	}

	return &Mailer{
		registry:  cfg.Registry,
		transport: cfg.Transport,
		store:     cfg.Store,
		breaker:   breaker,
		metrics:   cfg.Metrics,
		from:      cfg.From,
		fromName:  cfg.FromName,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

// TransportName identifies the configured provider for health reporting.
func (m *Mailer) TransportName() string {
	return m.transport.Name()
}

// BreakerState reports whether sends are currently short-circuited.
func (m *Mailer) BreakerState() circuitbreaker.CircuitState {
	return m.breaker.State()
}

// Send renders and delivers msg, then records exactly one EmailLog row for the attempt.
func (m *Mailer) Send(ctx context.Context, msg Message) SendResult {
	logger := log.GetLoggerInstanceFromContext(ctx, m.logger)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "notify.Send")
	defer span.End()
	span.SetAttributes(
		attribute.String("email.template", string(msg.Template)),
		attribute.String("email.transport", m.transport.Name()),
	)

	var result SendResult
	rendered, err := m.registry.Render(context.WithoutCancel(ctx), msg.Template, msg.Data)
	if err != nil {
		logger.Error("Failed to render email template", "template", msg.Template, "error", err)
		result = SendResult{Error: err.Error()}
	} else {
		for _, w := range rendered.Warnings {
			logger.Warn("Email layout warning", "template", msg.Template, "warning", w.String())
		}
		result = m.deliver(ctx, Envelope{
			From:     m.from,
			FromName: m.fromName,
			To:       msg.To,
			Subject:  msg.Subject,
			HTML:     rendered.HTML,
		})
	}

	status := models.EmailStatusSent
	if !result.Success {
		status = models.EmailStatusFailed
		span.SetStatus(codes.Error, result.Error)
		logger.Error("Email send failed", "to", msg.To, "template", msg.Template, "error", result.Error)
	} else {
		logger.Info("Email sent", "to", msg.To, "template", msg.Template, "message_id", result.MessageID)
	}
	m.metrics.observe(msg.Template, status)

	m.writeLog(ctx, msg, status, result)
	return result
}

type delivery struct {
	id  string
	err error
}

// deliver is bounded by the send timeout only. A client disconnect must not
// report FAILED for a send the transport may still complete.
func (m *Mailer) deliver(ctx context.Context, env Envelope) SendResult {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	done := make(chan delivery, 1)
	go func() {
		var id string
		err := m.breaker.Call(func() error {
			var err error
			id, err = m.transport.Deliver(sendCtx, env)
			return err
		})
		done <- delivery{id: id, err: err}
	}()

	select {
	case <-sendCtx.Done():
		if errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			return SendResult{Error: fmt.Sprintf("email send timeout (%s)", m.timeout)}
		}
		return SendResult{Error: sendCtx.Err().Error()}
	case d := <-done:
		if d.err != nil {
			return SendResult{Error: d.err.Error()}
		}
		return SendResult{Success: true, MessageID: d.id}
	}
}

// writeLog survives request cancellation; a failure here is only logged.
func (m *Mailer) writeLog(ctx context.Context, msg Message, status string, result SendResult) {
	entry := &models.EmailLog{
		WaitlistID: msg.WaitlistID,
		To:         msg.To,
		From:       m.from,
		Subject:    msg.Subject,
		Template:   string(msg.Template),
		Status:     status,
	}
	if result.Success {
		sentAt := m.now()
		entry.SentAt = &sentAt
		if result.MessageID != "" {
			entry.MessageID = &result.MessageID
		}
	} else {
		errMsg := result.Error
		entry.Error = &errMsg
	}

	if err := m.store.CreateEmailLog(context.WithoutCancel(ctx), entry); err != nil {
		log.GetLoggerInstanceFromContext(ctx, m.logger).Error("Failed to write email log", "to", msg.To, "error", err)
	}
}

// SendWithNotification sends msg and records an in-app notification reflecting the outcome.
func (m *Mailer) SendWithNotification(ctx context.Context, msg Message, input NotificationInput) SendResult {
	result := m.Send(ctx, msg)

	n, err := m.newNotification(input)
	if err == nil {
		n.EmailSent = result.Success
		if result.Success {
			sentAt := m.now()
			n.EmailSentAt = &sentAt
		}
		err = m.store.CreateNotification(context.WithoutCancel(ctx), n)
	}
	if err != nil {
		log.GetLoggerInstanceFromContext(ctx, m.logger).Error("Failed to create notification", "waitlist_id", input.WaitlistID, "type", input.Type, "error", err)
	}

	return result
}

// CreateNotification records a notification without sending any email.
func (m *Mailer) CreateNotification(ctx context.Context, input NotificationInput) (*models.Notification, error) {
	n, err := m.newNotification(input)
	if err != nil {
		return nil, err
	}
	if err := m.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (m *Mailer) newNotification(input NotificationInput) (*models.Notification, error) {
	n := &models.Notification{
		WaitlistID: input.WaitlistID,
		Type:       input.Type,
		Title:      input.Title,
		Message:    input.Message,
		Link:       input.Link,
	}
	if len(input.Metadata) > 0 {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("notification metadata: %w", err)
		}
		n.Metadata = datatypes.JSON(raw)
	}
	return n, nil
}
