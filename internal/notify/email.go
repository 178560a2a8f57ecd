package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sendgrid/rest"

	"github.com/wolfman30/clinic-intake/internal/redact"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

const defaultFromName = "Clinic Scheduling"

// EmailSender defines the interface for sending emails.
// Implementations can be swapped (SendGrid, SES, stub) without changing callers.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string // Plain text body
	HTML    string // Optional HTML body
}

type sendgridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender sends emails via SendGrid API.
type SendGridSender struct {
	client    sendgridAPI
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// Send sends an email via SendGrid.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)

	html := msg.HTML
	if html == "" {
		html = msg.Body
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, html)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", redact.Fingerprint(msg.To))
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "to", redact.Fingerprint(msg.To))
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid", "to", redact.Fingerprint(msg.To), "subject", msg.Subject, "status", response.StatusCode)
	return nil
}

// StubEmailSender logs instead of sending; used in development and tests.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("stub email sender: would send email", "to", redact.Fingerprint(msg.To), "subject", msg.Subject)
	return nil
}

var _ EmailSender = (*SendGridSender)(nil)
var _ EmailSender = (*StubEmailSender)(nil)
