// Package notify delivers email and SMS to patients.
package notify

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-intake/internal/observability/metrics"
	"github.com/wolfman30/clinic-intake/internal/redact"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.notify")

const defaultTimeout = 10 * time.Second

// Notifier turns channel errors into delivered/not-delivered answers. A
// notification that fails or times out never fails the caller's workflow.
type Notifier struct {
	email   EmailSender
	sms     SMSSender
	timeout time.Duration
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
}

// NewNotifier wires the channels. Nil senders fall back to stubs.
func NewNotifier(email EmailSender, sms SMSSender, timeout time.Duration, m *metrics.SchedulingMetrics, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	if sms == nil {
		sms = NewStubSMSSender(logger)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Notifier{email: email, sms: sms, timeout: timeout, metrics: m, logger: logger}
}

// SendEmail reports whether the message was handed to the provider.
func (n *Notifier) SendEmail(ctx context.Context, msg EmailMessage) bool {
	ctx, span := tracer.Start(ctx, "notify.email")
	defer span.End()

	if strings.TrimSpace(msg.To) == "" {
		n.logger.Warn("email skipped: no recipient", "subject", msg.Subject)
		n.metrics.ObserveNotification("email", false)
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	err := n.email.Send(ctx, msg)
	delivered := err == nil
	span.SetAttributes(attribute.Bool("clinic.delivered", delivered))
	if err != nil {
		span.RecordError(err)
		n.logger.Warn("email delivery failed", "error", err, "to", redact.Fingerprint(msg.To), "subject", msg.Subject)
	}
	n.metrics.ObserveNotification("email", delivered)
	return delivered
}

// SendSMS reports whether the text was handed to the provider.
func (n *Notifier) SendSMS(ctx context.Context, to, body string) bool {
	ctx, span := tracer.Start(ctx, "notify.sms")
	defer span.End()

	if strings.TrimSpace(to) == "" {
		n.logger.Warn("sms skipped: no recipient")
		n.metrics.ObserveNotification("sms", false)
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	err := n.sms.SendSMS(ctx, to, body)
	delivered := err == nil
	span.SetAttributes(attribute.Bool("clinic.delivered", delivered))
	if err != nil {
		span.RecordError(err)
		n.logger.Warn("sms delivery failed", "error", err, "to", redact.Fingerprint(to))
	}
	n.metrics.ObserveNotification("sms", delivered)
	return delivered
}
