package reminders

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-intake/internal/notify"
	"github.com/wolfman30/clinic-intake/internal/observability/metrics"
	"github.com/wolfman30/clinic-intake/internal/records"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.reminders")

// Channels is the delivery side of notify.Notifier.
type Channels interface {
	SendEmail(ctx context.Context, msg notify.EmailMessage) bool
	SendSMS(ctx context.Context, to, body string) bool
}

// Delivery reports what happened to one reminder.
type Delivery struct {
	ReminderID string               `json:"reminder_id"`
	Type       records.ReminderType `json:"reminder_type"`
	EmailSent  bool                 `json:"email_sent"`
	SMSSent    bool                 `json:"sms_sent"`
	Skipped    bool                 `json:"skipped,omitempty"`
	Reason     string               `json:"reason,omitempty"`
}

// Sender renders and dispatches reminders.
type Sender struct {
	store    records.Store
	channels Channels
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger
}

func NewSender(store records.Store, channels Channels, m *metrics.SchedulingMetrics, logger *logging.Logger) *Sender {
	if store == nil {
		panic("reminders: store cannot be nil")
	}
	if channels == nil {
		panic("reminders: channels cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sender{store: store, channels: channels, metrics: m, logger: logger}
}

// pending are the statuses a reminder can be delivered from.
var pending = []records.ReminderStatus{records.ReminderScheduled, records.ReminderQueued}

// Send delivers one pending reminder by email and SMS and marks it sent
// whatever the channels report. The reminder is claimed (moved to sent) before
// any channel is used, so concurrent sends of one id deliver once. Reminders
// that are no longer pending are skipped; a reminder for a cancelled booking is
// marked cancelled instead.
func (s *Sender) Send(ctx context.Context, reminderID string) (Delivery, error) {
	ctx, span := tracer.Start(ctx, "reminders.send")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.reminder_id", reminderID))

	reminder, err := s.store.GetReminder(ctx, reminderID)
	if err != nil {
		span.RecordError(err)
		return Delivery{}, fmt.Errorf("reminders: get reminder %s: %w", reminderID, err)
	}
	out := Delivery{ReminderID: reminderID, Type: reminder.Type}
	if !isPending(reminder.Status) {
		out.Skipped, out.Reason = true, "already "+string(reminder.Status)
		return out, nil
	}

	booking, err := s.store.GetBooking(ctx, reminder.AppointmentID)
	if err != nil {
		span.RecordError(err)
		return out, fmt.Errorf("reminders: get booking %s: %w", reminder.AppointmentID, err)
	}
	if booking.Status == records.BookingCancelled {
		if _, err := s.store.TransitionReminder(ctx, reminderID, pending, records.ReminderCancelled); err != nil {
			return out, fmt.Errorf("reminders: cancel %s: %w", reminderID, err)
		}
		s.metrics.ObserveReminder(string(records.ReminderCancelled))
		out.Skipped, out.Reason = true, "appointment cancelled"
		return out, nil
	}
	patient, err := s.store.GetPatient(ctx, reminder.PatientID)
	if err != nil {
		span.RecordError(err)
		return out, fmt.Errorf("reminders: get patient %s: %w", reminder.PatientID, err)
	}

	claimed, err := s.store.TransitionReminder(ctx, reminderID, pending, records.ReminderSent)
	if err != nil {
		span.RecordError(err)
		return out, fmt.Errorf("reminders: claim %s: %w", reminderID, err)
	}
	if !claimed {
		out.Skipped, out.Reason = true, "claimed by another sender"
		return out, nil
	}

	out.EmailSent = s.channels.SendEmail(ctx, notify.EmailMessage{
		To:      patient.Email,
		ToName:  patient.Name,
		Subject: EmailSubject(booking),
		Body:    EmailBody(reminder.Type, booking, patient),
	})
	out.SMSSent = s.channels.SendSMS(ctx, patient.Phone, SMSBody(reminder.Type, booking))
	if !out.EmailSent || !out.SMSSent {
		s.logger.Warn("reminder channel failed", "reminder_id", reminderID,
			"email_sent", out.EmailSent, "sms_sent", out.SMSSent)
	}

	s.metrics.ObserveReminder(string(records.ReminderSent))
	s.logger.Info("reminder sent", "reminder_id", reminderID, "type", reminder.Type)
	return out, nil
}

func isPending(status records.ReminderStatus) bool {
	for _, st := range pending {
		if status == st {
			return true
		}
	}
	return false
}

// Dispatch satisfies Dispatcher by sending inline.
func (s *Sender) Dispatch(ctx context.Context, reminderID string) error {
	_, err := s.Send(ctx, reminderID)
	if errors.Is(err, records.ErrNotFound) {
		s.logger.Warn("reminder dispatch for missing record", "reminder_id", reminderID, "error", err)
	}
	return err
}
