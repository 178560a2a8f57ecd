package reminders

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/wolfman30/clinic-intake/internal/records"
)

var (
	confirmPattern = regexp.MustCompile(`(?i)\b(yes|confirm\w*|will be there|attending)\b`)
	cancelPattern  = regexp.MustCompile(`(?i)\b(no|cancel\w*|can'?t|cannot|reschedul\w*)\b`)
	formsPattern   = regexp.MustCompile(`(?i)\b(completed|filled|done|finished)\b`)

	// A confirm word that is negated or retracted, e.g. "not attending" or
	// "yes but I need to reschedule", reads as a cancellation.
	negatedConfirmPattern   = regexp.MustCompile(`(?i)\b(not|won'?t|can'?t|cannot|unable to)\s+(be there|attend\w*|make it|confirm\w*)\b`)
	retractedConfirmPattern = regexp.MustCompile(`(?i)\b(but|however|actually)\b.*\b(cancel\w*|reschedul\w*|can'?t make|cannot make)\b`)
)

// Classify maps free-text to the status a reminder answer implies. Families
// are checked in priority order: confirmed, cancelled, forms completed.
func Classify(text string) records.ReminderStatus {
	text = strings.TrimSpace(text)
	switch {
	case negatedConfirmPattern.MatchString(text), retractedConfirmPattern.MatchString(text):
		return records.ReminderCancelled
	case confirmPattern.MatchString(text):
		return records.ReminderConfirmed
	case cancelPattern.MatchString(text):
		return records.ReminderCancelled
	case formsPattern.MatchString(text):
		return records.ReminderFormsCompleted
	default:
		return records.ReminderResponded
	}
}

var replies = map[records.ReminderStatus]string{
	records.ReminderConfirmed:      "Thank you for confirming your appointment!",
	records.ReminderCancelled:      "We've noted your cancellation. Please call us to reschedule when convenient.",
	records.ReminderFormsCompleted: "Great! Thank you for completing your forms.",
	records.ReminderResponded:      "Thank you for your response. If you need assistance, please call us.",
}

// Response is what the patient is told after answering a reminder.
type Response struct {
	ReminderID       string                 `json:"reminder_id"`
	Status           records.ReminderStatus `json:"response_type"`
	Message          string                 `json:"message"`
	RequiresFollowup bool                   `json:"requires_followup"`
}

// BookingCanceller releases the slot held by a booking.
type BookingCanceller interface {
	Cancel(ctx context.Context, appointmentID string) (records.Booking, error)
}

// Responder records reminder answers.
type Responder struct {
	store    records.ReminderStore
	bookings BookingCanceller
}

// NewResponder builds a Responder. With a nil canceller a cancel answer is
// recorded but the booking is left for staff to release.
func NewResponder(store records.ReminderStore, bookings BookingCanceller) *Responder {
	if store == nil {
		panic("reminders: store cannot be nil")
	}
	return &Responder{store: store, bookings: bookings}
}

// Interpret classifies text, stores it against the reminder and, for a
// cancellation, cancels the appointment.
func (r *Responder) Interpret(ctx context.Context, reminderID, text string) (Response, error) {
	reminder, err := r.store.GetReminder(ctx, reminderID)
	if err != nil {
		return Response{}, fmt.Errorf("reminders: get reminder %s: %w", reminderID, err)
	}
	status := Classify(text)
	if err := r.store.UpdateReminderResponse(ctx, reminderID, status, strings.TrimSpace(text)); err != nil {
		return Response{}, fmt.Errorf("reminders: record response %s: %w", reminderID, err)
	}

	if status == records.ReminderCancelled && r.bookings != nil {
		if _, err := r.bookings.Cancel(ctx, reminder.AppointmentID); err != nil && !errors.Is(err, records.ErrInvalidTransition) {
			return Response{}, fmt.Errorf("reminders: cancel appointment %s: %w", reminder.AppointmentID, err)
		}
	}

	return Response{
		ReminderID:       reminderID,
		Status:           status,
		Message:          replies[status],
		RequiresFollowup: status == records.ReminderCancelled,
	}, nil
}
