// Package reminders schedules offset reminders for a booking, delivers them and
// records the patient's answer.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/clinic-intake/internal/observability/metrics"
	"github.com/wolfman30/clinic-intake/internal/records"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// Offsets are the days before an appointment a reminder fires.
var Offsets = []int{7, 3, 1}

// TypeForOffset maps an offset to its reminder template.
func TypeForOffset(days int) records.ReminderType {
	switch days {
	case 7:
		return records.ReminderInitial
	case 3:
		return records.ReminderFormCheck
	case 1:
		return records.ReminderConfirmation
	default:
		return records.ReminderStandard
	}
}

// Schedule is the batch created for one booking.
type Schedule struct {
	Scheduled []records.Reminder `json:"scheduled_reminders"`
	Total     int                `json:"total_reminders"`
}

// Scheduler creates reminders at fixed offsets before an appointment.
type Scheduler struct {
	store   records.ReminderStore
	offsets []int
	now     func() time.Time
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
}

func NewScheduler(store records.ReminderStore, m *metrics.SchedulingMetrics, logger *logging.Logger) *Scheduler {
	if store == nil {
		panic("reminders: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{store: store, offsets: Offsets, now: time.Now, metrics: m, logger: logger}
}

// WithClock overrides the clock used to skip past offsets.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	if now != nil {
		s.now = now
	}
	return s
}

// Schedule persists one reminder per offset whose time is strictly in the
// future. Reminders that fail to save are left out of the result and their
// errors joined.
func (s *Scheduler) Schedule(ctx context.Context, booking records.Booking, patientID string) (Schedule, error) {
	if patientID == "" {
		patientID = booking.PatientID
	}
	now := s.now()
	out := Schedule{Scheduled: []records.Reminder{}}
	var errs []error

	for _, days := range s.offsets {
		at := booking.Start.AddDate(0, 0, -days)
		if !at.After(now) {
			continue
		}
		r := records.Reminder{
			ReminderID:    records.ReminderID(booking.AppointmentID, days),
			AppointmentID: booking.AppointmentID,
			PatientID:     patientID,
			ReminderAt:    at,
			DaysBefore:    days,
			Type:          TypeForOffset(days),
			Status:        records.ReminderScheduled,
		}
		if err := s.store.SaveReminder(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("reminders: save %s: %w", r.ReminderID, err))
			continue
		}
		s.metrics.ObserveReminder(string(records.ReminderScheduled))
		out.Scheduled = append(out.Scheduled, r)
	}
	out.Total = len(out.Scheduled)

	s.logger.Info("reminders scheduled", "appointment_id", booking.AppointmentID, "total", out.Total)
	return out, errors.Join(errs...)
}
