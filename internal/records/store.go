package records

import (
	"context"
	"sort"
	"strings"
	"time"
)

// PatientStore resolves and persists patient identity records.
type PatientStore interface {
	// FindPatients matches name case-insensitively. A non-empty dob narrows the
	// result only when at least one name match also has that date of birth.
	FindPatients(ctx context.Context, name, dob string) ([]Patient, error)
	CreatePatient(ctx context.Context, p Patient) (Patient, error)
	GetPatient(ctx context.Context, id string) (Patient, error)
	UpdatePatient(ctx context.Context, p Patient) error
}

// BookingStore persists appointments.
type BookingStore interface {
	// SaveBooking must reject a confirmed booking that overlaps another confirmed
	// booking for the same doctor and location with ErrConflict.
	SaveBooking(ctx context.Context, b Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListPatientBookings(ctx context.Context, patientID string) ([]Booking, error)
	ListDoctorBookings(ctx context.Context, doctor, location string) ([]Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status BookingStatus) error
}

// ReminderStore persists offset reminders.
type ReminderStore interface {
	SaveReminder(ctx context.Context, r Reminder) error
	GetReminder(ctx context.Context, id string) (Reminder, error)
	ListAppointmentReminders(ctx context.Context, appointmentID string) ([]Reminder, error)
	ListDueReminders(ctx context.Context, asOf time.Time) ([]Reminder, error)
	UpdateReminderStatus(ctx context.Context, id string, status ReminderStatus) error
	// TransitionReminder moves a reminder to status only while its current
	// status is one of from, and reports whether it did. Exactly one of several
	// concurrent callers wins.
	TransitionReminder(ctx context.Context, id string, from []ReminderStatus, to ReminderStatus) (bool, error)
	UpdateReminderResponse(ctx context.Context, id string, status ReminderStatus, response string) error
}

// Store is the full record store used by the conversation flow.
type Store interface {
	PatientStore
	BookingStore
	ReminderStore
}

// refineByDOB keeps the dob matches when there are any, otherwise the name matches.
func refineByDOB(matches []Patient, dob string) []Patient {
	dob = strings.TrimSpace(dob)
	if dob == "" || len(matches) == 0 {
		return matches
	}
	refined := make([]Patient, 0, len(matches))
	for _, p := range matches {
		if p.DateOfBirth == dob {
			refined = append(refined, p)
		}
	}
	if len(refined) == 0 {
		return matches
	}
	return refined
}

func checkTransition(from, to BookingStatus) error {
	if from == to {
		return nil
	}
	if from == BookingConfirmed && to == BookingCancelled {
		return nil
	}
	return ErrInvalidTransition
}

func sortBookings(bookings []Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].Start.Before(bookings[j].Start)
	})
}
