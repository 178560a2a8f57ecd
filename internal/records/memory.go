package records

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. Insertion order is preserved for lookups.
type MemoryStore struct {
	mu           sync.RWMutex
	patients     map[string]Patient
	patientOrder []string
	bookings     map[string]Booking
	bookingOrder []string
	reminders    map[string]Reminder
	reminderIDs  []string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients:  make(map[string]Patient),
		bookings:  make(map[string]Booking),
		reminders: make(map[string]Reminder),
	}
}

func (s *MemoryStore) FindPatients(_ context.Context, name, dob string) ([]Patient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matches []Patient
	for _, id := range s.patientOrder {
		p := s.patients[id]
		if strings.EqualFold(strings.TrimSpace(p.Name), name) {
			matches = append(matches, p)
		}
	}
	return refineByDOB(matches, dob), nil
}

func (s *MemoryStore) CreatePatient(_ context.Context, p Patient) (Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.PatientID == "" {
		p.PatientID = NewPatientID()
	}
	if _, exists := s.patients[p.PatientID]; exists {
		return Patient{}, fmt.Errorf("records: create patient %s: %w", p.PatientID, ErrDuplicate)
	}
	s.patients[p.PatientID] = p
	s.patientOrder = append(s.patientOrder, p.PatientID)
	return p, nil
}

func (s *MemoryStore) GetPatient(_ context.Context, id string) (Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return Patient{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) UpdatePatient(_ context.Context, p Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patients[p.PatientID]; !ok {
		return ErrNotFound
	}
	s.patients[p.PatientID] = p
	return nil
}

func (s *MemoryStore) SaveBooking(_ context.Context, b Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bookings[b.AppointmentID]; exists {
		return fmt.Errorf("records: save booking %s: %w", b.AppointmentID, ErrDuplicate)
	}
	if b.Status == BookingConfirmed {
		for _, id := range s.bookingOrder {
			existing := s.bookings[id]
			if existing.SameResource(b.Doctor, b.Location) && existing.Blocks(b.Start, b.DurationMinutes) {
				return ErrConflict
			}
		}
	}
	s.bookings[b.AppointmentID] = b
	s.bookingOrder = append(s.bookingOrder, b.AppointmentID)
	return nil
}

func (s *MemoryStore) GetBooking(_ context.Context, id string) (Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return Booking{}, ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) ListPatientBookings(_ context.Context, patientID string) ([]Booking, error) {
	return s.filterBookings(func(b Booking) bool { return b.PatientID == patientID }), nil
}

func (s *MemoryStore) ListDoctorBookings(_ context.Context, doctor, location string) ([]Booking, error) {
	return s.filterBookings(func(b Booking) bool { return b.SameResource(doctor, location) }), nil
}

func (s *MemoryStore) filterBookings(keep func(Booking) bool) []Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Booking
	for _, id := range s.bookingOrder {
		if b := s.bookings[id]; keep(b) {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out
}

func (s *MemoryStore) UpdateBookingStatus(_ context.Context, id string, status BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return ErrNotFound
	}
	if err := checkTransition(b.Status, status); err != nil {
		return err
	}
	b.Status = status
	s.bookings[id] = b
	return nil
}

func (s *MemoryStore) SaveReminder(_ context.Context, r Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reminders[r.ReminderID]; !exists {
		s.reminderIDs = append(s.reminderIDs, r.ReminderID)
	}
	s.reminders[r.ReminderID] = r
	return nil
}

func (s *MemoryStore) GetReminder(_ context.Context, id string) (Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reminders[id]
	if !ok {
		return Reminder{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) ListAppointmentReminders(_ context.Context, appointmentID string) ([]Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Reminder
	for _, id := range s.reminderIDs {
		if r := s.reminders[id]; r.AppointmentID == appointmentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListDueReminders(_ context.Context, asOf time.Time) ([]Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Reminder
	for _, id := range s.reminderIDs {
		r := s.reminders[id]
		if r.Status == ReminderScheduled && !r.ReminderAt.After(asOf) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateReminderStatus(_ context.Context, id string, status ReminderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	s.reminders[id] = r
	return nil
}

func (s *MemoryStore) TransitionReminder(_ context.Context, id string, from []ReminderStatus, to ReminderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return false, ErrNotFound
	}
	for _, st := range from {
		if r.Status == st {
			r.Status = to
			s.reminders[id] = r
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) UpdateReminderResponse(_ context.Context, id string, status ReminderStatus, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	r.Response = response
	s.reminders[id] = r
	return nil
}
