package records

import (
	"strings"
	"time"
)

// Patient is the persisted identity record for a person who has talked to the clinic.
type Patient struct {
	PatientID        string `json:"patient_id"`
	Name             string `json:"name"`
	DateOfBirth      string `json:"date_of_birth"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	PreferredDoctor  string `json:"preferred_doctor,omitempty"`
	Location         string `json:"location,omitempty"`
	FirstVisit       string `json:"first_visit,omitempty"`
	UsualDoctor      string `json:"usual_doctor,omitempty"`
	InsuranceCarrier string `json:"insurance_carrier,omitempty"`
	MemberID         string `json:"member_id,omitempty"`
	GroupNumber      string `json:"group_number,omitempty"`
}

// Insurance holds coverage details collected during a conversation.
type Insurance struct {
	Carrier     string `json:"insurance_carrier,omitempty"`
	MemberID    string `json:"member_id,omitempty"`
	GroupNumber string `json:"group_number,omitempty"`
}

// ApplyTo copies non-empty coverage fields onto the patient record.
func (i Insurance) ApplyTo(p *Patient) {
	if i.Carrier != "" {
		p.InsuranceCarrier = i.Carrier
	}
	if i.MemberID != "" {
		p.MemberID = i.MemberID
	}
	if i.GroupNumber != "" {
		p.GroupNumber = i.GroupNumber
	}
}

// BookingStatus tracks an appointment. The only legal transition is confirmed → cancelled.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is a persisted appointment.
type Booking struct {
	AppointmentID   string        `json:"appointment_id"`
	PatientID       string        `json:"patient_id"`
	Doctor          string        `json:"doctor"`
	Start           time.Time     `json:"datetime"`
	DurationMinutes int           `json:"duration"`
	Location        string        `json:"location"`
	Status          BookingStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
}

// End returns the exclusive end of the appointment window.
func (b Booking) End() time.Time {
	return b.Start.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// SameResource reports whether b is held by the given doctor at the given location.
func (b Booking) SameResource(doctor, location string) bool {
	return strings.EqualFold(b.Doctor, doctor) && strings.EqualFold(b.Location, location)
}

// Blocks reports whether b prevents a new appointment at [start, start+minutes).
// Cancelled bookings never block.
func (b Booking) Blocks(start time.Time, minutes int) bool {
	if b.Status != BookingConfirmed {
		return false
	}
	return Overlaps(b.Start, b.DurationMinutes, start, minutes)
}

// Overlaps is the half-open interval test between [aStart, aStart+aMin) and [bStart, bStart+bMin).
func Overlaps(aStart time.Time, aMin int, bStart time.Time, bMin int) bool {
	aEnd := aStart.Add(time.Duration(aMin) * time.Minute)
	bEnd := bStart.Add(time.Duration(bMin) * time.Minute)
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// ReminderType is derived from how many days before the appointment a reminder fires.
type ReminderType string

const (
	ReminderInitial      ReminderType = "initial"
	ReminderFormCheck    ReminderType = "form_check"
	ReminderConfirmation ReminderType = "confirmation"
	ReminderStandard     ReminderType = "standard"
)

// ReminderStatus tracks delivery and the patient's answer.
type ReminderStatus string

const (
	ReminderScheduled      ReminderStatus = "scheduled"
	ReminderQueued         ReminderStatus = "queued"
	ReminderSent           ReminderStatus = "sent"
	ReminderConfirmed      ReminderStatus = "confirmed"
	ReminderCancelled      ReminderStatus = "cancelled"
	ReminderFormsCompleted ReminderStatus = "forms_completed"
	ReminderResponded      ReminderStatus = "responded"
)

// Reminder is an offset notification tied to a booking.
type Reminder struct {
	ReminderID    string         `json:"reminder_id"`
	AppointmentID string         `json:"appointment_id"`
	PatientID     string         `json:"patient_id"`
	ReminderAt    time.Time      `json:"reminder_datetime"`
	DaysBefore    int            `json:"days_before"`
	Type          ReminderType   `json:"type"`
	Status        ReminderStatus `json:"status"`
	Response      string         `json:"response,omitempty"`
}
