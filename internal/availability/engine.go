package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-intake/internal/observability/metrics"
	"github.com/wolfman30/clinic-intake/internal/records"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

const (
	// SlotStep is the spacing between candidate start times.
	SlotStep = 30 * time.Minute
	// MaxSlots caps a single availability query.
	MaxSlots = 20
	// DefaultDaysAhead is the search horizon when callers pass zero.
	DefaultDaysAhead = 14
)

// ErrSlotUnavailable means the slot was taken, or is outside the schedule, by
// the time the booking was committed.
var ErrSlotUnavailable = errors.New("availability: slot is no longer available")

var tracer = otel.Tracer("clinic.internal.availability")

// Slot is an ephemeral bookable window.
type Slot struct {
	Doctor          string    `json:"doctor"`
	Location        string    `json:"location"`
	Start           time.Time `json:"datetime"`
	DurationMinutes int       `json:"duration"`
}

// End returns the exclusive end of the slot.
func (s Slot) End() time.Time {
	return s.Start.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// BookingRequest carries who the slot is booked for.
type BookingRequest struct {
	PatientID string
}

// Engine enumerates free slots and books them.
type Engine struct {
	schedule ScheduleSource
	store    records.BookingStore
	locker   Locker
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger
	now      func() time.Time
	loc      *time.Location
}

// NewEngine creates an engine with an in-process locker.
func NewEngine(schedule ScheduleSource, store records.BookingStore, logger *logging.Logger) *Engine {
	if schedule == nil {
		schedule = DefaultSchedule()
	}
	if store == nil {
		panic("availability: booking store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		schedule: schedule,
		store:    store,
		locker:   NewKeyedMutex(),
		logger:   logger,
		now:      time.Now,
		loc:      time.Local,
	}
}

// WithLocker swaps the booking lock, e.g. for a RedisLocker.
func (e *Engine) WithLocker(l Locker) *Engine {
	if l != nil {
		e.locker = l
	}
	return e
}

// WithMetrics records booking outcomes.
func (e *Engine) WithMetrics(m *metrics.SchedulingMetrics) *Engine {
	e.metrics = m
	return e
}

// WithClock overrides the clock.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// WithLocation sets the clinic's time zone for schedule windows.
func (e *Engine) WithLocation(loc *time.Location) *Engine {
	if loc != nil {
		e.loc = loc
	}
	return e
}

// AvailableSlots lists free slots chronologically, starting tomorrow. Unknown
// doctor or location yields an empty slice.
func (e *Engine) AvailableSlots(ctx context.Context, doctor, location string, durationMinutes, daysAhead int) ([]Slot, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("availability: invalid duration %d", durationMinutes)
	}
	if daysAhead <= 0 {
		daysAhead = DefaultDaysAhead
	}
	sched, err := e.schedule.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("availability: load schedule: %w", err)
	}
	week, ok := sched.Find(doctor, location)
	if !ok {
		return []Slot{}, nil
	}
	bookings, err := e.store.ListDoctorBookings(ctx, doctor, location)
	if err != nil {
		return nil, fmt.Errorf("availability: list bookings: %w", err)
	}
	return e.generate(week, bookings, durationMinutes, daysAhead, MaxSlots)
}

func (e *Engine) generate(week DoctorSchedule, bookings []records.Booking, durationMinutes, daysAhead, limit int) ([]Slot, error) {
	slots := []Slot{}
	today := e.today()
	length := time.Duration(durationMinutes) * time.Minute

	for offset := 1; offset <= daysAhead; offset++ {
		day := today.AddDate(0, 0, offset)
		hours := week.Hours.GetHoursForDay(day.Weekday())
		if hours == nil {
			continue
		}
		start, end, err := hours.bounds(day)
		if err != nil {
			return nil, err
		}
		for t := start; !t.Add(length).After(end); t = t.Add(SlotStep) {
			if blocked(bookings, week.Doctor, week.Location, t, durationMinutes) {
				continue
			}
			slots = append(slots, Slot{Doctor: week.Doctor, Location: week.Location, Start: t, DurationMinutes: durationMinutes})
			if limit > 0 && len(slots) >= limit {
				return slots, nil
			}
		}
	}
	return slots, nil
}

func (e *Engine) today() time.Time {
	now := e.now().In(e.loc)
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.loc)
}

func blocked(bookings []records.Booking, doctor, location string, start time.Time, minutes int) bool {
	for _, b := range bookings {
		if b.SameResource(doctor, location) && b.Blocks(start, minutes) {
			return true
		}
	}
	return false
}

// Book re-checks the slot under the doctor/location lock and persists it. A
// slot taken in the meantime returns ErrSlotUnavailable.
func (e *Engine) Book(ctx context.Context, slot Slot, req BookingRequest) (records.Booking, error) {
	ctx, span := tracer.Start(ctx, "availability.book", trace.WithAttributes(
		attribute.String("clinic.doctor", slot.Doctor),
		attribute.String("clinic.location", slot.Location),
		attribute.String("clinic.slot_start", slot.Start.Format(time.RFC3339)),
	))
	defer span.End()

	booking, err := e.book(ctx, slot, req)
	switch {
	case err == nil:
		e.metrics.ObserveBooking("booked")
		span.SetAttributes(attribute.String("clinic.appointment_id", booking.AppointmentID))
		e.logger.Info("appointment booked", "appointment_id", booking.AppointmentID,
			"doctor", slot.Doctor, "location", slot.Location, "start", slot.Start)
	case errors.Is(err, ErrSlotUnavailable):
		e.metrics.ObserveBooking("conflict")
		e.logger.Info("slot no longer available", "doctor", slot.Doctor, "start", slot.Start)
	default:
		e.metrics.ObserveBooking("error")
		span.RecordError(err)
		e.logger.Error("booking failed", "error", err, "doctor", slot.Doctor)
	}
	return booking, err
}

func (e *Engine) book(ctx context.Context, slot Slot, req BookingRequest) (records.Booking, error) {
	if strings.TrimSpace(req.PatientID) == "" {
		return records.Booking{}, errors.New("availability: patient id is required")
	}
	sched, err := e.schedule.Current(ctx)
	if err != nil {
		return records.Booking{}, fmt.Errorf("availability: load schedule: %w", err)
	}
	week, ok := sched.Find(slot.Doctor, slot.Location)
	if !ok || !fitsSchedule(week, slot, e.loc) {
		return records.Booking{}, ErrSlotUnavailable
	}

	unlock, err := e.locker.Lock(ctx, lockKey(slot.Doctor, slot.Location))
	if err != nil {
		return records.Booking{}, fmt.Errorf("availability: lock: %w", err)
	}
	defer unlock()

	existing, err := e.store.ListDoctorBookings(ctx, slot.Doctor, slot.Location)
	if err != nil {
		return records.Booking{}, fmt.Errorf("availability: list bookings: %w", err)
	}
	if blocked(existing, slot.Doctor, slot.Location, slot.Start, slot.DurationMinutes) {
		return records.Booking{}, ErrSlotUnavailable
	}

	now := e.now()
	booking := records.Booking{
		AppointmentID:   records.NewAppointmentID(now),
		PatientID:       req.PatientID,
		Doctor:          week.Doctor,
		Start:           slot.Start,
		DurationMinutes: slot.DurationMinutes,
		Location:        week.Location,
		Status:          records.BookingConfirmed,
		CreatedAt:       now,
	}
	if err := e.store.SaveBooking(ctx, booking); err != nil {
		if errors.Is(err, records.ErrConflict) {
			return records.Booking{}, ErrSlotUnavailable
		}
		return records.Booking{}, fmt.Errorf("availability: save booking: %w", err)
	}
	return booking, nil
}

func fitsSchedule(week DoctorSchedule, slot Slot, loc *time.Location) bool {
	if slot.DurationMinutes <= 0 {
		return false
	}
	start := slot.Start.In(loc)
	hours := week.Hours.GetHoursForDay(start.Weekday())
	if hours == nil {
		return false
	}
	open, closeAt, err := hours.bounds(start)
	if err != nil {
		return false
	}
	return !start.Before(open) && !slot.End().After(closeAt)
}

func lockKey(doctor, location string) string {
	return strings.ToLower(strings.TrimSpace(doctor)) + "|" + strings.ToLower(strings.TrimSpace(location))
}

// Cancel moves a confirmed booking to cancelled, freeing its slot.
func (e *Engine) Cancel(ctx context.Context, appointmentID string) (records.Booking, error) {
	if err := e.store.UpdateBookingStatus(ctx, appointmentID, records.BookingCancelled); err != nil {
		return records.Booking{}, fmt.Errorf("availability: cancel %s: %w", appointmentID, err)
	}
	booking, err := e.store.GetBooking(ctx, appointmentID)
	if err != nil {
		return records.Booking{}, fmt.Errorf("availability: cancel %s: %w", appointmentID, err)
	}
	e.metrics.ObserveBooking("cancelled")
	e.logger.Info("appointment cancelled", "appointment_id", appointmentID)
	return booking, nil
}

// Summary counts open slots per date for a doctor and location.
type Summary struct {
	Doctor          string         `json:"doctor"`
	Location        string         `json:"location"`
	DurationMinutes int            `json:"duration"`
	TotalSlots      int            `json:"total_slots"`
	ByDate          map[string]int `json:"by_date"`
	FirstAvailable  *time.Time     `json:"first_available,omitempty"`
}

// Summary is uncapped, unlike AvailableSlots.
func (e *Engine) Summary(ctx context.Context, doctor, location string, durationMinutes, daysAhead int) (Summary, error) {
	if durationMinutes <= 0 {
		durationMinutes = 30
	}
	if daysAhead <= 0 {
		daysAhead = DefaultDaysAhead
	}
	out := Summary{Doctor: doctor, Location: location, DurationMinutes: durationMinutes, ByDate: map[string]int{}}
	sched, err := e.schedule.Current(ctx)
	if err != nil {
		return out, fmt.Errorf("availability: load schedule: %w", err)
	}
	week, ok := sched.Find(doctor, location)
	if !ok {
		return out, nil
	}
	bookings, err := e.store.ListDoctorBookings(ctx, doctor, location)
	if err != nil {
		return out, fmt.Errorf("availability: list bookings: %w", err)
	}
	slots, err := e.generate(week, bookings, durationMinutes, daysAhead, 0)
	if err != nil {
		return out, err
	}
	out.TotalSlots = len(slots)
	for _, s := range slots {
		out.ByDate[s.Start.Format("2006-01-02")]++
	}
	if len(slots) > 0 {
		first := slots[0].Start
		out.FirstAvailable = &first
	}
	return out, nil
}

// DoctorAvailability describes a doctor's recurring week.
type DoctorAvailability struct {
	Available        bool     `json:"available"`
	Doctor           string   `json:"doctor"`
	TotalWeeklyHours float64  `json:"total_weekly_hours"`
	Locations        []string `json:"locations,omitempty"`
	Weekdays         []string `json:"weekdays,omitempty"`
	Message          string   `json:"message"`
}

// DoctorAvailability totals weekly hours across every location the doctor works.
func (e *Engine) DoctorAvailability(ctx context.Context, doctor string) (DoctorAvailability, error) {
	sched, err := e.schedule.Current(ctx)
	if err != nil {
		return DoctorAvailability{}, fmt.Errorf("availability: load schedule: %w", err)
	}
	weeks := sched.ForDoctor(doctor)
	if len(weeks) == 0 {
		return DoctorAvailability{Doctor: doctor, Message: fmt.Sprintf("Dr. %s not found in our system.", doctor)}, nil
	}

	out := DoctorAvailability{Available: true, Doctor: weeks[0].Doctor}
	seenLoc := map[string]bool{}
	seenDay := map[time.Weekday]bool{}
	for _, w := range weeks {
		if !seenLoc[w.Location] {
			seenLoc[w.Location] = true
			out.Locations = append(out.Locations, w.Location)
		}
		for _, wd := range weekOrder {
			h := w.Hours.GetHoursForDay(wd)
			if h == nil {
				continue
			}
			out.TotalWeeklyHours += h.hours()
			seenDay[wd] = true
		}
	}
	for _, wd := range weekOrder {
		if seenDay[wd] {
			out.Weekdays = append(out.Weekdays, wd.String())
		}
	}
	sort.Strings(out.Locations)
	out.Message = fmt.Sprintf("Dr. %s is available %g hours per week across %d location(s).",
		out.Doctor, out.TotalWeeklyHours, len(out.Locations))
	return out, nil
}
