package scheduling

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/availability"
	"github.com/wolfman30/clinic-intake/internal/intake"
	"github.com/wolfman30/clinic-intake/internal/records"
)

var sunday = time.Date(2025, time.January, 5, 12, 0, 0, 0, time.UTC)

func newEngine(store records.BookingStore) *availability.Engine {
	return availability.NewEngine(availability.DefaultSchedule(), store, nil).
		WithLocation(time.UTC).
		WithClock(func() time.Time { return sunday })
}

var smith = intake.PatientInfo{Name: "John Smith", DateOfBirth: "01/15/1990", PreferredDoctor: "Smith", Location: "Downtown"}

func TestProcessOptionTwoBooksSecondSlot(t *testing.T) {
	store := records.NewMemoryStore()
	engine := newEngine(store)
	agent := NewAgent(engine, nil, 14, nil)
	ctx := context.Background()

	slots, err := engine.AvailableSlots(ctx, "Smith", "Downtown", 60, 14)
	require.NoError(t, err)

	res, err := agent.Process(ctx, "Option 2", smith, Appointment{PatientID: "p1", DurationMinutes: 60})
	require.NoError(t, err)
	require.NotNil(t, res.Booking)
	require.NotNil(t, res.BookingSuccessful)
	assert.True(t, *res.BookingSuccessful)
	assert.Equal(t, SignalInsuranceCollection, res.NextStep)
	assert.Equal(t, slots[1].Start, res.Booking.Start)
	assert.Equal(t, 60, res.Booking.DurationMinutes)
	assert.Contains(t, res.Message, "Monday, January 6, 2025 at 9:30 AM")
	assert.Contains(t, res.Message, res.Booking.AppointmentID)

	saved, err := store.GetBooking(ctx, res.Booking.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, "p1", saved.PatientID)
}

func TestProcessPresentsSixSlots(t *testing.T) {
	agent := NewAgent(newEngine(records.NewMemoryStore()), nil, 14, nil)

	res, err := agent.Process(context.Background(), "what times do you have?", smith, Appointment{PatientID: "p1", DurationMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, SignalSlotSelection, res.NextStep)
	assert.Nil(t, res.Booking)
	assert.Nil(t, res.BookingSuccessful)
	assert.Contains(t, res.Message, "1. Monday, January 6, 2025 at 9:00 AM")
	assert.Contains(t, res.Message, "6. Monday, January 6, 2025 at 11:30 AM")
	assert.NotContains(t, res.Message, "7. ")
	assert.Len(t, res.Slots, availability.MaxSlots)
}

func TestProcessSelectsOnlyAmongPresentedSlots(t *testing.T) {
	store := records.NewMemoryStore()
	agent := NewAgent(newEngine(store), nil, 14, nil)
	ctx := context.Background()
	appt := Appointment{PatientID: "p1", DurationMinutes: 60}

	for _, text := range []string{"Option 7", "12:00 please"} {
		res, err := agent.Process(ctx, text, smith, appt)
		require.NoError(t, err)
		assert.Equal(t, SignalSlotSelection, res.NextStep, text)
		assert.Nil(t, res.Booking, text)
		assert.Contains(t, res.Message, "6. Monday, January 6, 2025 at 11:30 AM", text)
	}

	bookings, err := store.ListDoctorBookings(ctx, "Smith", "Downtown")
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestProcessNoAvailability(t *testing.T) {
	agent := NewAgent(newEngine(records.NewMemoryStore()), nil, 14, nil)
	patient := smith
	patient.PreferredDoctor = "House"

	res, err := agent.Process(context.Background(), "1", patient, Appointment{PatientID: "p1", DurationMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, SignalAlternativeOptions, res.NextStep)
	assert.Equal(t, "I'm sorry, but Dr. House doesn't have any available 60-minute slots in the next two weeks at our Downtown location. "+
		"Would you like me to check with another doctor or a different location?", res.Message)
}

type fakeBooker struct {
	slots   []availability.Slot
	listErr error
	bookErr error
}

func (f fakeBooker) AvailableSlots(context.Context, string, string, int, int) ([]availability.Slot, error) {
	return f.slots, f.listErr
}

func (f fakeBooker) Book(_ context.Context, slot availability.Slot, req availability.BookingRequest) (records.Booking, error) {
	if f.bookErr != nil {
		return records.Booking{}, f.bookErr
	}
	return records.Booking{AppointmentID: "APT20250105ABC123", PatientID: req.PatientID, Doctor: slot.Doctor,
		Location: slot.Location, Start: slot.Start, DurationMinutes: slot.DurationMinutes, Status: records.BookingConfirmed}, nil
}

func testSlots() []availability.Slot {
	mk := func(day, hour, minute int) availability.Slot {
		return availability.Slot{Doctor: "Smith", Location: "Downtown", DurationMinutes: 30,
			Start: time.Date(2025, time.January, day, hour, minute, 0, 0, time.UTC)}
	}
	return []availability.Slot{
		mk(6, 9, 0), mk(6, 10, 30), mk(7, 9, 0), mk(7, 10, 30), mk(15, 14, 30), mk(15, 15, 0),
	}
}

func TestProcessSlotTakenRoutesToReschedule(t *testing.T) {
	agent := NewAgent(fakeBooker{slots: testSlots(), bookErr: availability.ErrSlotUnavailable}, nil, 14, nil)

	res, err := agent.Process(context.Background(), "1", smith, Appointment{PatientID: "p1", DurationMinutes: 30})
	require.NoError(t, err)
	assert.Equal(t, SignalReschedule, res.NextStep)
	require.NotNil(t, res.BookingSuccessful)
	assert.False(t, *res.BookingSuccessful)
	assert.True(t, strings.HasPrefix(res.Message, "I'm sorry, but that time slot is no longer available."))
	assert.Contains(t, res.Message, "1. Monday, January 6, 2025 at 9:00 AM")
}

func TestProcessStorageFailureStaysOnScheduling(t *testing.T) {
	boom := errors.New("db down")

	agent := NewAgent(fakeBooker{listErr: boom}, nil, 14, nil)
	res, err := agent.Process(context.Background(), "1", smith, Appointment{PatientID: "p1", DurationMinutes: 30})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, SignalRetry, res.NextStep)
	assert.Nil(t, res.Booking)

	agent = NewAgent(fakeBooker{slots: testSlots(), bookErr: boom}, nil, 14, nil)
	res, err = agent.Process(context.Background(), "1", smith, Appointment{PatientID: "p1", DurationMinutes: 30})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, SignalRetry, res.NextStep)
	assert.Nil(t, res.BookingSuccessful)
}

func TestSelectSlot(t *testing.T) {
	slots := testSlots()
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "bare number", input: "2", want: 1},
		{name: "option", input: "Option 3", want: 2},
		{name: "number word", input: "number 6 please", want: 5},
		{name: "out of range", input: "9", want: -1},
		{name: "zero", input: "0", want: -1},
		{name: "month and day", input: "January 7 works", want: 2},
		{name: "zero padded day", input: "january 07", want: 2},
		{name: "date and time", input: "january 7 at 10:30", want: 3},
		{name: "time only", input: "how about 2:30", want: 4},
		{name: "day is not a prefix", input: "january 1", want: -1},
		{name: "hour is not a suffix", input: "11:00", want: -1},
		{name: "no match", input: "whenever", want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectSlot(tt.input, slots)
			if tt.want < 0 {
				assert.False(t, ok, "unexpected selection %v", got.Start)
				return
			}
			require.True(t, ok)
			assert.Equal(t, slots[tt.want], got)
		})
	}
}

func TestFormatSlots(t *testing.T) {
	assert.Equal(t, "No available slots found.", FormatSlots(nil))

	out := FormatSlots(testSlots()[:2])
	assert.Equal(t, "Here are the available appointment times:\n\n"+
		"1. Monday, January 6, 2025 at 9:00 AM\n"+
		"2. Monday, January 6, 2025 at 10:30 AM\n"+
		"\nPlease let me know which time works best for you by saying the number or date and time.", out)
}
