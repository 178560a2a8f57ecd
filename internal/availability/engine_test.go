package availability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/records"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// Sunday, so tomorrow is a Monday.
var sunday = time.Date(2025, time.January, 5, 12, 0, 0, 0, time.UTC)

func newTestEngine(store records.BookingStore, now time.Time) *Engine {
	return NewEngine(DefaultSchedule(), store, logging.Default()).
		WithLocation(time.UTC).
		WithClock(func() time.Time { return now })
}

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.January, day, hour, minute, 0, 0, time.UTC)
}

func TestAvailableSlotsFollowsWeeklySchedule(t *testing.T) {
	engine := newTestEngine(records.NewMemoryStore(), sunday)

	slots, err := engine.AvailableSlots(context.Background(), "Smith", "Downtown", 30, 14)
	require.NoError(t, err)
	require.Len(t, slots, MaxSlots)

	assert.Equal(t, at(6, 9, 0), slots[0].Start)
	assert.Equal(t, at(6, 16, 30), slots[15].Start, "last 30 minute slot must end at close")
	assert.Equal(t, at(7, 9, 0), slots[16].Start)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i].Start.After(slots[i-1].Start), "slots must be chronological")
	}
	for _, s := range slots {
		assert.Equal(t, "Smith", s.Doctor)
		assert.Equal(t, "Downtown", s.Location)
		assert.Equal(t, 30, s.DurationMinutes)
	}
}

func TestAvailableSlotsSkipsDaysOff(t *testing.T) {
	friday := time.Date(2025, time.January, 10, 8, 0, 0, 0, time.UTC)
	engine := newTestEngine(records.NewMemoryStore(), friday)

	slots, err := engine.AvailableSlots(context.Background(), "johnson", "UPTOWN", 60, 14)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, time.Date(2025, time.January, 13, 8, 0, 0, 0, time.UTC), slots[0].Start)
}

func TestAvailableSlotsAvoidsConfirmedBookings(t *testing.T) {
	store := records.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.SaveBooking(ctx, records.Booking{
		AppointmentID: "APT20250105AAAAAA", PatientID: "p1", Doctor: "Smith", Location: "Downtown",
		Start: at(6, 10, 0), DurationMinutes: 60, Status: records.BookingConfirmed,
	}))
	engine := newTestEngine(store, sunday)

	slots, err := engine.AvailableSlots(ctx, "Smith", "Downtown", 60, 1)
	require.NoError(t, err)

	starts := map[time.Time]bool{}
	for _, s := range slots {
		starts[s.Start] = true
		assert.False(t, records.Overlaps(s.Start, 60, at(6, 10, 0), 60), "slot %s overlaps booking", s.Start)
	}
	assert.True(t, starts[at(6, 9, 0)], "slot ending at booking start is free")
	assert.True(t, starts[at(6, 11, 0)], "slot starting at booking end is free")
	assert.False(t, starts[at(6, 9, 30)])
	assert.False(t, starts[at(6, 10, 30)])
	assert.Len(t, slots, 12)
}

func TestCancelledBookingsNeverBlock(t *testing.T) {
	store := records.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.SaveBooking(ctx, records.Booking{
		AppointmentID: "APT20250105BBBBBB", PatientID: "p1", Doctor: "Smith", Location: "Downtown",
		Start: at(6, 9, 0), DurationMinutes: 60, Status: records.BookingCancelled,
	}))
	engine := newTestEngine(store, sunday)

	slots, err := engine.AvailableSlots(ctx, "Smith", "Downtown", 60, 1)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, at(6, 9, 0), slots[0].Start)
}

func TestAvailableSlotsUnknownDoctor(t *testing.T) {
	engine := newTestEngine(records.NewMemoryStore(), sunday)

	slots, err := engine.AvailableSlots(context.Background(), "House", "Downtown", 30, 14)
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)

	slots, err = engine.AvailableSlots(context.Background(), "Smith", "Uptown", 30, 14)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestBookRejectsSecondBookingForSameSlot(t *testing.T) {
	store := records.NewMemoryStore()
	engine := newTestEngine(store, sunday)
	ctx := context.Background()
	slot := Slot{Doctor: "Smith", Location: "Downtown", Start: at(6, 9, 0), DurationMinutes: 60}

	booking, err := engine.Book(ctx, slot, BookingRequest{PatientID: "p1"})
	require.NoError(t, err)
	assert.True(t, records.ValidAppointmentID(booking.AppointmentID))
	assert.Equal(t, records.BookingConfirmed, booking.Status)
	assert.Equal(t, sunday, booking.CreatedAt)

	_, err = engine.Book(ctx, slot, BookingRequest{PatientID: "p2"})
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	overlapping := Slot{Doctor: "Smith", Location: "Downtown", Start: at(6, 9, 30), DurationMinutes: 30}
	_, err = engine.Book(ctx, overlapping, BookingRequest{PatientID: "p2"})
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	saved, err := store.ListDoctorBookings(ctx, "Smith", "Downtown")
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestBookConcurrentSingleWinner(t *testing.T) {
	store := records.NewMemoryStore()
	engine := newTestEngine(store, sunday)
	slot := Slot{Doctor: "Wilson", Location: "Midtown", Start: at(6, 10, 0), DurationMinutes: 30}

	const attempts = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Book(context.Background(), slot, BookingRequest{PatientID: "p"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrSlotUnavailable):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, conflicts)
}

func TestBookOutsideScheduleIsUnavailable(t *testing.T) {
	engine := newTestEngine(records.NewMemoryStore(), sunday)
	ctx := context.Background()

	_, err := engine.Book(ctx, Slot{Doctor: "Smith", Location: "Downtown", Start: at(6, 16, 30), DurationMinutes: 60}, BookingRequest{PatientID: "p1"})
	assert.ErrorIs(t, err, ErrSlotUnavailable, "runs past close")

	_, err = engine.Book(ctx, Slot{Doctor: "Smith", Location: "Downtown", Start: at(11, 9, 0), DurationMinutes: 30}, BookingRequest{PatientID: "p1"})
	assert.ErrorIs(t, err, ErrSlotUnavailable, "saturday")

	_, err = engine.Book(ctx, Slot{Doctor: "Nobody", Location: "Downtown", Start: at(6, 9, 0), DurationMinutes: 30}, BookingRequest{PatientID: "p1"})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

type conflictingStore struct {
	*records.MemoryStore
	saveErr error
	listErr error
}

func (s conflictingStore) SaveBooking(ctx context.Context, b records.Booking) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.MemoryStore.SaveBooking(ctx, b)
}

func (s conflictingStore) ListDoctorBookings(ctx context.Context, doctor, location string) ([]records.Booking, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryStore.ListDoctorBookings(ctx, doctor, location)
}

func TestBookTranslatesStoreConflict(t *testing.T) {
	store := conflictingStore{MemoryStore: records.NewMemoryStore(), saveErr: records.ErrConflict}
	engine := newTestEngine(store, sunday)

	_, err := engine.Book(context.Background(), Slot{Doctor: "Smith", Location: "Downtown", Start: at(6, 9, 0), DurationMinutes: 30}, BookingRequest{PatientID: "p1"})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestBookStorageFailureIsNotAConflict(t *testing.T) {
	boom := errors.New("connection reset")
	store := conflictingStore{MemoryStore: records.NewMemoryStore(), saveErr: boom}
	engine := newTestEngine(store, sunday)

	_, err := engine.Book(context.Background(), Slot{Doctor: "Smith", Location: "Downtown", Start: at(6, 9, 0), DurationMinutes: 30}, BookingRequest{PatientID: "p1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrSlotUnavailable)
}

func TestAvailableSlotsStorageFailure(t *testing.T) {
	store := conflictingStore{MemoryStore: records.NewMemoryStore(), listErr: errors.New("timeout")}
	engine := newTestEngine(store, sunday)

	_, err := engine.AvailableSlots(context.Background(), "Smith", "Downtown", 30, 14)
	assert.Error(t, err)
}

func TestCancelFreesSlot(t *testing.T) {
	store := records.NewMemoryStore()
	engine := newTestEngine(store, sunday)
	ctx := context.Background()
	slot := Slot{Doctor: "Smith", Location: "Downtown", Start: at(6, 9, 0), DurationMinutes: 30}

	booking, err := engine.Book(ctx, slot, BookingRequest{PatientID: "p1"})
	require.NoError(t, err)

	cancelled, err := engine.Cancel(ctx, booking.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, records.BookingCancelled, cancelled.Status)

	_, err = engine.Book(ctx, slot, BookingRequest{PatientID: "p2"})
	assert.NoError(t, err)

	_, err = engine.Cancel(ctx, "APT20250105ZZZZZZ")
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestSummaryCountsPerDate(t *testing.T) {
	engine := newTestEngine(records.NewMemoryStore(), sunday)

	summary, err := engine.Summary(context.Background(), "Smith", "Downtown", 60, 7)
	require.NoError(t, err)
	// Mon-Thu 9-17 gives 15 hour-long starts, Fri 9-15 gives 11.
	assert.Equal(t, 15*4+11, summary.TotalSlots)
	assert.Equal(t, 15, summary.ByDate["2025-01-06"])
	assert.Equal(t, 11, summary.ByDate["2025-01-10"])
	require.NotNil(t, summary.FirstAvailable)
	assert.Equal(t, at(6, 9, 0), *summary.FirstAvailable)
}

func TestDoctorAvailability(t *testing.T) {
	engine := newTestEngine(records.NewMemoryStore(), sunday)

	got, err := engine.DoctorAvailability(context.Background(), "smith")
	require.NoError(t, err)
	assert.True(t, got.Available)
	assert.Equal(t, float64(38), got.TotalWeeklyHours)
	assert.Equal(t, []string{"Downtown"}, got.Locations)
	assert.Equal(t, []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}, got.Weekdays)
	assert.Equal(t, "Dr. Smith is available 38 hours per week across 1 location(s).", got.Message)

	missing, err := engine.DoctorAvailability(context.Background(), "House")
	require.NoError(t, err)
	assert.False(t, missing.Available)
	assert.Equal(t, "Dr. House not found in our system.", missing.Message)
}
