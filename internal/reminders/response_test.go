package reminders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/records"
)

func TestClassify(t *testing.T) {
	cases := map[string]records.ReminderStatus{
		"Yes, I'll be there":            records.ReminderConfirmed,
		"CONFIRMED":                     records.ReminderConfirmed,
		"I will be there":               records.ReminderConfirmed,
		"No, please cancel":             records.ReminderCancelled,
		"I can't make it":               records.ReminderCancelled,
		"need to reschedule":            records.ReminderCancelled,
		"Yes but I need to reschedule":  records.ReminderCancelled,
		"Yes, no problem, see you then": records.ReminderConfirmed,
		"Yes I confirm, I cannot wait!": records.ReminderConfirmed,
		"I won't be there":              records.ReminderCancelled,
		"not attending after all":       records.ReminderCancelled,
		"forms are completed":           records.ReminderFormsCompleted,
		"all done":                      records.ReminderFormsCompleted,
		"what time again?":              records.ReminderResponded,
		"I know the address":            records.ReminderResponded,
		"noted, yesterday was busy":     records.ReminderResponded,
		"":                              records.ReminderResponded,
	}
	for text, want := range cases {
		assert.Equal(t, want, Classify(text), text)
	}
}

type cancelRecorder struct {
	store *records.MemoryStore
	ids   []string
}

func (c *cancelRecorder) Cancel(ctx context.Context, id string) (records.Booking, error) {
	c.ids = append(c.ids, id)
	if err := c.store.UpdateBookingStatus(ctx, id, records.BookingCancelled); err != nil {
		return records.Booking{}, err
	}
	return c.store.GetBooking(ctx, id)
}

func TestInterpretConfirm(t *testing.T) {
	store, b := seed(t)
	canceller := &cancelRecorder{store: store}
	id := records.ReminderID(b.AppointmentID, 1)

	resp, err := NewResponder(store, canceller).Interpret(context.Background(), id, " Yes! ")
	require.NoError(t, err)
	assert.Equal(t, records.ReminderConfirmed, resp.Status)
	assert.Equal(t, "Thank you for confirming your appointment!", resp.Message)
	assert.False(t, resp.RequiresFollowup)
	assert.Empty(t, canceller.ids)

	r, _ := store.GetReminder(context.Background(), id)
	assert.Equal(t, records.ReminderConfirmed, r.Status)
	assert.Equal(t, "Yes!", r.Response)
}

func TestInterpretConfirmWithNoDoesNotCancel(t *testing.T) {
	store, b := seed(t)
	canceller := &cancelRecorder{store: store}
	ctx := context.Background()

	resp, err := NewResponder(store, canceller).Interpret(ctx, records.ReminderID(b.AppointmentID, 1), "Yes, no problem, see you then")
	require.NoError(t, err)
	assert.Equal(t, records.ReminderConfirmed, resp.Status)
	assert.Empty(t, canceller.ids)

	got, _ := store.GetBooking(ctx, b.AppointmentID)
	assert.Equal(t, records.BookingConfirmed, got.Status)
}

func TestInterpretCancelCancelsBooking(t *testing.T) {
	store, b := seed(t)
	canceller := &cancelRecorder{store: store}
	responder := NewResponder(store, canceller)
	ctx := context.Background()

	resp, err := responder.Interpret(ctx, records.ReminderID(b.AppointmentID, 7), "cancel please")
	require.NoError(t, err)
	assert.True(t, resp.RequiresFollowup)
	assert.Contains(t, resp.Message, "noted your cancellation")
	assert.Equal(t, []string{b.AppointmentID}, canceller.ids)

	got, _ := store.GetBooking(ctx, b.AppointmentID)
	assert.Equal(t, records.BookingCancelled, got.Status)

	// A second cancel answer is recorded without failing on the settled booking.
	_, err = responder.Interpret(ctx, records.ReminderID(b.AppointmentID, 3), "no")
	require.NoError(t, err)
}

func TestInterpretUnknownReminder(t *testing.T) {
	_, err := NewResponder(records.NewMemoryStore(), nil).Interpret(context.Background(), "missing", "yes")
	require.ErrorIs(t, err, records.ErrNotFound)
}
