package reminders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/notify"
	"github.com/wolfman30/clinic-intake/internal/records"
)

type fakeChannels struct {
	mu      sync.Mutex
	emails  []notify.EmailMessage
	sms     []string
	emailOK bool
	smsOK   bool
}

func (f *fakeChannels) SendEmail(_ context.Context, msg notify.EmailMessage) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, msg)
	return f.emailOK
}

func (f *fakeChannels) SendSMS(_ context.Context, _, body string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sms = append(f.sms, body)
	return f.smsOK
}

func seed(t *testing.T) (*records.MemoryStore, records.Booking) {
	t.Helper()
	ctx := context.Background()
	store := records.NewMemoryStore()
	patient, err := store.CreatePatient(ctx, records.Patient{Name: "John Smith", DateOfBirth: "01/15/1990", Email: "john@example.com", Phone: "+15551234567"})
	require.NoError(t, err)
	b := booking(10)
	b.PatientID = patient.PatientID
	require.NoError(t, store.SaveBooking(ctx, b))
	_, err = NewScheduler(store, nil, nil).WithClock(func() time.Time { return now }).Schedule(ctx, b, patient.PatientID)
	require.NoError(t, err)
	return store, b
}

func TestSendDeliversAndMarksSent(t *testing.T) {
	store, b := seed(t)
	ch := &fakeChannels{emailOK: true, smsOK: true}
	id := records.ReminderID(b.AppointmentID, 3)

	out, err := NewSender(store, ch, nil, nil).Send(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, out.EmailSent)
	assert.True(t, out.SMSSent)
	assert.Equal(t, records.ReminderFormCheck, out.Type)

	require.Len(t, ch.emails, 1)
	assert.Equal(t, "john@example.com", ch.emails[0].To)
	assert.Equal(t, EmailSubject(b), ch.emails[0].Subject)
	require.Len(t, ch.sms, 1)

	r, err := store.GetReminder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, records.ReminderSent, r.Status)
}

func TestSendMarksSentWhenChannelsFail(t *testing.T) {
	store, b := seed(t)
	id := records.ReminderID(b.AppointmentID, 7)

	out, err := NewSender(store, &fakeChannels{}, nil, nil).Send(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, out.EmailSent)
	assert.False(t, out.SMSSent)

	r, _ := store.GetReminder(context.Background(), id)
	assert.Equal(t, records.ReminderSent, r.Status)
}

func TestSendSkipsAlreadySent(t *testing.T) {
	store, b := seed(t)
	ch := &fakeChannels{emailOK: true, smsOK: true}
	sender := NewSender(store, ch, nil, nil)
	id := records.ReminderID(b.AppointmentID, 1)

	_, err := sender.Send(context.Background(), id)
	require.NoError(t, err)
	out, err := sender.Send(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Len(t, ch.emails, 1)
}

func TestSendCancelsReminderForCancelledBooking(t *testing.T) {
	store, b := seed(t)
	ctx := context.Background()
	require.NoError(t, store.UpdateBookingStatus(ctx, b.AppointmentID, records.BookingCancelled))
	ch := &fakeChannels{emailOK: true, smsOK: true}
	id := records.ReminderID(b.AppointmentID, 7)

	out, err := NewSender(store, ch, nil, nil).Send(ctx, id)
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Empty(t, ch.emails)

	r, _ := store.GetReminder(ctx, id)
	assert.Equal(t, records.ReminderCancelled, r.Status)
}

func TestSendUnknownReminder(t *testing.T) {
	_, err := NewSender(records.NewMemoryStore(), &fakeChannels{}, nil, nil).Send(context.Background(), "nope")
	require.ErrorIs(t, err, records.ErrNotFound)
}

func TestConcurrentSendsDeliverOnce(t *testing.T) {
	store, b := seed(t)
	ch := &fakeChannels{emailOK: true, smsOK: true}
	sender := NewSender(store, ch, nil, nil)
	id := records.ReminderID(b.AppointmentID, 1)

	var wg sync.WaitGroup
	results := make([]Delivery, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := sender.Send(context.Background(), id)
			assert.NoError(t, err)
			results[i] = out
		}(i)
	}
	wg.Wait()

	assert.Len(t, ch.emails, 1)
	assert.Len(t, ch.sms, 1)
	assert.NotEqual(t, results[0].Skipped, results[1].Skipped)
}

func TestSendDeliversQueuedReminder(t *testing.T) {
	store, b := seed(t)
	ctx := context.Background()
	ch := &fakeChannels{emailOK: true, smsOK: true}
	id := records.ReminderID(b.AppointmentID, 7)
	require.NoError(t, store.UpdateReminderStatus(ctx, id, records.ReminderQueued))

	out, err := NewSender(store, ch, nil, nil).Send(ctx, id)
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.Len(t, ch.emails, 1)

	// redelivery of the same job is a no-op
	out, err = NewSender(store, ch, nil, nil).Send(ctx, id)
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Len(t, ch.emails, 1)
}
