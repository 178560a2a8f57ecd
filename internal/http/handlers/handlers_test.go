package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/audit"
	"github.com/wolfman30/clinic-intake/internal/availability"
	"github.com/wolfman30/clinic-intake/internal/records"
	"github.com/wolfman30/clinic-intake/internal/reminders"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

var sunday = time.Date(2025, time.January, 5, 8, 0, 0, 0, time.UTC)

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) LogEvent(_ context.Context, e audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingAudit) types() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	store   *records.MemoryStore
	engine  *availability.Engine
	audit   *recordingAudit
	router  chi.Router
	patient records.Patient
	booking records.Booking
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := records.NewMemoryStore()
	engine := availability.NewEngine(availability.DefaultSchedule(), store, logging.Default()).
		WithLocation(time.UTC).
		WithClock(func() time.Time { return sunday })

	patient, err := store.CreatePatient(ctx, records.Patient{Name: "Ann Lee", DateOfBirth: "1990-02-03", Email: "ann@example.com"})
	require.NoError(t, err)
	booking, err := engine.Book(ctx, availability.Slot{
		Doctor: "Smith", Location: "Downtown",
		Start:           time.Date(2025, time.January, 13, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
	}, availability.BookingRequest{PatientID: patient.PatientID})
	require.NoError(t, err)
	_, err = reminders.NewScheduler(store, nil, logging.Default()).
		WithClock(func() time.Time { return sunday }).
		Schedule(ctx, booking, patient.PatientID)
	require.NoError(t, err)

	f := &fixture{store: store, engine: engine, audit: &recordingAudit{}, patient: patient, booking: booking}
	r := chi.NewRouter()
	NewClinicHandler(engine, store, f.audit, 14, logging.Default()).Routes(r)
	NewReminderHandler(store, reminders.NewResponder(store, engine), nil, f.audit, logging.Default()).Routes(r)
	f.router = r
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestSlotsSkipBookedTime(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/availability?doctor=Smith&location=Downtown&duration=30", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Slots []availability.Slot `json:"slots"`
		Count int                 `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, availability.MaxSlots, resp.Count)
	for _, s := range resp.Slots {
		assert.False(t, s.Start.Equal(f.booking.Start), "booked slot must not be offered")
	}

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/availability?doctor=Smith", "").Code)
}

func TestSummaryAndDoctor(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/availability/summary?doctor=Smith&location=Downtown&duration=60&days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary availability.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, 60, summary.DurationMinutes)
	assert.Greater(t, summary.TotalSlots, 0)

	rec = f.do(http.MethodGet, "/doctors/Smith/availability", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc availability.DoctorAvailability
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	assert.True(t, doc.Available)
	assert.Equal(t, []string{"Downtown"}, doc.Locations)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/doctors/Nobody/availability", "").Code)
}

func TestPatientHistory(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/patients/"+f.patient.PatientID+"/appointments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp PatientHistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Ann Lee", resp.Patient.Name)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, f.booking.AppointmentID, resp.Appointments[0].AppointmentID)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/patients/missing/appointments", "").Code)
}

func TestCancelAppointment(t *testing.T) {
	f := newFixture(t)
	path := "/appointments/" + f.booking.AppointmentID

	rec := f.do(http.MethodPost, path+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var booking records.Booking
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&booking))
	assert.Equal(t, records.BookingCancelled, booking.Status)
	assert.Equal(t, []audit.EventType{audit.EventBookingCancelled}, f.audit.types())

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, path+"/cancel", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/appointments/nope/cancel", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/appointments/APT20250113ZZZZZZ", "").Code)
}

func TestReminderListAndResponse(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/appointments/"+f.booking.AppointmentID+"/reminders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Reminders []records.Reminder `json:"reminders"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list.Reminders, 3)

	id := records.ReminderID(f.booking.AppointmentID, 1)
	rec = f.do(http.MethodPost, "/reminders/"+id+"/response", `{"response":"Yes, I will be there"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp reminders.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, records.ReminderConfirmed, resp.Status)
	assert.False(t, resp.RequiresFollowup)
	assert.Equal(t, []audit.EventType{audit.EventReminderResponse}, f.audit.types())
}

func TestReminderCancelResponseReleasesSlot(t *testing.T) {
	f := newFixture(t)
	id := records.ReminderID(f.booking.AppointmentID, 3)

	rec := f.do(http.MethodPost, "/reminders/"+id+"/response", `{"response":"I need to cancel"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	booking, err := f.store.GetBooking(context.Background(), f.booking.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, records.BookingCancelled, booking.Status)
	assert.Equal(t, []audit.EventType{audit.EventReminderResponse, audit.EventBookingCancelled}, f.audit.types())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/reminders/"+id+"/response", `{"response":" "}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/reminders/missing_1d/response", `{"response":"yes"}`).Code)
}

type stubSender struct {
	delivery reminders.Delivery
	err      error
}

func (s stubSender) Send(context.Context, string) (reminders.Delivery, error) {
	return s.delivery, s.err
}

func TestReminderSendRoute(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	NewReminderHandler(f.store, reminders.NewResponder(f.store, nil), stubSender{
		delivery: reminders.Delivery{ReminderID: "x_1d", EmailSent: true},
	}, nil, logging.Default()).Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reminders/x_1d/send", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"x_1d"`)

	r = chi.NewRouter()
	NewReminderHandler(f.store, reminders.NewResponder(f.store, nil), stubSender{err: errors.New("boom")}, nil, logging.Default()).Routes(r)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reminders/x_1d/send", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// no sender, no route
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/reminders/x_1d/send", "").Code)
}
