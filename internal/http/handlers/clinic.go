package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-intake/internal/audit"
	"github.com/wolfman30/clinic-intake/internal/availability"
	"github.com/wolfman30/clinic-intake/internal/records"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// ClinicHandler serves availability, appointment and patient history endpoints.
type ClinicHandler struct {
	engine    *availability.Engine
	store     records.Store
	audit     audit.Logger
	daysAhead int
	logger    *logging.Logger
}

// NewClinicHandler creates a clinic handler. A nil audit logger records nothing.
func NewClinicHandler(engine *availability.Engine, store records.Store, auditLogger audit.Logger, daysAhead int, logger *logging.Logger) *ClinicHandler {
	if engine == nil {
		panic("handlers: availability engine cannot be nil")
	}
	if store == nil {
		panic("handlers: record store cannot be nil")
	}
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if daysAhead <= 0 {
		daysAhead = availability.DefaultDaysAhead
	}
	return &ClinicHandler{engine: engine, store: store, audit: auditLogger, daysAhead: daysAhead, logger: logger}
}

// Routes mounts the clinic endpoints.
func (h *ClinicHandler) Routes(r chi.Router) {
	r.Get("/availability", h.Slots)
	r.Get("/availability/summary", h.Summary)
	r.Get("/doctors/{doctor}/availability", h.Doctor)
	r.Get("/patients/{patientID}/appointments", h.PatientHistory)
	r.Get("/appointments/{appointmentID}", h.GetAppointment)
	r.Post("/appointments/{appointmentID}/cancel", h.CancelAppointment)
}

func resourceParams(r *http.Request) (string, string, bool) {
	doctor := strings.TrimSpace(r.URL.Query().Get("doctor"))
	location := strings.TrimSpace(r.URL.Query().Get("location"))
	return doctor, location, doctor != "" && location != ""
}

// Slots handles GET /availability?doctor=&location=&duration=&days=
func (h *ClinicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	doctor, location, ok := resourceParams(r)
	if !ok {
		http.Error(w, "doctor and location are required", http.StatusBadRequest)
		return
	}
	slots, err := h.engine.AvailableSlots(r.Context(), doctor, location, queryInt(r, "duration", 30), queryInt(r, "days", h.daysAhead))
	if err != nil {
		h.logger.Error("failed to list slots", "doctor", doctor, "location", location, "error", err)
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}
	if slots == nil {
		slots = []availability.Slot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots, "count": len(slots)})
}

// Summary handles GET /availability/summary?doctor=&location=&duration=&days=
func (h *ClinicHandler) Summary(w http.ResponseWriter, r *http.Request) {
	doctor, location, ok := resourceParams(r)
	if !ok {
		http.Error(w, "doctor and location are required", http.StatusBadRequest)
		return
	}
	summary, err := h.engine.Summary(r.Context(), doctor, location, queryInt(r, "duration", 30), queryInt(r, "days", h.daysAhead))
	if err != nil {
		h.logger.Error("failed to summarise availability", "doctor", doctor, "location", location, "error", err)
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Doctor handles GET /doctors/{doctor}/availability
func (h *ClinicHandler) Doctor(w http.ResponseWriter, r *http.Request) {
	doctor := chi.URLParam(r, "doctor")
	info, err := h.engine.DoctorAvailability(r.Context(), doctor)
	if err != nil {
		h.logger.Error("failed to load doctor availability", "doctor", doctor, "error", err)
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}
	status := http.StatusOK
	if !info.Available {
		status = http.StatusNotFound
	}
	writeJSON(w, status, info)
}

// PatientHistoryResponse lists a patient's appointments, newest first.
type PatientHistoryResponse struct {
	Patient      records.Patient   `json:"patient"`
	Appointments []records.Booking `json:"appointments"`
	Total        int               `json:"total"`
}

// PatientHistory handles GET /patients/{patientID}/appointments
func (h *ClinicHandler) PatientHistory(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	patient, err := h.store.GetPatient(r.Context(), patientID)
	if err != nil {
		h.fail(w, "failed to load patient", err, "patient_id", patientID)
		return
	}
	bookings, err := h.store.ListPatientBookings(r.Context(), patientID)
	if err != nil {
		h.fail(w, "failed to load appointments", err, "patient_id", patientID)
		return
	}
	// store order is chronological
	history := make([]records.Booking, 0, len(bookings))
	for i := len(bookings) - 1; i >= 0; i-- {
		history = append(history, bookings[i])
	}
	writeJSON(w, http.StatusOK, PatientHistoryResponse{Patient: patient, Appointments: history, Total: len(history)})
}

// GetAppointment handles GET /appointments/{appointmentID}
func (h *ClinicHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "appointmentID")
	if !records.ValidAppointmentID(id) {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}
	booking, err := h.store.GetBooking(r.Context(), id)
	if err != nil {
		h.fail(w, "failed to load appointment", err, "appointment_id", id)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// CancelAppointment handles POST /appointments/{appointmentID}/cancel
func (h *ClinicHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "appointmentID")
	if !records.ValidAppointmentID(id) {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}
	booking, err := h.engine.Cancel(r.Context(), id)
	if err != nil {
		h.fail(w, "failed to cancel appointment", err, "appointment_id", id)
		return
	}
	h.record(r.Context(), audit.Event{
		EventType:     audit.EventBookingCancelled,
		PatientID:     booking.PatientID,
		AppointmentID: booking.AppointmentID,
		Details:       audit.Details(map[string]string{"source": "staff"}),
	})
	writeJSON(w, http.StatusOK, booking)
}

func (h *ClinicHandler) record(ctx context.Context, event audit.Event) {
	if err := h.audit.LogEvent(ctx, event); err != nil {
		h.logger.Warn("failed to write audit event", "event_type", event.EventType, "error", err)
	}
}

func (h *ClinicHandler) fail(w http.ResponseWriter, msg string, err error, args ...any) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, append(args, "error", err)...)
	}
	http.Error(w, http.StatusText(status), status)
}
