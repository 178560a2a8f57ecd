package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-intake/internal/audit"
	"github.com/wolfman30/clinic-intake/internal/records"
	"github.com/wolfman30/clinic-intake/internal/reminders"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// ReminderSender delivers one reminder now. Implemented by *reminders.Sender.
type ReminderSender interface {
	Send(ctx context.Context, reminderID string) (reminders.Delivery, error)
}

// ReminderHandler serves reminder listing, patient answers and manual sends.
type ReminderHandler struct {
	store     records.ReminderStore
	responder *reminders.Responder
	sender    ReminderSender
	audit     audit.Logger
	logger    *logging.Logger
}

// NewReminderHandler creates a reminder handler. Without a sender the send route is not mounted.
func NewReminderHandler(store records.ReminderStore, responder *reminders.Responder, sender ReminderSender, auditLogger audit.Logger, logger *logging.Logger) *ReminderHandler {
	if store == nil {
		panic("handlers: reminder store cannot be nil")
	}
	if responder == nil {
		panic("handlers: reminder responder cannot be nil")
	}
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ReminderHandler{store: store, responder: responder, sender: sender, audit: auditLogger, logger: logger}
}

// Routes mounts the reminder endpoints.
func (h *ReminderHandler) Routes(r chi.Router) {
	r.Get("/appointments/{appointmentID}/reminders", h.List)
	r.Post("/reminders/{reminderID}/response", h.Respond)
	if h.sender != nil {
		r.Post("/reminders/{reminderID}/send", h.Send)
	}
}

// List handles GET /appointments/{appointmentID}/reminders
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "appointmentID")
	list, err := h.store.ListAppointmentReminders(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list reminders", "appointment_id", id, "error", err)
		http.Error(w, "failed to load reminders", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []records.Reminder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment_id": id, "reminders": list})
}

// ReminderResponseRequest is the patient's free-text answer to a reminder.
type ReminderResponseRequest struct {
	Response string `json:"response"`
}

// Respond handles POST /reminders/{reminderID}/response
func (h *ReminderHandler) Respond(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reminderID")
	var req ReminderResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Response) == "" {
		http.Error(w, "response is required", http.StatusBadRequest)
		return
	}

	resp, err := h.responder.Interpret(r.Context(), id, req.Response)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to record reminder response", "reminder_id", id, "error", err)
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	h.record(r.Context(), id, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (h *ReminderHandler) record(ctx context.Context, id string, resp reminders.Response) {
	reminder, err := h.store.GetReminder(ctx, id)
	if err != nil {
		h.logger.Warn("failed to load reminder for audit", "reminder_id", id, "error", err)
		return
	}
	events := []audit.Event{{
		EventType:     audit.EventReminderResponse,
		PatientID:     reminder.PatientID,
		AppointmentID: reminder.AppointmentID,
		Details:       audit.Details(map[string]string{"reminder_id": id, "response_type": string(resp.Status)}),
	}}
	if resp.Status == records.ReminderCancelled {
		events = append(events, audit.Event{
			EventType:     audit.EventBookingCancelled,
			PatientID:     reminder.PatientID,
			AppointmentID: reminder.AppointmentID,
			Details:       audit.Details(map[string]string{"source": "reminder_response", "reminder_id": id}),
		})
	}
	for _, e := range events {
		if err := h.audit.LogEvent(ctx, e); err != nil {
			h.logger.Warn("failed to write audit event", "event_type", e.EventType, "error", err)
		}
	}
}

// Send handles POST /reminders/{reminderID}/send
func (h *ReminderHandler) Send(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reminderID")
	delivery, err := h.sender.Send(r.Context(), id)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to send reminder", "reminder_id", id, "error", err)
		}
		http.Error(w, http.StatusText(status), status)
		return
	}
	writeJSON(w, http.StatusOK, delivery)
}
