package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/clinic-intake/internal/audit"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// AuditQuerier is implemented by *audit.Service.
type AuditQuerier interface {
	QueryEvents(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
}

// AuditHandler exposes the audit trail for review.
type AuditHandler struct {
	events AuditQuerier
	logger *logging.Logger
}

func NewAuditHandler(events AuditQuerier, logger *logging.Logger) *AuditHandler {
	if events == nil {
		panic("handlers: audit querier cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AuditHandler{events: events, logger: logger}
}

// ListEvents handles GET /audit/events?patient_id=&appointment_id=&event_type=&since=&until=&limit=
func (h *AuditHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		PatientID:     strings.TrimSpace(q.Get("patient_id")),
		AppointmentID: strings.TrimSpace(q.Get("appointment_id")),
		EventType:     audit.EventType(strings.TrimSpace(q.Get("event_type"))),
		Limit:         queryInt(r, "limit", 100),
	}
	for key, dst := range map[string]*time.Time{"since": &filter.StartTime, "until": &filter.EndTime} {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, key+" must be RFC3339", http.StatusBadRequest)
			return
		}
		*dst = t
	}

	events, err := h.events.QueryEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query audit events", "error", err)
		http.Error(w, "failed to query audit events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}
