// Package audit keeps an append-only trail of booking and patient-record changes.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names what happened.
type EventType string

const (
	EventPatientCreated   EventType = "patient.created"
	EventInsuranceUpdated EventType = "patient.insurance_updated"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
	EventReminderResponse EventType = "reminder.response_recorded"
	EventExportGenerated  EventType = "export.generated"
)

// Event is an immutable audit record.
type Event struct {
	ID             string          `json:"id"`
	EventType      EventType       `json:"event_type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	PatientID      string          `json:"patient_id,omitempty"`
	AppointmentID  string          `json:"appointment_id,omitempty"`
	Details        json.RawMessage `json:"details,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Logger is implemented by Service and by Nop.
type Logger interface {
	LogEvent(ctx context.Context, event Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) LogEvent(context.Context, Event) error { return nil }

// Service writes events to Postgres through database/sql.
type Service struct {
	db *sql.DB
}

// NewService creates a new audit service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// LogEvent records an event. Missing ids and timestamps are filled in.
func (s *Service) LogEvent(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if len(event.Details) == 0 {
		event.Details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO audit_events (
			id, event_type, conversation_id, patient_id, appointment_id, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		nullString(event.ConversationID),
		nullString(event.PatientID),
		nullString(event.AppointmentID),
		string(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log event: %w", err)
	}
	return nil
}

// Details marshals v for Event.Details, returning nil on failure.
func Details(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// Filter specifies criteria for querying events.
type Filter struct {
	PatientID     string
	AppointmentID string
	EventType     EventType
	StartTime     time.Time
	EndTime       time.Time
	Limit         int
}

// QueryEvents returns matching events, newest first.
func (s *Service) QueryEvents(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT id, event_type, conversation_id, patient_id, appointment_id, details, created_at
		FROM audit_events
		WHERE 1=1
	`
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+clause, len(args))
	}
	if filter.PatientID != "" {
		add("patient_id = $%d", filter.PatientID)
	}
	if filter.AppointmentID != "" {
		add("appointment_id = $%d", filter.AppointmentID)
	}
	if filter.EventType != "" {
		add("event_type = $%d", filter.EventType)
	}
	if !filter.StartTime.IsZero() {
		add("created_at >= $%d", filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		add("created_at <= $%d", filter.EndTime)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var convID, patientID, apptID sql.NullString
		var details []byte
		if err := rows.Scan(&e.ID, &e.EventType, &convID, &patientID, &apptID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: failed to scan event: %w", err)
		}
		e.ConversationID = convID.String
		e.PatientID = patientID.String
		e.AppointmentID = apptID.String
		e.Details = details
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to read events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
