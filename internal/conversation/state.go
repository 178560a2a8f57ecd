// Package conversation drives a patient from greeting to a confirmed booking,
// one turn at a time.
package conversation

import (
	"strings"
	"time"

	"github.com/wolfman30/clinic-intake/internal/intake"
	"github.com/wolfman30/clinic-intake/internal/records"
	"github.com/wolfman30/clinic-intake/internal/scheduling"
)

// Step is a state of the booking conversation.
type Step string

const (
	StepGreeting           Step = "greeting"
	StepLookup             Step = "lookup"
	StepScheduling         Step = "scheduling"
	StepInsurance          Step = "insurance_collection"
	StepConfirmation       Step = "confirmation"
	StepReschedule         Step = "reschedule"
	StepAlternativeOptions Step = "alternative_options"
)

// AppointmentInfo accumulates what lookup and scheduling decide.
type AppointmentInfo struct {
	PatientType     string     `json:"patient_type,omitempty" dynamodbav:"patientType,omitempty"`
	PatientID       string     `json:"patient_id,omitempty" dynamodbav:"patientId,omitempty"`
	DurationMinutes int        `json:"appointment_duration,omitempty" dynamodbav:"duration,omitempty"`
	AppointmentID   string     `json:"appointment_id,omitempty" dynamodbav:"appointmentId,omitempty"`
	Doctor          string     `json:"doctor,omitempty" dynamodbav:"doctor,omitempty"`
	Location        string     `json:"location,omitempty" dynamodbav:"location,omitempty"`
	Start           *time.Time `json:"datetime,omitempty" dynamodbav:"start,omitempty"`
}

// State is everything known about one conversation. It is passed into and
// returned from every turn; nothing about a conversation lives elsewhere.
type State struct {
	ConversationID string             `json:"conversation_id" dynamodbav:"conversationId"`
	Step           Step               `json:"step" dynamodbav:"step"`
	Patient        intake.PatientInfo `json:"patient_info" dynamodbav:"patient"`
	Insurance      records.Insurance  `json:"insurance_info" dynamodbav:"insurance"`
	Appointment    AppointmentInfo    `json:"appointment_info" dynamodbav:"appointment"`
	UpdatedAt      time.Time          `json:"updated_at" dynamodbav:"updatedAt"`
}

// NewState returns the initial greeting state for id.
func NewState(id string) State {
	return State{ConversationID: id, Step: StepGreeting}
}

// Reset clears everything but the conversation id.
func (s State) Reset() State {
	return NewState(s.ConversationID)
}

// signalSteps maps agent signals to the step that handles the next turn.
var signalSteps = map[string]Step{
	intake.SignalContinueGreeting:        StepGreeting,
	intake.SignalLookup:                  StepLookup,
	intake.SignalContinueInsurance:       StepInsurance,
	intake.SignalConfirmation:            StepConfirmation,
	scheduling.SignalSlotSelection:       StepScheduling,
	scheduling.SignalReschedule:          StepReschedule,
	scheduling.SignalAlternativeOptions:  StepAlternativeOptions,
	scheduling.SignalRetry:               StepScheduling,
	scheduling.SignalInsuranceCollection: StepInsurance,
	string(StepGreeting):                 StepGreeting,
}

// ResolveStep trusts a known signal and otherwise derives the step from what
// the state already holds.
func ResolveStep(signal string, s State) Step {
	if step, ok := signalSteps[strings.TrimSpace(signal)]; ok {
		return step
	}
	return DeriveStep(s)
}

// DeriveStep picks the first stage whose data is incomplete.
func DeriveStep(s State) Step {
	switch {
	case !s.Patient.Complete():
		return StepGreeting
	case s.Appointment.PatientType == "":
		return StepLookup
	case s.Appointment.AppointmentID == "":
		return StepScheduling
	case !intake.InsuranceComplete(s.Insurance):
		return StepInsurance
	default:
		return StepConfirmation
	}
}

// normalizeStep maps reschedule back onto scheduling, which re-lists.
// Unknown values, including an unset step, are left alone so the orchestrator
// can start over.
func normalizeStep(step Step) Step {
	if step == StepReschedule {
		return StepScheduling
	}
	return step
}
