package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-intake/internal/audit"
	"github.com/wolfman30/clinic-intake/internal/export"
	"github.com/wolfman30/clinic-intake/internal/extract"
	"github.com/wolfman30/clinic-intake/internal/intake"
	"github.com/wolfman30/clinic-intake/internal/lookup"
	"github.com/wolfman30/clinic-intake/internal/notify"
	"github.com/wolfman30/clinic-intake/internal/observability/metrics"
	"github.com/wolfman30/clinic-intake/internal/records"
	"github.com/wolfman30/clinic-intake/internal/reminders"
	"github.com/wolfman30/clinic-intake/internal/scheduling"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.conversation")

const (
	startOverMessage = "I'm sorry, I'm not sure how to help with that. Let me start over. What's your name?"
	restartMessage   = "No problem, let's start over. Could you please tell me your name, date of birth, preferred doctor and preferred clinic location?"
	lookupRetry      = "I'm having trouble reaching our patient records right now. Please send any message to try again."
	confirmRetry     = "I couldn't save your insurance details just now. Please send any message to try again."
	alternativesAsk  = "Which doctor or location would you like me to check? For example, \"Dr. Wilson\" or \"the Midtown location\"."

	confirmedDateLayout = "Monday, January 02, 2006 at 03:04 PM"
)

var restartPattern = regexp.MustCompile(`(?i)\b(start over|restart)\b`)

// Reply is what the patient sees after one turn.
type Reply struct {
	Message         string           `json:"message"`
	Step            Step             `json:"step"`
	BookingComplete bool             `json:"booking_complete"`
	Booking         *records.Booking `json:"booking,omitempty"`
}

// PatientResolver is implemented by *lookup.Resolver.
type PatientResolver interface {
	Resolve(ctx context.Context, info intake.PatientInfo) (lookup.Resolution, error)
}

// SlotScheduler is implemented by *scheduling.Agent.
type SlotScheduler interface {
	Process(ctx context.Context, text string, patient intake.PatientInfo, appt scheduling.Appointment) (scheduling.Result, error)
}

// ReminderScheduler is implemented by *reminders.Scheduler.
type ReminderScheduler interface {
	Schedule(ctx context.Context, booking records.Booking, patientID string) (reminders.Schedule, error)
}

// EmailNotifier is implemented by *notify.Notifier.
type EmailNotifier interface {
	SendEmail(ctx context.Context, msg notify.EmailMessage) bool
}

// Dependencies wires the orchestrator. Exporter, Notifier and Audit may be nil.
type Dependencies struct {
	Intake      *intake.IntakeAgent
	Insurance   *intake.InsuranceAgent
	Lookup      PatientResolver
	Scheduling  SlotScheduler
	Patients    records.PatientStore
	Reminders   ReminderScheduler
	Exporter    export.Exporter
	Notifier    EmailNotifier
	Audit       audit.Logger
	Metrics     *metrics.SchedulingMetrics
	Logger      *logging.Logger
	ClinicName  string
	ClinicPhone string
}

// Orchestrator runs the booking state machine. It holds no per-conversation
// state; every call takes and returns a State.
type Orchestrator struct {
	intake      *intake.IntakeAgent
	insurance   *intake.InsuranceAgent
	places      *extract.Extractor
	lookup      PatientResolver
	scheduling  SlotScheduler
	patients    records.PatientStore
	reminders   ReminderScheduler
	exporter    export.Exporter
	notifier    EmailNotifier
	audit       audit.Logger
	metrics     *metrics.SchedulingMetrics
	logger      *logging.Logger
	clinicName  string
	clinicPhone string
	now         func() time.Time
}

func NewOrchestrator(deps Dependencies) *Orchestrator {
	if deps.Lookup == nil {
		panic("conversation: lookup resolver cannot be nil")
	}
	if deps.Scheduling == nil {
		panic("conversation: scheduling agent cannot be nil")
	}
	if deps.Patients == nil {
		panic("conversation: patient store cannot be nil")
	}
	if deps.Reminders == nil {
		panic("conversation: reminder scheduler cannot be nil")
	}
	if deps.Intake == nil {
		deps.Intake = intake.NewIntakeAgent(nil)
	}
	if deps.Insurance == nil {
		deps.Insurance = intake.NewInsuranceAgent(nil)
	}
	if deps.Audit == nil {
		deps.Audit = audit.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Orchestrator{
		intake:      deps.Intake,
		insurance:   deps.Insurance,
		places:      extract.NewIdentity(),
		lookup:      deps.Lookup,
		scheduling:  deps.Scheduling,
		patients:    deps.Patients,
		reminders:   deps.Reminders,
		exporter:    deps.Exporter,
		notifier:    deps.Notifier,
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		clinicName:  deps.ClinicName,
		clinicPhone: deps.ClinicPhone,
		now:         time.Now,
	}
}

// WithClock overrides the clock used for UpdatedAt.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	if now != nil {
		o.now = now
	}
	return o
}

// Handle processes one patient turn. Storage failures never escape as errors:
// the returned state stays on a step that retries on the next turn. The error
// is non-nil only when ctx is done.
func (o *Orchestrator) Handle(ctx context.Context, state State, text string) (State, Reply, error) {
	if err := ctx.Err(); err != nil {
		return state, Reply{}, err
	}
	start := time.Now()
	step := normalizeStep(state.Step)
	defer func() {
		o.metrics.ObserveTurn(string(step), time.Since(start).Seconds())
	}()

	var messages []string
	if restartPattern.MatchString(text) {
		state = state.Reset()
		messages = append(messages, restartMessage)
	} else {
		switch step {
		case StepGreeting:
			state, messages = o.greeting(ctx, state, text)
		case StepLookup:
			state, messages = o.runLookup(ctx, state)
		case StepScheduling:
			state, messages = o.schedule(ctx, state, text)
		case StepAlternativeOptions:
			state, messages = o.alternatives(ctx, state, text)
		case StepInsurance:
			state, messages = o.collectInsurance(ctx, state, text)
		case StepConfirmation:
			// Retried below.
		default:
			o.logger.Warn("unknown conversation step, resetting", "conversation_id", state.ConversationID, "step", state.Step)
			state = state.Reset()
			messages = append(messages, startOverMessage)
		}
	}

	reply := Reply{Step: state.Step}
	if state.Step == StepConfirmation {
		var done Reply
		state, done = o.confirm(ctx, state)
		messages = append(messages, done.Message)
		reply = done
	}
	reply.Message = joinMessages(messages)
	state.UpdatedAt = o.now()
	return state, reply, nil
}

func joinMessages(messages []string) string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m) != "" {
			out = append(out, m)
		}
	}
	return strings.Join(out, "\n\n")
}

func (o *Orchestrator) greeting(ctx context.Context, state State, text string) (State, []string) {
	res := o.intake.Process(ctx, text, state.Patient)
	state.Patient = res.Patient
	state.Step = ResolveStep(res.NextStep, state)
	messages := []string{res.Message}
	if state.Step != StepLookup {
		return state, messages
	}
	state, more := o.runLookup(ctx, state)
	return state, append(messages, more...)
}

// runLookup resolves the patient and chains straight into the first
// scheduling message.
func (o *Orchestrator) runLookup(ctx context.Context, state State) (State, []string) {
	res, err := o.lookup.Resolve(ctx, state.Patient)
	if err != nil {
		o.logger.Error("patient lookup failed", "conversation_id", state.ConversationID, "error", err)
		state.Step = StepLookup
		return state, []string{lookupRetry}
	}
	o.metrics.ObserveLookup(string(res.PatientType))
	if res.PatientType == lookup.PatientNew {
		o.logAudit(ctx, audit.Event{
			EventType:      audit.EventPatientCreated,
			ConversationID: state.ConversationID,
			PatientID:      res.PatientID,
		})
	}

	state.Appointment.PatientType = string(res.PatientType)
	state.Appointment.PatientID = res.PatientID
	state.Appointment.DurationMinutes = res.DurationMinutes
	if state.Patient.Email == "" {
		state.Patient.Email = res.Record.Email
	}
	if state.Patient.Phone == "" {
		state.Patient.Phone = res.Record.Phone
	}
	state.Step = StepScheduling

	state, more := o.schedule(ctx, state, "")
	return state, append([]string{res.Message}, more...)
}

func (o *Orchestrator) schedule(ctx context.Context, state State, text string) (State, []string) {
	res, err := o.scheduling.Process(ctx, text, state.Patient, scheduling.Appointment{
		PatientID:       state.Appointment.PatientID,
		DurationMinutes: state.Appointment.DurationMinutes,
	})
	if err != nil {
		o.logger.Error("scheduling failed", "conversation_id", state.ConversationID, "error", err)
	}
	if res.Booking != nil {
		b := *res.Booking
		state.Appointment.AppointmentID = b.AppointmentID
		state.Appointment.Doctor = b.Doctor
		state.Appointment.Location = b.Location
		state.Appointment.DurationMinutes = b.DurationMinutes
		start := b.Start
		state.Appointment.Start = &start
	}
	state.Step = ResolveStep(res.NextStep, state)
	return state, []string{res.Message}
}

// alternatives takes a new doctor or location from the reply, replacing the
// stored preference, and lists that schedule. A reply naming neither asks again.
func (o *Orchestrator) alternatives(ctx context.Context, state State, text string) (State, []string) {
	named := o.places.Extract(text, extract.Fields{})
	doctor, location := named.Get(extract.FieldPreferredDoctor), named.Get(extract.FieldLocation)
	if doctor == "" && location == "" {
		state.Step = StepAlternativeOptions
		return state, []string{alternativesAsk}
	}
	if doctor != "" {
		state.Patient.PreferredDoctor = doctor
	}
	if location != "" {
		state.Patient.Location = location
	}
	o.logger.Debug("alternative requested", "conversation_id", state.ConversationID,
		"doctor", state.Patient.PreferredDoctor, "location", state.Patient.Location)
	return o.schedule(ctx, state, "")
}

func (o *Orchestrator) collectInsurance(ctx context.Context, state State, text string) (State, []string) {
	res := o.insurance.Process(ctx, text, state.Insurance)
	state.Insurance = res.Insurance
	state.Step = ResolveStep(res.NextStep, state)
	return state, []string{res.Message}
}

// confirm finalizes a booked appointment: it stores the insurance on the
// patient record, exports the appointment, schedules reminders and emails the
// patient, then resets the conversation. Only the patient-record write can
// hold the conversation on this step.
func (o *Orchestrator) confirm(ctx context.Context, state State) (State, Reply) {
	ctx, span := tracer.Start(ctx, "conversation.confirm")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.conversation_id", state.ConversationID),
		attribute.String("clinic.appointment_id", state.Appointment.AppointmentID),
	)

	appt := state.Appointment
	if appt.AppointmentID == "" || appt.Start == nil {
		o.logger.Warn("confirmation without a booking, resetting", "conversation_id", state.ConversationID)
		return state.Reset(), Reply{Message: startOverMessage, Step: StepGreeting}
	}

	patient, err := o.patients.GetPatient(ctx, appt.PatientID)
	if err == nil {
		state.Insurance.ApplyTo(&patient)
		fillContact(&patient, state.Patient)
		err = o.patients.UpdatePatient(ctx, patient)
	}
	if err != nil {
		span.RecordError(err)
		o.logger.Error("failed to store insurance on patient record",
			"conversation_id", state.ConversationID, "patient_id", appt.PatientID, "error", err)
		state.Step = StepConfirmation
		return state, Reply{Message: confirmRetry, Step: StepConfirmation}
	}
	o.logAudit(ctx, audit.Event{
		EventType:      audit.EventInsuranceUpdated,
		ConversationID: state.ConversationID,
		PatientID:      patient.PatientID,
		Details:        audit.Details(map[string]string{"insurance_carrier": state.Insurance.Carrier}),
	})

	booking := records.Booking{
		AppointmentID:   appt.AppointmentID,
		PatientID:       appt.PatientID,
		Doctor:          appt.Doctor,
		Start:           *appt.Start,
		DurationMinutes: appt.DurationMinutes,
		Location:        appt.Location,
		Status:          records.BookingConfirmed,
	}

	exported := o.export(ctx, export.Row{
		Booking:     booking,
		Patient:     patient,
		PatientType: appt.PatientType,
		Insurance:   state.Insurance,
	})

	schedule, err := o.reminders.Schedule(ctx, booking, patient.PatientID)
	if err != nil {
		o.logger.Warn("some reminders were not scheduled", "appointment_id", booking.AppointmentID, "error", err)
	}

	emailSent := o.sendConfirmation(ctx, booking, patient, state.Insurance)

	o.logAudit(ctx, audit.Event{
		EventType:      audit.EventBookingConfirmed,
		ConversationID: state.ConversationID,
		PatientID:      patient.PatientID,
		AppointmentID:  booking.AppointmentID,
		Details: audit.Details(map[string]any{
			"email_sent":       emailSent,
			"exported":         exported,
			"reminders_queued": schedule.Total,
		}),
	})
	o.logger.Info("appointment confirmed", "conversation_id", state.ConversationID,
		"appointment_id", booking.AppointmentID, "email_sent", emailSent, "reminders", schedule.Total)

	return state.Reset(), Reply{
		Message:         confirmationSummary(booking, emailSent, exported, schedule.Total),
		Step:            StepGreeting,
		BookingComplete: true,
		Booking:         &booking,
	}
}

func fillContact(p *records.Patient, info intake.PatientInfo) {
	if p.Email == "" {
		p.Email = info.Email
	}
	if p.Phone == "" {
		p.Phone = info.Phone
	}
}

func (o *Orchestrator) export(ctx context.Context, row export.Row) bool {
	if o.exporter == nil {
		return false
	}
	location, err := o.exporter.Export(ctx, row)
	if err != nil {
		o.logger.Error("appointment export failed", "appointment_id", row.Booking.AppointmentID, "error", err)
		return false
	}
	o.logAudit(ctx, audit.Event{
		EventType:     audit.EventExportGenerated,
		PatientID:     row.Patient.PatientID,
		AppointmentID: row.Booking.AppointmentID,
		Details:       audit.Details(map[string]string{"location": location}),
	})
	return true
}

func (o *Orchestrator) sendConfirmation(ctx context.Context, b records.Booking, p records.Patient, ins records.Insurance) bool {
	if o.notifier == nil {
		return false
	}
	msg, err := notify.ConfirmationEmail(notify.Confirmation{
		ClinicName:      o.clinicName,
		ClinicPhone:     o.clinicPhone,
		PatientName:     p.Name,
		Email:           p.Email,
		AppointmentID:   b.AppointmentID,
		Doctor:          b.Doctor,
		Location:        b.Location,
		Start:           b.Start,
		DurationMinutes: b.DurationMinutes,
		Carrier:         ins.Carrier,
		MemberID:        ins.MemberID,
		GroupNumber:     ins.GroupNumber,
	})
	if err != nil {
		o.logger.Error("failed to render confirmation email", "appointment_id", b.AppointmentID, "error", err)
		return false
	}
	return o.notifier.SendEmail(ctx, msg)
}

func (o *Orchestrator) logAudit(ctx context.Context, event audit.Event) {
	if err := o.audit.LogEvent(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		o.logger.Warn("audit event not recorded", "event_type", event.EventType, "error", err)
	}
}

func mark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

func confirmationSummary(b records.Booking, emailSent, exported bool, reminderCount int) string {
	var s strings.Builder
	s.WriteString("🎉 Your appointment is fully confirmed!\n\n")
	s.WriteString("📧 Confirmation Details:\n")
	fmt.Fprintf(&s, "• Confirmation email sent: %s\n", mark(emailSent))
	fmt.Fprintf(&s, "• Appointment report generated: %s\n", mark(exported))
	fmt.Fprintf(&s, "• Reminders scheduled: %d reminders\n\n", reminderCount)
	s.WriteString("📋 Next Steps:\n")
	s.WriteString("1. Check your email for intake forms\n")
	s.WriteString("2. Complete forms before your appointment\n")
	s.WriteString("3. Bring photo ID and insurance card\n")
	s.WriteString("4. Arrive 15 minutes early\n\n")
	s.WriteString("📞 Need to make changes?\n")
	s.WriteString("Contact us at least 24 hours in advance to reschedule or cancel.\n\n")
	fmt.Fprintf(&s, "We look forward to seeing you on %s!", b.Start.Format(confirmedDateLayout))
	return s.String()
}
