// Package scheduling presents open slots to the patient, interprets their pick
// and books it.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wolfman30/clinic-intake/internal/availability"
	"github.com/wolfman30/clinic-intake/internal/intake"
	"github.com/wolfman30/clinic-intake/internal/llm"
	"github.com/wolfman30/clinic-intake/internal/records"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// Routing signals returned by the agent.
const (
	SignalSlotSelection       = "slot_selection"
	SignalInsuranceCollection = "insurance_collection"
	SignalReschedule          = "reschedule"
	SignalAlternativeOptions  = "alternative_options"
	SignalRetry               = "scheduling"
)

const (
	// MaxPresented is how many slots are offered in one message.
	MaxPresented = 6

	slotDateLayout = "Monday, January 2, 2006"
	slotTimeLayout = "3:04 PM"
)

const rolePrompt = `You are a medical receptionist helping a patient schedule an appointment.
Present the available appointment slots in a friendly, organized manner.
Patient: %s
Doctor: %s
Duration: %d minutes
Location: %s
Be helpful and ask the patient to choose their preferred time.`

// Appointment is what the conversation knows about the visit being booked.
type Appointment struct {
	PatientID       string
	DurationMinutes int
}

// Result is one scheduling turn.
type Result struct {
	Message           string
	NextStep          string
	Slots             []availability.Slot
	Booking           *records.Booking
	BookingSuccessful *bool
}

// Booker is the part of the availability engine the agent needs.
type Booker interface {
	AvailableSlots(ctx context.Context, doctor, location string, durationMinutes, daysAhead int) ([]availability.Slot, error)
	Book(ctx context.Context, slot availability.Slot, req availability.BookingRequest) (records.Booking, error)
}

// Agent offers and books slots.
type Agent struct {
	booker    Booker
	responder *llm.Responder
	daysAhead int
	logger    *logging.Logger
}

// NewAgent creates a scheduling agent. A non-positive daysAhead uses the engine default.
func NewAgent(booker Booker, responder *llm.Responder, daysAhead int, logger *logging.Logger) *Agent {
	if booker == nil {
		panic("scheduling: booker cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if daysAhead <= 0 {
		daysAhead = availability.DefaultDaysAhead
	}
	return &Agent{booker: booker, responder: responder, daysAhead: daysAhead, logger: logger}
}

// Process lists slots and books the one text selects. A storage failure keeps
// the conversation on the scheduling step and is returned alongside the result.
func (a *Agent) Process(ctx context.Context, text string, patient intake.PatientInfo, appt Appointment) (Result, error) {
	doctor, location := patient.PreferredDoctor, patient.Location
	duration := appt.DurationMinutes
	if duration <= 0 {
		duration = 60
	}

	slots, err := a.booker.AvailableSlots(ctx, doctor, location, duration, a.daysAhead)
	if err != nil {
		return retryResult(), fmt.Errorf("scheduling: available slots: %w", err)
	}
	if len(slots) == 0 {
		return Result{
			Message: fmt.Sprintf("I'm sorry, but Dr. %s doesn't have any available %d-minute slots in the next two weeks "+
				"at our %s location. Would you like me to check with another doctor or a different location?",
				doctor, duration, location),
			NextStep: SignalAlternativeOptions,
			Slots:    []availability.Slot{},
		}, nil
	}

	presented := slots
	if len(presented) > MaxPresented {
		presented = presented[:MaxPresented]
	}

	// Only the presented slots are selectable; "option 7" or a time beyond them
	// re-lists even though res.Slots carries the wider window.
	selected, ok := SelectSlot(text, presented)
	if !ok {
		scripted := fmt.Sprintf("Dr. %s has the following openings for a %d-minute visit at our %s location.",
			doctor, duration, location)
		intro := a.responder.Reply(ctx, fmt.Sprintf(rolePrompt, patient.Name, doctor, duration, location), text, scripted)
		return Result{
			Message:  intro + "\n\n" + FormatSlots(presented),
			NextStep: SignalSlotSelection,
			Slots:    slots,
		}, nil
	}

	booking, err := a.booker.Book(ctx, selected, availability.BookingRequest{PatientID: appt.PatientID})
	if errors.Is(err, availability.ErrSlotUnavailable) {
		failed := false
		msg := "I'm sorry, but that time slot is no longer available. Let me show you other options."
		if fresh, listErr := a.booker.AvailableSlots(ctx, doctor, location, duration, a.daysAhead); listErr == nil && len(fresh) > 0 {
			if len(fresh) > MaxPresented {
				fresh = fresh[:MaxPresented]
			}
			msg += "\n\n" + FormatSlots(fresh)
		}
		return Result{Message: msg, NextStep: SignalReschedule, BookingSuccessful: &failed}, nil
	}
	if err != nil {
		return retryResult(), fmt.Errorf("scheduling: book: %w", err)
	}

	booked := true
	return Result{
		Message: fmt.Sprintf("Perfect! I've scheduled your appointment for %s at %s with Dr. %s at our %s location. "+
			"Your appointment ID is %s. Now let's collect your insurance information to complete the booking.",
			booking.Start.Format(slotDateLayout), booking.Start.Format(slotTimeLayout),
			booking.Doctor, booking.Location, booking.AppointmentID),
		NextStep:          SignalInsuranceCollection,
		Booking:           &booking,
		BookingSuccessful: &booked,
	}, nil
}

func retryResult() Result {
	return Result{
		Message:  "I'm having trouble reaching our schedule right now. Please try again in a moment.",
		NextStep: SignalRetry,
	}
}

// FormatSlots renders a 1-indexed list of slots.
func FormatSlots(slots []availability.Slot) string {
	if len(slots) == 0 {
		return "No available slots found."
	}
	var b strings.Builder
	b.WriteString("Here are the available appointment times:\n\n")
	for i, s := range slots {
		fmt.Fprintf(&b, "%d. %s at %s\n", i+1, s.Start.Format(slotDateLayout), s.Start.Format(slotTimeLayout))
	}
	b.WriteString("\nPlease let me know which time works best for you by saying the number or date and time.")
	return b.String()
}

var (
	integerToken = regexp.MustCompile(`\d+`)
	monthName    = regexp.MustCompile(`(?i)\b(?:january|february|march|april|may|june|july|august|september|october|november|december)\b`)
)

// SelectSlot interprets text as an ordinal ("2", "option 2", "number 2") or a
// date/time phrase ("january 15", "9:30").
func SelectSlot(text string, slots []availability.Slot) (availability.Slot, bool) {
	lower := strings.ToLower(text)
	if n, ok := ordinal(lower); ok && n >= 1 && n <= len(slots) {
		return slots[n-1], true
	}

	var dateOnly, timeOnly *availability.Slot
	for i := range slots {
		dateHit, timeHit := phraseMatches(lower, slots[i])
		switch {
		case dateHit && timeHit:
			return slots[i], true
		case dateHit && dateOnly == nil:
			dateOnly = &slots[i]
		case timeHit && timeOnly == nil:
			timeOnly = &slots[i]
		}
	}
	if dateOnly != nil {
		return *dateOnly, true
	}
	if timeOnly != nil {
		return *timeOnly, true
	}
	return availability.Slot{}, false
}

// ordinal returns the first integer that is not part of a clock time or date.
func ordinal(lower string) (int, bool) {
	if monthName.MatchString(lower) {
		return 0, false
	}
	cleaned := strings.NewReplacer("option", " ", "number", " ").Replace(lower)
	for _, loc := range integerToken.FindAllStringIndex(cleaned, -1) {
		if partOfTimeOrDate(cleaned, loc[0], loc[1]) {
			continue
		}
		n, err := strconv.Atoi(cleaned[loc[0]:loc[1]])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func partOfTimeOrDate(s string, start, end int) bool {
	isSep := func(c byte) bool { return c == ':' || c == '/' || c == '-' }
	if start > 0 && isSep(s[start-1]) {
		return true
	}
	return end < len(s) && isSep(s[end])
}

func phraseMatches(lower string, slot availability.Slot) (dateHit, timeHit bool) {
	month := strings.ToLower(slot.Start.Format("January"))
	day := slot.Start.Day()
	for _, phrase := range []string{fmt.Sprintf("%s %d", month, day), fmt.Sprintf("%s %02d", month, day)} {
		if containsPhrase(lower, phrase) {
			dateHit = true
			break
		}
	}
	timeHit = containsPhrase(lower, slot.Start.Format("3:04"))
	return dateHit, timeHit
}

// containsPhrase is a substring test that will not let "january 1" match "january 15"
// or "1:00" match "11:00".
func containsPhrase(s, phrase string) bool {
	for from := 0; ; {
		idx := strings.Index(s[from:], phrase)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(phrase)
		beforeOK := start == 0 || !isDigit(s[start-1])
		afterOK := end == len(s) || !isDigit(s[end])
		if beforeOK && afterOK {
			return true
		}
		from = start + 1
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
