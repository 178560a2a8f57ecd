package intake

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-intake/internal/extract"
	"github.com/wolfman30/clinic-intake/internal/llm"
	"github.com/wolfman30/clinic-intake/internal/records"
)

const intakeRolePrompt = `You are a friendly medical receptionist helping patients schedule appointments.
Collect the patient's full name, date of birth (MM/DD/YYYY), preferred doctor and preferred clinic location.
Currently collected: %s
Still missing: %s
Be warm and concise. Ask only for what is missing. If nothing is missing, confirm the details.`

const insuranceRolePrompt = `You are a medical receptionist collecting insurance information.
You need the insurance carrier, the member ID and, if the plan has one, the group number.
Currently collected: %s
Still missing: %s
Explain briefly why it is needed and where to find it (insurance card, employer benefits).`

// Result is what a slot-filling agent returns for one turn.
type Result struct {
	Message       string
	IsComplete    bool
	MissingFields []extract.Field
	NextStep      string
}

// IntakeResult carries the merged identity.
type IntakeResult struct {
	Result
	Patient PatientInfo
}

// IntakeAgent fills the identity checklist.
type IntakeAgent struct {
	extractor *extract.Extractor
	responder *llm.Responder
}

// NewIntakeAgent builds the greeting agent; responder may be nil.
func NewIntakeAgent(responder *llm.Responder) *IntakeAgent {
	return &IntakeAgent{extractor: extract.NewIdentity(), responder: responder}
}

// Process merges what text yields into collected and decides completion.
func (a *IntakeAgent) Process(ctx context.Context, text string, collected PatientInfo) IntakeResult {
	merged := PatientInfoFromFields(a.extractor.Extract(text, collected.Fields()))
	missing := merged.Missing()
	res := IntakeResult{
		Result: Result{
			IsComplete:    len(missing) == 0,
			MissingFields: missing,
			NextStep:      SignalContinueGreeting,
		},
		Patient: merged,
	}
	if res.IsComplete {
		res.NextStep = SignalLookup
	}

	scripted := intakeScript(merged, missing)
	prompt := fmt.Sprintf(intakeRolePrompt, describe(merged.Fields()), humanList(missing))
	res.Message = a.responder.Reply(ctx, prompt, text, scripted)
	return res
}

func intakeScript(p PatientInfo, missing []extract.Field) string {
	if len(missing) == 0 {
		return fmt.Sprintf("Thank you, %s! I have your date of birth as %s and you'd like to see Dr. %s at our %s location. Let me look up your records.",
			p.Name, p.DateOfBirth, p.PreferredDoctor, p.Location)
	}
	if len(missing) == len(IdentityRequired) {
		return "Hello! I'd be happy to help you schedule an appointment. Could you please tell me your " + humanList(missing) + "?"
	}
	greeting := "Thanks!"
	if p.Name != "" {
		greeting = "Thanks, " + firstName(p.Name) + "!"
	}
	return greeting + " Could you please also share your " + humanList(missing) + "?"
}

// InsuranceResult carries the merged coverage and its advisory validation.
type InsuranceResult struct {
	Result
	Insurance  records.Insurance
	Validation Validation
}

// Validation is advisory; it never gates routing.
type Validation struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

const minMemberIDLength = 6

// InsuranceAgent fills the coverage checklist.
type InsuranceAgent struct {
	extractor *extract.Extractor
	responder *llm.Responder
}

// NewInsuranceAgent builds the insurance agent; responder may be nil.
func NewInsuranceAgent(responder *llm.Responder) *InsuranceAgent {
	return &InsuranceAgent{extractor: extract.NewInsurance(), responder: responder}
}

// Validate checks member id length and carrier presence.
func (a *InsuranceAgent) Validate(ins records.Insurance) Validation {
	v := Validation{IsValid: true}
	if len(strings.TrimSpace(ins.MemberID)) < minMemberIDLength {
		v.Errors = append(v.Errors, "Member ID seems too short. Please double-check.")
		v.IsValid = false
	}
	if strings.TrimSpace(ins.Carrier) == "" {
		v.Errors = append(v.Errors, "Insurance carrier is required.")
		v.IsValid = false
	}
	return v
}

// Process merges coverage details from text into collected.
func (a *InsuranceAgent) Process(ctx context.Context, text string, collected records.Insurance) InsuranceResult {
	fields := a.extractor.Extract(text, InsuranceFields(collected))
	merged := InsuranceFromFields(fields)
	missing := fields.Missing(InsuranceRequired)
	res := InsuranceResult{
		Result: Result{
			IsComplete:    len(missing) == 0,
			MissingFields: missing,
			NextStep:      SignalContinueInsurance,
		},
		Insurance: merged,
	}
	if !res.IsComplete {
		scripted := "To finish your booking I need your " + humanList(missing) +
			". You can find these on the front of your insurance card."
		prompt := fmt.Sprintf(insuranceRolePrompt, describe(fields), humanList(missing))
		res.Message = a.responder.Reply(ctx, prompt, text, scripted)
		return res
	}

	res.NextStep = SignalConfirmation
	res.Validation = a.Validate(merged)
	group := merged.GroupNumber
	if group == "" {
		group = "Not provided"
	}
	var b strings.Builder
	b.WriteString("Thank you! I have your insurance information:\n\n")
	fmt.Fprintf(&b, "• Insurance Carrier: %s\n", merged.Carrier)
	fmt.Fprintf(&b, "• Member ID: %s\n", merged.MemberID)
	fmt.Fprintf(&b, "• Group Number: %s", group)
	if !res.Validation.IsValid {
		b.WriteString("\n\nPlease note: " + strings.Join(res.Validation.Errors, " "))
	}
	res.Message = b.String()
	return res
}

func describe(f extract.Fields) string {
	if len(f) == 0 {
		return "nothing yet"
	}
	parts := make([]string, 0, len(f))
	for _, field := range []extract.Field{
		extract.FieldName, extract.FieldDateOfBirth, extract.FieldPreferredDoctor, extract.FieldLocation,
		extract.FieldEmail, extract.FieldPhone, extract.FieldCarrier, extract.FieldMemberID, extract.FieldGroupNumber,
	} {
		if f.Has(field) {
			parts = append(parts, field.Label()+"="+f.Get(field))
		}
	}
	return strings.Join(parts, "; ")
}

func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return name
}
