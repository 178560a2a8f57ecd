package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/extract"
	"github.com/wolfman30/clinic-intake/internal/llm"
	"github.com/wolfman30/clinic-intake/internal/records"
)

type scriptedGenerator struct {
	text string
	err  error
}

func (g scriptedGenerator) Generate(context.Context, string, string) (string, error) {
	return g.text, g.err
}

func TestIntakeAgentCompletesInOneTurn(t *testing.T) {
	agent := NewIntakeAgent(nil)
	res := agent.Process(context.Background(),
		"My name is John Smith, date of birth 01/15/1990, I'd like to see Dr. Johnson at Downtown clinic", PatientInfo{})

	require.True(t, res.IsComplete)
	assert.Empty(t, res.MissingFields)
	assert.Equal(t, SignalLookup, res.NextStep)
	assert.Equal(t, PatientInfo{Name: "John Smith", DateOfBirth: "01/15/1990", PreferredDoctor: "Johnson", Location: "Downtown"}, res.Patient)
	assert.Contains(t, res.Message, "John Smith")
}

func TestIntakeAgentAccumulatesAcrossTurns(t *testing.T) {
	agent := NewIntakeAgent(nil)
	ctx := context.Background()

	first := agent.Process(ctx, "hello", PatientInfo{})
	assert.False(t, first.IsComplete)
	assert.Equal(t, SignalContinueGreeting, first.NextStep)
	assert.Len(t, first.MissingFields, 4)
	assert.Contains(t, first.Message, "Hello!")

	second := agent.Process(ctx, "I'm Ann Lee, born 02/02/1992", first.Patient)
	assert.Equal(t, []extract.Field{extract.FieldPreferredDoctor, extract.FieldLocation}, second.MissingFields)
	assert.Contains(t, second.Message, "Thanks, Ann!")

	third := agent.Process(ctx, "Dr Wilson please, location: midtown", second.Patient)
	assert.True(t, third.IsComplete)
	assert.Equal(t, "Wilson", third.Patient.PreferredDoctor)
	assert.Equal(t, "Midtown", third.Patient.Location)
	assert.Equal(t, "Ann Lee", third.Patient.Name)
}

func TestIntakeAgentGeneratedTextDoesNotRoute(t *testing.T) {
	agent := NewIntakeAgent(llm.NewResponder(scriptedGenerator{text: "All done, you are complete!"}, 0, nil))
	res := agent.Process(context.Background(), "my name is Ann Lee", PatientInfo{})

	assert.Equal(t, "All done, you are complete!", res.Message)
	assert.False(t, res.IsComplete)
	assert.Equal(t, SignalContinueGreeting, res.NextStep)

	agent = NewIntakeAgent(llm.NewResponder(scriptedGenerator{err: errors.New("offline")}, 0, nil))
	res = agent.Process(context.Background(), "my name is Ann Lee", PatientInfo{})
	assert.Contains(t, res.Message, "Thanks, Ann!")
}

func TestInsuranceAgentScenario(t *testing.T) {
	agent := NewInsuranceAgent(nil)
	res := agent.Process(context.Background(),
		"I have Blue Cross Blue Shield insurance, member ID 123456789, group number ABC123", records.Insurance{})

	require.True(t, res.IsComplete)
	assert.Equal(t, records.Insurance{Carrier: "Blue Cross Blue Shield", MemberID: "123456789", GroupNumber: "ABC123"}, res.Insurance)
	assert.Equal(t, SignalConfirmation, res.NextStep)
	assert.True(t, res.Validation.IsValid)
	assert.Contains(t, res.Message, "• Group Number: ABC123")
}

func TestInsuranceAgentGroupOptionalAndAdvisoryValidation(t *testing.T) {
	agent := NewInsuranceAgent(nil)
	ctx := context.Background()

	partial := agent.Process(ctx, "I have aetna", records.Insurance{})
	assert.False(t, partial.IsComplete)
	assert.Equal(t, SignalContinueInsurance, partial.NextStep)
	assert.Equal(t, []extract.Field{extract.FieldMemberID}, partial.MissingFields)

	done := agent.Process(ctx, "member id: AB12", partial.Insurance)
	assert.True(t, done.IsComplete, "short member id is advisory only")
	assert.Equal(t, SignalConfirmation, done.NextStep)
	assert.False(t, done.Validation.IsValid)
	assert.Contains(t, done.Message, "Member ID seems too short. Please double-check.")
	assert.Contains(t, done.Message, "Group Number: Not provided")
}

func TestInsuranceValidate(t *testing.T) {
	agent := NewInsuranceAgent(nil)
	v := agent.Validate(records.Insurance{})
	assert.False(t, v.IsValid)
	assert.Equal(t, []string{"Member ID seems too short. Please double-check.", "Insurance carrier is required."}, v.Errors)

	v = agent.Validate(records.Insurance{Carrier: "Aetna", MemberID: "ABC123"})
	assert.True(t, v.IsValid)
	assert.Empty(t, v.Errors)
}

func TestPredicates(t *testing.T) {
	assert.False(t, PatientInfo{Name: "A", DateOfBirth: "1/1/2000", PreferredDoctor: "Smith"}.Complete())
	assert.True(t, InsuranceComplete(records.Insurance{Carrier: "Aetna", MemberID: "123456"}))
	assert.False(t, InsuranceComplete(records.Insurance{Carrier: "Aetna", GroupNumber: "G1"}))
}
