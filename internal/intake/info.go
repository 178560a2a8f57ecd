package intake

import (
	"strings"

	"github.com/wolfman30/clinic-intake/internal/extract"
	"github.com/wolfman30/clinic-intake/internal/records"
)

// Routing signals returned by the slot-filling agents.
const (
	SignalLookup            = "lookup"
	SignalContinueGreeting  = "continue_greeting"
	SignalConfirmation      = "confirmation"
	SignalContinueInsurance = "continue_insurance"
)

// IdentityRequired is the intake checklist.
var IdentityRequired = []extract.Field{
	extract.FieldName,
	extract.FieldDateOfBirth,
	extract.FieldPreferredDoctor,
	extract.FieldLocation,
}

// InsuranceRequired is the coverage checklist. Group number is collected when
// offered but never asked for; many plans have none.
var InsuranceRequired = []extract.Field{
	extract.FieldCarrier,
	extract.FieldMemberID,
}

// PatientInfo is the identity collected so far in a conversation.
type PatientInfo struct {
	Name            string `json:"name,omitempty"`
	DateOfBirth     string `json:"date_of_birth,omitempty"`
	PreferredDoctor string `json:"preferred_doctor,omitempty"`
	Location        string `json:"location,omitempty"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
}

// Fields converts the record into the extractor's partial form.
func (p PatientInfo) Fields() extract.Fields {
	f := extract.Fields{}
	set := func(field extract.Field, v string) {
		if strings.TrimSpace(v) != "" {
			f[field] = v
		}
	}
	set(extract.FieldName, p.Name)
	set(extract.FieldDateOfBirth, p.DateOfBirth)
	set(extract.FieldPreferredDoctor, p.PreferredDoctor)
	set(extract.FieldLocation, p.Location)
	set(extract.FieldEmail, p.Email)
	set(extract.FieldPhone, p.Phone)
	return f
}

// PatientInfoFromFields is the inverse of Fields.
func PatientInfoFromFields(f extract.Fields) PatientInfo {
	return PatientInfo{
		Name:            f.Get(extract.FieldName),
		DateOfBirth:     f.Get(extract.FieldDateOfBirth),
		PreferredDoctor: f.Get(extract.FieldPreferredDoctor),
		Location:        f.Get(extract.FieldLocation),
		Email:           f.Get(extract.FieldEmail),
		Phone:           f.Get(extract.FieldPhone),
	}
}

// Missing lists the absent intake fields in checklist order.
func (p PatientInfo) Missing() []extract.Field {
	return p.Fields().Missing(IdentityRequired)
}

// Complete reports whether every intake field is present.
func (p PatientInfo) Complete() bool {
	return len(p.Missing()) == 0
}

// InsuranceFields converts coverage details into the extractor's partial form.
func InsuranceFields(ins records.Insurance) extract.Fields {
	f := extract.Fields{}
	if strings.TrimSpace(ins.Carrier) != "" {
		f[extract.FieldCarrier] = ins.Carrier
	}
	if strings.TrimSpace(ins.MemberID) != "" {
		f[extract.FieldMemberID] = ins.MemberID
	}
	if strings.TrimSpace(ins.GroupNumber) != "" {
		f[extract.FieldGroupNumber] = ins.GroupNumber
	}
	return f
}

// InsuranceFromFields is the inverse of InsuranceFields.
func InsuranceFromFields(f extract.Fields) records.Insurance {
	return records.Insurance{
		Carrier:     f.Get(extract.FieldCarrier),
		MemberID:    f.Get(extract.FieldMemberID),
		GroupNumber: f.Get(extract.FieldGroupNumber),
	}
}

// InsuranceComplete reports whether the required coverage fields are present.
func InsuranceComplete(ins records.Insurance) bool {
	return len(InsuranceFields(ins).Missing(InsuranceRequired)) == 0
}

// humanList joins labels as "a, b and c".
func humanList(fields []extract.Field) string {
	labels := make([]string, len(fields))
	for i, f := range fields {
		labels[i] = f.Label()
	}
	switch len(labels) {
	case 0:
		return ""
	case 1:
		return labels[0]
	default:
		return strings.Join(labels[:len(labels)-1], ", ") + " and " + labels[len(labels)-1]
	}
}
