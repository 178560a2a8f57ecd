package extract

import "strings"

// Field names a slot the extractor can fill.
type Field string

const (
	FieldName            Field = "name"
	FieldDateOfBirth     Field = "date_of_birth"
	FieldPreferredDoctor Field = "preferred_doctor"
	FieldLocation        Field = "location"
	FieldEmail           Field = "email"
	FieldPhone           Field = "phone"
	FieldCarrier         Field = "insurance_carrier"
	FieldMemberID        Field = "member_id"
	FieldGroupNumber     Field = "group_number"
)

// Fields is a partial record keyed by field name.
type Fields map[Field]string

// Get returns the trimmed value for a field.
func (f Fields) Get(field Field) string {
	return strings.TrimSpace(f[field])
}

// Has reports whether field is present and non-empty.
func (f Fields) Has(field Field) bool {
	return f.Get(field) != ""
}

// Clone returns a shallow copy, never nil.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Missing lists the required fields that are absent, in checklist order.
func (f Fields) Missing(required []Field) []Field {
	var missing []Field
	for _, field := range required {
		if !f.Has(field) {
			missing = append(missing, field)
		}
	}
	return missing
}

// Label is the human readable name used in prompts.
func (field Field) Label() string {
	switch field {
	case FieldName:
		return "full name"
	case FieldDateOfBirth:
		return "date of birth (MM/DD/YYYY)"
	case FieldPreferredDoctor:
		return "preferred doctor"
	case FieldLocation:
		return "preferred clinic location"
	case FieldCarrier:
		return "insurance carrier"
	case FieldMemberID:
		return "member ID"
	case FieldGroupNumber:
		return "group number"
	default:
		return strings.ReplaceAll(string(field), "_", " ")
	}
}
