package extract

import "strings"

// Extractor applies an ordered rule table to free text.
type Extractor struct {
	rules  []Rule
	fields []Field
}

// New builds an extractor over rules; rule order is match priority.
func New(rules []Rule) *Extractor {
	seen := make(map[Field]bool)
	var fields []Field
	for _, r := range rules {
		if !seen[r.Field] {
			seen[r.Field] = true
			fields = append(fields, r.Field)
		}
	}
	return &Extractor{rules: rules, fields: fields}
}

// NewIdentity extracts the intake fields.
func NewIdentity() *Extractor {
	return New(IdentityRules())
}

// NewInsurance extracts the coverage fields.
func NewInsurance() *Extractor {
	return New(InsuranceRules())
}

// Fields lists the fields this extractor can fill, in first-rule order.
func (e *Extractor) Fields() []Field {
	return append([]Field(nil), e.fields...)
}

// Extract returns existing merged with whatever text yields. Fields already
// present in existing are never overwritten, and the first accepted rule per
// field wins. existing is not modified.
func (e *Extractor) Extract(text string, existing Fields) Fields {
	out := existing.Clone()
	if strings.TrimSpace(text) == "" {
		return out
	}
	done := make(map[Field]bool, len(e.fields))
	for _, rule := range e.rules {
		if done[rule.Field] || out.Has(rule.Field) {
			continue
		}
		raw, ok := rule.Match(text)
		if !ok {
			continue
		}
		value := raw
		if rule.Normalize != nil {
			value = rule.Normalize(value)
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if rule.Accept != nil && !rule.Accept(value) {
			continue
		}
		out[rule.Field] = value
		done[rule.Field] = true
	}
	return out
}
