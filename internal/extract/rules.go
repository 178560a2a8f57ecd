package extract

import (
	"regexp"
	"strings"
)

// Rule is one ordered extraction attempt for a field. Normalize runs before
// Accept; a rejected capture falls through to the next rule for the field.
type Rule struct {
	Field     Field
	Match     func(text string) (string, bool)
	Normalize func(string) string
	Accept    func(string) bool
}

// PatternRule matches the first capture group of expr.
func PatternRule(field Field, expr string, normalize func(string) string, accept func(string) bool) Rule {
	re := regexp.MustCompile(expr)
	return Rule{
		Field: field,
		Match: func(text string) (string, bool) {
			m := re.FindStringSubmatch(text)
			if len(m) < 2 {
				return "", false
			}
			return m[1], true
		},
		Normalize: normalize,
		Accept:    accept,
	}
}

// LexiconRule matches the first term (in slice order) contained in the
// lower-cased text and yields its display form.
func LexiconRule(field Field, terms []LexiconTerm) Rule {
	return Rule{
		Field: field,
		Match: func(text string) (string, bool) {
			lower := strings.ToLower(text)
			for _, term := range terms {
				if strings.Contains(lower, term.Match) {
					return term.Display, true
				}
			}
			return "", false
		},
	}
}

// LexiconTerm pairs a lower-case needle with its canonical display name.
type LexiconTerm struct {
	Match   string
	Display string
}

// CarrierLexicon is ordered by priority; longer names precede their prefixes.
var CarrierLexicon = []LexiconTerm{
	{"blue cross blue shield", "Blue Cross Blue Shield"},
	{"aetna", "Aetna"},
	{"anthem", "Anthem"},
	{"blue cross", "Blue Cross"},
	{"blue shield", "Blue Shield"},
	{"cigna", "Cigna"},
	{"humana", "Humana"},
	{"kaiser", "Kaiser"},
	{"united healthcare", "United Healthcare"},
	{"uhc", "UHC"},
	{"medicare", "Medicare"},
	{"medicaid", "Medicaid"},
}

var locationKeywords = []string{"location", "clinic", "office", "branch"}

// IdentityRules fills the intake fields.
func IdentityRules() []Rule {
	rules := []Rule{
		PatternRule(FieldName, `(?i)\b(?:my name is|i'm|i am|name's)\s+([a-zA-Z\s]+)`, personName, plausibleName),
		PatternRule(FieldName, `^([A-Z][a-z]+\s+[A-Z][a-z]+)`, personName, plausibleName),
		PatternRule(FieldDateOfBirth, `(\d{1,2}[/-]\d{1,2}[/-]\d{4})`, strings.TrimSpace, nil),
		PatternRule(FieldPreferredDoctor, `(?i)\b(?:see|with|appointment with)\s+(?:doctor|dr\.?)\s+([a-zA-Z\s]+)`, personName, nonEmpty),
		PatternRule(FieldPreferredDoctor, `(?i)\b(?:doctor|dr\.?)\s+([a-zA-Z\s]+)`, personName, nonEmpty),
	}
	for _, kw := range locationKeywords {
		rules = append(rules, PatternRule(FieldLocation, `(?i)\b`+kw+`[:\s]+([a-zA-Z\s]+)`, freeText, nonEmpty))
	}
	rules = append(rules,
		PatternRule(FieldLocation, `(?i)\b(?:at|in)\s+(?:the\s+)?([a-zA-Z]+(?:\s+[a-zA-Z]+)?)\s+(?:clinic|office|branch|location)\b`, freeText, nonEmpty),
		PatternRule(FieldLocation, `(?i)\bthe\s+([a-zA-Z]+)\s+(?:clinic|office|branch|location)\b`, freeText, nonEmpty),
		PatternRule(FieldEmail, `([A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})`, strings.ToLower, nil),
		PatternRule(FieldPhone, `(\+?1?[\s.\-]?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4})\b`, strings.TrimSpace, nil),
	)
	return rules
}

// InsuranceRules fills the coverage fields.
func InsuranceRules() []Rule {
	return []Rule{
		LexiconRule(FieldCarrier, CarrierLexicon),
		PatternRule(FieldCarrier, `(?i)\b(?:insurance|carrier|company)\s+(?:(?:company|carrier|provider)\s+)?(?:is\s+)?([a-zA-Z\s&]+)`, freeText, longerThanTwo),
		PatternRule(FieldCarrier, `(?i)\bi have\s+([a-zA-Z\s&]+)\s+insurance`, freeText, longerThanTwo),
		PatternRule(FieldMemberID, `(?i)\b(?:member\s+id|member\s+number|id\s+number|policy\s+number)[:\s]+([a-zA-Z0-9]+)`, strings.TrimSpace, nil),
		PatternRule(FieldMemberID, `(?i)\b(?:id|number)[:\s]+([a-zA-Z0-9]{6,})`, strings.TrimSpace, nil),
		PatternRule(FieldGroupNumber, `(?i)\b(?:group\s+number|group\s+id)[:\s]+([a-zA-Z0-9]+)`, strings.TrimSpace, nil),
		PatternRule(FieldGroupNumber, `(?i)\bgroup[:\s]+([a-zA-Z0-9]+)`, strings.TrimSpace, nil),
	}
}
