package extract

import "strings"

// stopWords end a free-text capture; the regex classes swallow whole clauses otherwise.
var stopWords = map[string]bool{
	"at": true, "on": true, "in": true, "and": true, "for": true, "please": true,
	"from": true, "to": true, "with": true, "my": true, "i": true, "is": true,
	"tomorrow": true, "today": true, "next": true, "this": true, "but": true,
	"clinic": true, "office": true, "branch": true, "location": true,
	"insurance": true, "member": true, "group": true, "policy": true, "id": true,
	"number": true, "born": true, "date": true, "dob": true,
	"company": true, "carrier": true, "provider": true,
}

var notNames = map[string]bool{
	"looking": true, "interested": true, "calling": true, "here": true, "trying": true,
	"a": true, "an": true, "not": true, "new": true, "returning": true, "sick": true,
	"feeling": true, "hoping": true, "wondering": true, "available": true, "free": true,
	"dr": true, "dr.": true, "doctor": true, "hello": true, "hi": true, "hey": true,
	"good": true, "yes": true, "no": true, "thanks": true, "thank": true,
}

func clip(s string) []string {
	words := strings.Fields(s)
	for i, w := range words {
		if stopWords[strings.ToLower(w)] {
			return words[:i]
		}
	}
	return words
}

func titleWord(w string) string {
	if w == "" {
		return w
	}
	lower := strings.ToLower(w)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func titleCase(words []string) string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = titleWord(w)
	}
	return strings.Join(out, " ")
}

// personName trims a captured name at the first connector and title-cases it.
func personName(s string) string {
	return titleCase(clip(s))
}

// freeText is personName for places and carrier names.
func freeText(s string) string {
	return titleCase(clip(s))
}

func nonEmpty(s string) bool {
	return strings.TrimSpace(s) != ""
}

func longerThanTwo(s string) bool {
	return len(strings.TrimSpace(s)) > 2
}

func plausibleName(s string) bool {
	words := strings.Fields(s)
	if len(words) == 0 {
		return false
	}
	return !notNames[strings.ToLower(words[0])]
}
