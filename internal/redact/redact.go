// Package redact keeps patient contact details out of logs.
package redact

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
	idRe    = regexp.MustCompile(`\b[A-Z]{2,4}[0-9]{6,12}\b`)
)

// Text masks emails, phone numbers and member-id-like tokens. Names are kept.
func Text(s string) string {
	s = emailRe.ReplaceAllString(s, "[EMAIL]")
	s = phoneRe.ReplaceAllString(s, "[PHONE]")
	return idRe.ReplaceAllString(s, "[ID]")
}

// Fingerprint returns a short stable hash of a contact address so deliveries
// to the same recipient can be correlated without logging the address.
func Fingerprint(contact string) string {
	contact = strings.ToLower(strings.TrimSpace(contact))
	if contact == "" {
		return ""
	}
	h := sha256.Sum256([]byte(contact))
	return fmt.Sprintf("%x", h[:6])
}

// Preview masks s and cuts it to at most n runes.
func Preview(s string, n int) string {
	s = Text(s)
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
