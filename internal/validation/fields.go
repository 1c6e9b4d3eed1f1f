package validation

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneStrip   = regexp.MustCompile(`[\s()\-+]`)
	phoneDigits  = regexp.MustCompile(`^\d{6,15}$`)
	zipPattern   = regexp.MustCompile(`^\d{5}$`)
	namePattern  = regexp.MustCompile(`^[A-Za-zÄäÖöÜüß\s\-]+$`)
	numericOnly  = regexp.MustCompile(`^\d+$`)
)

// Email accepts anything shaped local@domain.tld without whitespace.
func Email(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// Phone strips formatting characters and requires 6 to 15 digits.
func Phone(s string) bool {
	return phoneDigits.MatchString(phoneStrip.ReplaceAllString(s, ""))
}

// ZIP requires a five-digit German postal code.
func ZIP(s string) bool {
	return zipPattern.MatchString(strings.TrimSpace(s))
}

// Name accepts letters including umlauts and ß, spaces, and hyphens, with a
// trimmed length of at least two.
func Name(s string) bool {
	trimmed := strings.TrimSpace(s)
	return len([]rune(trimmed)) >= 2 && namePattern.MatchString(trimmed)
}

// Address requires at least five characters and rejects purely numeric input.
func Address(s string) bool {
	trimmed := strings.TrimSpace(s)
	return len([]rune(trimmed)) >= 5 && !numericOnly.MatchString(trimmed)
}
