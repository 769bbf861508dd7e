package provider

import (
	"regexp"
	"strings"
)

var nonDigitRe = regexp.MustCompile(`[^\d]`)

type PhoneValidation struct {
	Valid     bool   `json:"valid"`
	Formatted string `json:"formatted,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ValidatePhone strips everything but digits, applies the default country
// code when the number looks local (matches the configured local length),
// rejects anything outside 10-15 digits and normalizes to a leading +.
func (c *Client) ValidatePhone(raw string) PhoneValidation {
	cleaned := nonDigitRe.ReplaceAllString(raw, "")

	if len(cleaned) == c.cfg.DefaultPhoneLength {
		cleaned = strings.TrimPrefix(c.cfg.DefaultCountryCode, "+") + cleaned
	}

	if len(cleaned) < 10 || len(cleaned) > 15 {
		return PhoneValidation{Valid: false, Error: "invalid phone number"}
	}

	return PhoneValidation{Valid: true, Formatted: "+" + cleaned}
}
