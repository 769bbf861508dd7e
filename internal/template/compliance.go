package template

import (
	"fmt"
	"strings"
)

const maxBodyLength = 1024

var promoKeywords = []string{"oferta", "descuento", "promoción", "gratis", "precio"}

// ComplianceReport lists policy warnings for a template body. Warnings are
// advisory; saving a non-compliant template is allowed.
type ComplianceReport struct {
	Compliant bool     `json:"compliant"`
	Warnings  []string `json:"warnings"`
	Variables []string `json:"variables"`
}

// CheckCompliance inspects a template body against provider messaging
// policies: body length, promotional wording that needs pre-approval, and
// placeholder usage.
func CheckCompliance(body string) ComplianceReport {
	var warnings []string

	if len(body) > maxBodyLength {
		warnings = append(warnings, fmt.Sprintf("message exceeds the %d character limit", maxBodyLength))
	}

	lower := strings.ToLower(body)
	for _, kw := range promoKeywords {
		if strings.Contains(lower, kw) {
			warnings = append(warnings, "message appears to contain promotional content; marketing messages require approval")
			break
		}
	}

	variables := Placeholders(body)
	if len(variables) > 0 {
		warnings = append(warnings, fmt.Sprintf("variables found: %s; make sure these fields exist on your contacts", strings.Join(variables, ", ")))
	}

	return ComplianceReport{
		Compliant: len(warnings) == 0,
		Warnings:  warnings,
		Variables: variables,
	}
}
