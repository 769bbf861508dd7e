package template

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{[^}]+\}`)
var placeholderNameRe = regexp.MustCompile(`\{([^}]+)\}`)

// Render substitutes {key} placeholders in body with values from data.
// Order matters: keys present in data are replaced first (empty values
// become empty strings), then any placeholder left over is stripped, then
// surrounding whitespace is trimmed. A template may reference fields a
// contact does not have; those tokens disappear instead of erroring.
func Render(body string, data map[string]string) string {
	out := body
	for key, value := range data {
		placeholder := fmt.Sprintf("{%s}", key)
		if strings.Contains(out, placeholder) {
			out = strings.ReplaceAll(out, placeholder, value)
		}
	}

	out = placeholderRe.ReplaceAllString(out, "")

	return strings.TrimSpace(out)
}

// Placeholders returns the distinct placeholder names in body, in order of
// first appearance. The result is what gets stored JSON-encoded on the
// template row.
func Placeholders(body string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderNameRe.FindAllStringSubmatch(body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
