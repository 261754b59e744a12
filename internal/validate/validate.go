// Package validate post-processes generated answers. A hedged answer with no
// concrete figure is assumed fabricated rather than sourced from a backend and
// is suppressed wholesale; a digit anywhere in the answer is treated as
// evidence the data is genuine.
package validate

import "strings"

// NotFoundMessage replaces answers rejected as speculative.
const NotFoundMessage = "Sorry, we could not find this information in the system."

var hedgeMarkers = []string{
	"probably",
	"perhaps",
	"maybe",
	"likely",
	"approximately",
	"roughly",
	"typically",
	"usually",
	"generally",
	"i think",
	"i believe",
	"i assume",
	"it seems",
	"as a rule",
	"in my experience",
	"based on experience",
}

// Answer returns the answer unchanged unless it hedges without containing a
// single digit, in which case the fixed not-found message is returned.
func Answer(answer string) string {
	lower := strings.ToLower(answer)

	hedged := false
	for _, marker := range hedgeMarkers {
		if strings.Contains(lower, marker) {
			hedged = true
			break
		}
	}
	if hedged && !containsDigit(answer) {
		return NotFoundMessage
	}
	return answer
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
