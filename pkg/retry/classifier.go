package retry

import "strings"

// Class tells the orchestrator whether regenerating SQL can fix a failure.
type Class string

const (
	// Terminal failures end the request; no amount of regeneration helps.
	Terminal Class = "terminal"
	// Retryable failures are local SQL defects the generator may fix.
	Retryable Class = "retryable"
)

// Phrases are matched case-insensitively as substrings of the reason.
// Terminal phrases win when a reason matches both lists.
var (
	terminalPhrases = []string{
		"no such table",
		"no such column",
		"unknown table",
		"unknown column",
		"does not exist",
		"cannot resolve",
	}

	retryablePhrases = []string{
		"syntax error",
		"group by",
		"ambiguous column",
		"misuse of aggregate",
		"invalid sql",
		"join condition does not match",
		"joins do not form a connected path",
		"join condition cannot be analyzed",
	}
)

// Classify maps a validation or execution failure reason to a Class.
// Reasons matching neither list are Terminal.
func Classify(reason string) Class {
	msg := strings.ToLower(reason)

	for _, phrase := range terminalPhrases {
		if strings.Contains(msg, phrase) {
			return Terminal
		}
	}

	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return Retryable
		}
	}

	return Terminal
}
