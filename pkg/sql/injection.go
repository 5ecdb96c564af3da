package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a string literal that libinjection flagged.
type InjectionCheckResult struct {
	Literal     string // The literal value that was checked
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckLiteralForInjection uses libinjection to detect SQL injection patterns
// inside a single string literal. Returns nil when the literal is clean.
//
// Example:
//
//	CheckLiteralForInjection("AC/DC")                 // nil
//	CheckLiteralForInjection("x' OR '1'='1")          // Fingerprint "s&sos" (or similar)
func CheckLiteralForInjection(literal string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(literal)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		Literal:     literal,
		Fingerprint: string(fingerprint),
	}
}

// CheckLiteralsForInjection returns the first flagged literal, or nil if all are clean.
// Literals are checked in the order given.
func CheckLiteralsForInjection(literals []string) *InjectionCheckResult {
	for _, lit := range literals {
		if result := CheckLiteralForInjection(lit); result != nil {
			return result
		}
	}
	return nil
}
