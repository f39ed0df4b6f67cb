package core

import "fmt"

// DecodeError reports a backend payload that failed boundary validation.
// Malformed responses are rejected with a typed error instead of being
// silently defaulted field by field.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return "decode: " + e.Reason
	}
	return fmt.Sprintf("decode %s: %s", e.Field, e.Reason)
}
