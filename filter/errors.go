package filter

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel reasons carried by ParseError.
var (
	ErrMalformed        = errors.New("malformed filter expression")
	ErrUnknownFilter    = errors.New("unknown filter")
	ErrInvalidValue     = errors.New("invalid value for filter")
	ErrOperatorMismatch = errors.New("operator not supported")
)

// ParseError indicates a filter expression could not be parsed.
type ParseError struct {
	Expression  string
	Reason      string
	Suggestions []string
	Err         error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: '%s'", capitalize(e.Err.Error()), e.Expression)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
