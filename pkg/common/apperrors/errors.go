package apperrors

import (
	"errors"
	"fmt"
)

// Kind identifies the failure class so callers can branch without
// string-matching messages.
type Kind string

const (
	KindRateLimitExceeded     Kind = "rate_limit_exceeded"
	KindUpstreamAPI           Kind = "upstream_api"
	KindParse                 Kind = "parse"
	KindNoMedicalData         Kind = "no_medical_data"
	KindNoConditionsExtracted Kind = "no_conditions_extracted"
	KindNotFound              Kind = "not_found"
	KindConfig                Kind = "config"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind carried by err, or empty when err is not an
// application error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retriable reports whether the failure class is worth another attempt.
// Rate-limit denials and precondition failures are surfaced to the caller
// as-is; only upstream transport failures qualify.
func Retriable(err error) bool {
	return KindOf(err) == KindUpstreamAPI
}
