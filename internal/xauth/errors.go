package xauth

import "fmt"

// Kind classifies authentication failures.
type Kind string

const (
	StateMismatch  Kind = "state_mismatch"
	ExchangeFailed Kind = "exchange_failed"
	RefreshFailed  Kind = "refresh_failed"
)

// AuthError is returned for any failure in the OAuth flow.
type AuthError struct {
	Kind   Kind
	Status int    // HTTP status from the provider, if any
	Body   string // provider error body, if any
	Err    error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("auth %s", e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }
