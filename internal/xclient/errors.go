package xclient

import "fmt"

// ErrorKind classifies API request failures.
type ErrorKind string

const (
	Unauthorized  ErrorKind = "unauthorized"
	RateLimited   ErrorKind = "rate_limited"
	RequestFailed ErrorKind = "request_failed"
)

// APIError is returned for any failed platform API request.
type APIError struct {
	Kind     ErrorKind
	Status   int
	Endpoint string
	Body     string
	Err      error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api %s: %s", e.Kind, e.Endpoint)
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

func (e *APIError) Unwrap() error { return e.Err }
