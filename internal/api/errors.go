package api

import "fmt"

// RequestError describes a failed RPC call. Failures are surfaced as values,
// never panics; callers decide whether a given code is actionable.
type RequestError struct {
	Status  int
	Code    string
	Message string
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s (http %d)", e.Code, e.Message, e.Status)
}

// IsConflict reports whether the failure was a state conflict, e.g. an
// approval already resolved by someone else.
func (e *RequestError) IsConflict() bool {
	return e != nil && e.Status == 409
}

// IsNotFound reports whether the target entity does not exist server-side.
func (e *RequestError) IsNotFound() bool {
	return e != nil && e.Status == 404
}
