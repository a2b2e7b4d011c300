package engine

import "fmt"

// ValidationError flags missing or malformed input, with a field-level
// message for the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AuthorizationError means a role or capability guard failed. The message is
// deliberately generic: it never reveals which flag was missing.
type AuthorizationError struct{}

func (AuthorizationError) Error() string { return "not permitted" }

// ConflictError covers duplicate unique keys and transitions attempted from
// an unexpected current state.
type ConflictError struct {
	Message string
}

func (e ConflictError) Error() string { return e.Message }

// InfrastructureError wraps store failures. Detail is for logs; callers see
// only a generic failure.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e InfrastructureError) Unwrap() error { return e.Err }

func infra(op string, err error) error {
	return InfrastructureError{Op: op, Err: err}
}
