package provision

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a provisioning failure.
type ErrorKind string

const (
	// ErrorKindConfig indicates the supplied topology is structurally
	// invalid. Raised before any work is scheduled.
	ErrorKindConfig ErrorKind = "config"

	// ErrorKindService indicates the underlying cloud call failed at the
	// transport or API level. Wraps the original error; never retried.
	ErrorKindService ErrorKind = "service"

	// ErrorKindContract indicates a call reported success but omitted a
	// field the API contract guarantees (ARN, URL, subscription id).
	// Always fatal to the leaf, never retried.
	ErrorKindContract ErrorKind = "contract"

	// ErrorKindPolicy indicates a queue requires an access policy but the
	// region or account needed to build one is missing in an environment
	// where provisioning without a policy would be unsafe.
	ErrorKindPolicy ErrorKind = "policy"
)

// Error is a classified provisioning failure carrying enough context to
// log meaningfully: the logical resource name and the cloud operation
// being performed.
type Error struct {
	Kind      ErrorKind
	Message   string
	Resource  string
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Resource != "" && e.Operation != "":
		return fmt.Sprintf("[%s] %s (resource=%s, operation=%s)%s",
			e.Kind, e.Message, e.Resource, e.Operation, e.causeSuffix())
	case e.Resource != "":
		return fmt.Sprintf("[%s] %s (resource=%s)%s", e.Kind, e.Message, e.Resource, e.causeSuffix())
	default:
		return fmt.Sprintf("[%s] %s%s", e.Kind, e.Message, e.causeSuffix())
	}
}

func (e *Error) causeSuffix() string {
	if e.Err == nil {
		return ""
	}
	return ": " + e.Err.Error()
}

// Unwrap returns the underlying error for chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind, so callers can compare against a
// bare kind-only Error value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewConfigError creates a config classification error.
func NewConfigError(message string) *Error {
	return &Error{Kind: ErrorKindConfig, Message: message}
}

// NewServiceError creates a service classification error wrapping the
// failed cloud call.
func NewServiceError(message string, err error) *Error {
	return &Error{Kind: ErrorKindService, Message: message, Err: err}
}

// NewContractViolation creates a contract classification error.
func NewContractViolation(message string) *Error {
	return &Error{Kind: ErrorKindContract, Message: message}
}

// NewPolicyUnresolvable creates a policy classification error.
func NewPolicyUnresolvable(message string) *Error {
	return &Error{Kind: ErrorKindPolicy, Message: message}
}

// WithResource adds the logical resource name to the error.
func (e *Error) WithResource(logical string) *Error {
	e.Resource = logical
	return e
}

// WithOperation adds the cloud operation name to the error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// KindOf returns the classification of err, or an empty kind when err is
// not a provisioning error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsConfigError reports whether err is classified as a config error.
func IsConfigError(err error) bool {
	return KindOf(err) == ErrorKindConfig
}

// IsServiceError reports whether err is classified as a service error.
func IsServiceError(err error) bool {
	return KindOf(err) == ErrorKindService
}

// IsContractViolation reports whether err is classified as a contract
// violation.
func IsContractViolation(err error) bool {
	return KindOf(err) == ErrorKindContract
}

// IsPolicyUnresolvable reports whether err is classified as an
// unresolvable policy error.
func IsPolicyUnresolvable(err error) bool {
	return KindOf(err) == ErrorKindPolicy
}
