package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "Configuration"
	ErrorTypeInventory     ErrorType = "Inventory"
	ErrorTypeTransport     ErrorType = "Transport"
	ErrorTypePublish       ErrorType = "Publish"
	ErrorTypeValidation    ErrorType = "Validation"
)

// Component names the collaborator an error originates from
type Component string

const (
	ComponentCloudStack Component = "CloudStack"
	ComponentRabbitMQ   Component = "RabbitMQ"
	ComponentNATS       Component = "NATS"
	ComponentLoader     Component = "Loader"
	ComponentNeo4j      Component = "Neo4j"
	ComponentDriver     Component = "Driver"
)

// DriverError is an error carrying operator guidance
type DriverError struct {
	Type      ErrorType
	Component Component
	Message   string
	Cause     string
	Solutions []string
	Err       error
}

// Error implements the error interface
func (e *DriverError) Error() string {
	var sb strings.Builder

	sb.WriteString(e.Message)
	if e.Cause != "" {
		sb.WriteString(": " + e.Cause)
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}

	return sb.String()
}

// Unwrap exposes the wrapped error to errors.Is and errors.As
func (e *DriverError) Unwrap() error {
	return e.Err
}

// Format implements fmt.Formatter for custom formatting
func (e *DriverError) Format(f fmt.State, verb rune) {
	switch verb {
	case 's':
		fmt.Fprintf(f, "%s", e.Error())
	case 'v':
		if f.Flag('+') {
			fmt.Fprintf(f, "[%s/%s] %s", e.Type, e.Component, e.Error())
		} else {
			fmt.Fprintf(f, "%s", e.Error())
		}
	}
}

// New creates a new DriverError
func New(errType ErrorType, component Component, message string) *DriverError {
	return &DriverError{
		Type:      errType,
		Component: component,
		Message:   message,
	}
}

// Wrap creates a DriverError around an underlying error
func Wrap(err error, errType ErrorType, component Component, message string) *DriverError {
	return &DriverError{
		Type:      errType,
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// WithCause adds cause information
func (e *DriverError) WithCause(cause string) *DriverError {
	e.Cause = cause
	return e
}

// WithSolutions adds solution steps
func (e *DriverError) WithSolutions(solutions ...string) *DriverError {
	e.Solutions = append(e.Solutions, solutions...)
	return e
}

// IsType reports whether err is a DriverError of the given type
func IsType(err error, errType ErrorType) bool {
	var driverErr *DriverError
	if stderrors.As(err, &driverErr) {
		return driverErr.Type == errType
	}
	return false
}

// GetExitCode returns appropriate exit code for error type
func GetExitCode(err error) int {
	var driverErr *DriverError
	if !stderrors.As(err, &driverErr) {
		return 1
	}

	switch driverErr.Type {
	case ErrorTypeConfiguration:
		return 78 // EX_CONFIG
	case ErrorTypeInventory, ErrorTypeTransport:
		return 69 // EX_UNAVAILABLE
	case ErrorTypePublish:
		return 75 // EX_TEMPFAIL
	case ErrorTypeValidation:
		return 65 // EX_DATAERR
	default:
		return 1
	}
}
