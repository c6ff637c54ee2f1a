package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotRegistered is returned when the acting user has no registry entry.
	ErrNotRegistered = errors.New("application: user not registered")
	// ErrNotAdmin is returned when the acting user lacks admin privileges.
	ErrNotAdmin = errors.New("application: admin privileges required")
	// ErrDuplicateUser is returned when registering an id that already exists.
	ErrDuplicateUser = errors.New("application: user already registered")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrStaleReference is returned when a queue entry or registration request
	// vanished between presentation and selection.
	ErrStaleReference = errors.New("application: stale reference")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

func newValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v.FieldErrors[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Message returns the message recorded for field, or the first message in
// field order when field is empty.
func (v *ValidationError) Message(field string) string {
	if !v.HasErrors() {
		return ""
	}
	if field != "" {
		return v.FieldErrors[field]
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for name := range v.FieldErrors {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return v.FieldErrors[fields[0]]
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// OccupiedError reports that a window collides with an existing booking.
type OccupiedError struct {
	Occupant string
	Pending  bool
}

func (o *OccupiedError) Error() string {
	if o.Pending {
		return fmt.Sprintf("slot requested by %s (pending approval)", o.Occupant)
	}
	return fmt.Sprintf("slot already booked by %s", o.Occupant)
}

// ProviderError wraps a failed calendar, store or transport call.
type ProviderError struct {
	Op  string
	Err error
}

func (p *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", p.Op, p.Err)
}

func (p *ProviderError) Unwrap() error {
	return p.Err
}

// providerError wraps err unless it is nil or already a ProviderError.
func providerError(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *ProviderError
	if errors.As(err, &existing) {
		return err
	}
	return &ProviderError{Op: op, Err: err}
}
