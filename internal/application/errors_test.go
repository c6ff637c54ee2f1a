package application

import (
	"errors"
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"unit": "missing", "date": "past"}}
	if got := withFields.Error(); got != "validation failed: date: past; unit: missing" {
		t.Fatalf("expected sorted field listing, got %q", got)
	}
}

func TestValidationError_Message(t *testing.T) {
	t.Parallel()

	vErr := &ValidationError{FieldErrors: map[string]string{"numeric": "four digits", "identity": "bad"}}
	if got := vErr.Message("numeric"); got != "four digits" {
		t.Fatalf("expected field message, got %q", got)
	}
	if got := vErr.Message(""); got != "bad" {
		t.Fatalf("expected first field in order, got %q", got)
	}
	var nilErr *ValidationError
	if got := nilErr.Message(""); got != "" {
		t.Fatalf("expected empty message for nil error, got %q", got)
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestProviderError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := providerError("insert event", cause)

	var pErr *ProviderError
	if !errors.As(err, &pErr) || pErr.Op != "insert event" {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected ProviderError to unwrap to cause")
	}
	if again := providerError("outer", err); again != err {
		t.Fatalf("expected existing ProviderError to pass through unchanged")
	}
	if providerError("noop", nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
}

func TestOccupiedError(t *testing.T) {
	t.Parallel()

	confirmed := &OccupiedError{Occupant: "A Team"}
	if !strings.Contains(confirmed.Error(), "A Team") {
		t.Fatalf("expected occupant in message, got %q", confirmed.Error())
	}
	pending := &OccupiedError{Occupant: "B Team", Pending: true}
	if !strings.Contains(pending.Error(), "pending") {
		t.Fatalf("expected pending marker, got %q", pending.Error())
	}
}
