package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/facility-booking/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var ctxBuf, baseBuf bytes.Buffer
	ctxLogger := slog.New(slog.NewTextHandler(&ctxBuf, nil))
	base := slog.New(slog.NewTextHandler(&baseBuf, nil))

	ctx := logging.ContextWithLogger(context.Background(), ctxLogger)
	serviceLogger(ctx, base, "Queue", "Enqueue", "request_id", "req-1").Info("hello")

	if baseBuf.Len() != 0 {
		t.Fatalf("expected base logger to stay silent")
	}
	line := ctxBuf.String()
	for _, want := range []string{"service=Queue", "operation=Enqueue", "request_id=req-1"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNotRegistered, "not_registered"},
		{fmt.Errorf("wrapped: %w", ErrNotAdmin), "not_admin"},
		{ErrDuplicateUser, "duplicate_user"},
		{ErrStaleReference, "stale_reference"},
		{ErrNotFound, "not_found"},
		{context.Canceled, "canceled"},
		{&ValidationError{FieldErrors: map[string]string{"date": "past"}}, "validation"},
		{&OccupiedError{Occupant: "A Team"}, "occupied"},
		{&ProviderError{Op: "list events", Err: errors.New("boom")}, "provider"},
		{errors.New("boom"), "unexpected"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
