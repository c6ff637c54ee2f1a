package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/logging"
)

const (
	genericFailure    = "Something went wrong. Please try again later."
	notRegisteredText = "User not registered! Use /register to register"
	notAdminText      = "You are not authorized to do that."
	staleText         = "That item was already handled by someone else. Nothing was changed."
)

// flow is one multi-step interaction. begin runs when the command is issued;
// handle receives every following non-command message.
type flow interface {
	kind() string
	begin(ctx context.Context) step
	handle(ctx context.Context, text string) step
}

// step is a flow's reaction to one input. done ends the flow.
type step struct {
	messages []application.Message
	done     bool
}

func reply(done bool, msgs ...application.Message) step {
	return step{messages: msgs, done: done}
}

func say(format string, args ...any) application.Message {
	if len(args) == 0 {
		return application.Text(format)
	}
	return application.Text(fmt.Sprintf(format, args...))
}

func choice(prompt string, options []application.Option) application.Message {
	return application.Message{Text: prompt, Options: options}
}

// env is what every flow needs from the dispatcher.
type env struct {
	services *application.Services
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

func (e *env) log(ctx context.Context, flowName string) *slog.Logger {
	return logging.FromContextOr(ctx, e.logger).With("component", "conversation", "flow", flowName)
}

// fail ends a flow with a message describing err.
func (e *env) fail(ctx context.Context, flowName string, err error) step {
	kind := application.ErrorKind(err)
	logger := e.log(ctx, flowName)
	switch kind {
	case "provider", "unexpected":
		logger.WarnContext(ctx, "flow abandoned", "error", err, "error_kind", kind)
	default:
		logger.DebugContext(ctx, "flow ended", "error", err, "error_kind", kind)
	}
	return reply(true, application.Text(failureText(err)))
}

func failureText(err error) string {
	var vErr *application.ValidationError
	switch {
	case errors.Is(err, application.ErrNotRegistered):
		return notRegisteredText
	case errors.Is(err, application.ErrNotAdmin):
		return notAdminText
	case errors.Is(err, application.ErrStaleReference):
		return staleText
	case errors.Is(err, application.ErrDuplicateUser):
		return "User already registered!"
	case errors.As(err, &vErr):
		return "Invalid input: " + vErr.Message("")
	default:
		return genericFailure
	}
}

// retry renders a validation problem followed by the prompt to answer again.
func retry(err error, prompt string) application.Message {
	var vErr *application.ValidationError
	if errors.As(err, &vErr) && vErr.HasErrors() {
		return say("Invalid input: %s. %s", vErr.Message(""), prompt)
	}
	return application.Text(prompt)
}

func dayListing(day time.Time, events []application.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bookings for %s:\n", application.FormatDate(day))
	if len(events) == 0 {
		b.WriteString("None\n")
	}
	for _, event := range events {
		fmt.Fprintf(&b, "%s [%s-%s]\n", event.Summary, application.FormatClock(event.Start), application.FormatClock(event.End))
	}
	return b.String()
}
