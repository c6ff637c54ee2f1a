package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/facility-booking/internal/application"
)

type registrationState int

const (
	registrationIdentity registrationState = iota
	registrationNumeric
	registrationName
	registrationUnit
)

const (
	identityPrompt = "Please enter the last 4 characters of your identity number (e.g. 123A)."
	numericPrompt  = "Please enter the last 4 digits of your phone number."
	namePrompt     = "Please enter rank & name:"
	unitPrompt     = "Please enter your unit:"
)

// registrationFlow collects the two key fragments, name and unit.
type registrationFlow struct {
	env      *env
	userID   string
	state    registrationState
	identity string
	numeric  string
	name     string
}

func newRegistrationFlow(e *env, userID string) *registrationFlow {
	return &registrationFlow{env: e, userID: userID}
}

func (f *registrationFlow) kind() string { return "register" }

func (f *registrationFlow) begin(ctx context.Context) step {
	if _, ok := f.env.services.Registry.User(f.userID); ok {
		return reply(true, say("User already registered!"))
	}
	f.state = registrationIdentity
	return reply(false, say(identityPrompt))
}

func (f *registrationFlow) handle(ctx context.Context, input string) step {
	switch f.state {
	case registrationIdentity:
		identity, err := application.ParseIdentity(input)
		if err != nil {
			return reply(false, retry(err, identityPrompt))
		}
		f.identity = identity
		f.state = registrationNumeric
		return reply(false, say(numericPrompt))

	case registrationNumeric:
		numeric, err := application.ParseNumeric(input)
		if err != nil {
			return reply(false, retry(err, numericPrompt))
		}
		f.numeric = numeric
		f.state = registrationName
		return reply(false, say(namePrompt))

	case registrationName:
		if strings.TrimSpace(input) == "" {
			return reply(false, say(namePrompt))
		}
		f.name = input
		f.state = registrationUnit
		return reply(false, say(unitPrompt))

	case registrationUnit:
		return f.register(ctx, input)
	}
	return f.env.fail(ctx, f.kind(), errors.New("registration flow in unknown state"))
}

func (f *registrationFlow) register(ctx context.Context, unit string) step {
	outcome, user, err := f.env.services.Registry.Register(ctx, application.RegisterParams{
		UserID:      f.userID,
		Key:         application.AuthKey{Identity: f.identity, Numeric: f.numeric},
		DisplayName: f.name,
		Unit:        unit,
	})

	var vErr *application.ValidationError
	switch {
	case errors.As(err, &vErr):
		if msg := vErr.Message("display_name"); msg != "" {
			f.state = registrationName
			return reply(false, say("Invalid input: %s. %s", msg, namePrompt))
		}
		return reply(false, retry(err, unitPrompt))
	case err != nil:
		return f.env.fail(ctx, f.kind(), err)
	case outcome == application.OutcomeRegistered:
		return reply(true, say("You have successfully registered as %s.", user.DisplayName))
	default:
		return reply(true, say("You are now pending registration as %s. Please ask an admin to approve you.",
			strings.Join(strings.Fields(f.name), " ")))
	}
}

type registrationApprovalState int

const (
	registrationApprovalSelect registrationApprovalState = iota
	registrationApprovalConfirm
)

// registrationApprovalFlow lets an admin decide pending registrations.
type registrationApprovalFlow struct {
	env      *env
	userID   string
	args     []string
	state    registrationApprovalState
	pending  []application.RegistrationRequest
	selected application.RegistrationRequest
}

func newRegistrationApprovalFlow(e *env, userID string, args []string) *registrationApprovalFlow {
	return &registrationApprovalFlow{env: e, userID: userID, args: args}
}

func (f *registrationApprovalFlow) kind() string { return "approve" }

func (f *registrationApprovalFlow) begin(ctx context.Context) step {
	if _, err := f.env.services.Registry.RequireAdmin(f.userID); err != nil {
		return f.env.fail(ctx, f.kind(), err)
	}
	switch len(f.args) {
	case 0:
	case 2:
		return f.approveKey(ctx)
	default:
		return reply(true, say("Usage: /approve IDENTITY NUMERIC, or /approve on its own to review pending registrations."))
	}

	f.pending = f.env.services.Registry.PendingRegistrations()
	if len(f.pending) == 0 {
		return reply(true, say("There are no pending registrations."))
	}
	f.state = registrationApprovalSelect
	return reply(false, f.menu())
}

func (f *registrationApprovalFlow) approveKey(ctx context.Context) step {
	key, err := application.ParseAuthKey(f.args[0], f.args[1])
	if err != nil {
		return reply(true, retry(err, "Usage: /approve IDENTITY NUMERIC"))
	}
	if err := f.env.services.Registry.ApproveKey(ctx, f.userID, key); err != nil {
		return f.env.fail(ctx, f.kind(), err)
	}
	return reply(true, say("Identity %s & phone %s added to the allow-list.", key.Identity, key.Numeric))
}

func (f *registrationApprovalFlow) menu() application.Message {
	options := make([]application.Option, 0, len(f.pending))
	for _, request := range f.pending {
		options = append(options, application.Option{
			Label: fmt.Sprintf("%s %s (%s)", request.DisplayName, request.Unit, request.Key),
			Value: request.UserID,
		})
	}
	return choice("Select a pending registration to review", options)
}

func (f *registrationApprovalFlow) handle(ctx context.Context, input string) step {
	switch f.state {
	case registrationApprovalSelect:
		value := strings.TrimSpace(input)
		for _, request := range f.pending {
			if request.UserID == value {
				f.selected = request
				f.state = registrationApprovalConfirm
				return reply(false, choice(
					fmt.Sprintf("%s %s registered with identity %s & phone %s.",
						request.DisplayName, request.Unit, request.Key.Identity, request.Key.Numeric),
					[]application.Option{
						{Label: "Approve", Value: decisionApprove},
						{Label: "Reject", Value: decisionReject},
						{Label: "Cancel", Value: decisionCancel},
					}))
			}
		}
		return reply(false, f.menu())

	case registrationApprovalConfirm:
		switch strings.ToLower(strings.TrimSpace(input)) {
		case decisionApprove:
			user, err := f.env.services.Registry.ApproveRequest(ctx, f.userID, f.selected.UserID)
			if err != nil {
				return f.env.fail(ctx, f.kind(), err)
			}
			return reply(true, say("%s has been registered.", user.Summary()))
		case decisionReject:
			request, err := f.env.services.Registry.RejectRequest(ctx, f.userID, f.selected.UserID)
			if err != nil {
				return f.env.fail(ctx, f.kind(), err)
			}
			return reply(true, say("Registration for %s %s rejected.", request.DisplayName, request.Unit))
		case decisionCancel:
			return reply(true, say("Action cancelled"))
		default:
			return reply(false, say("Please choose Approve, Reject or Cancel."))
		}
	}
	return f.env.fail(ctx, f.kind(), errors.New("registration approval flow in unknown state"))
}
