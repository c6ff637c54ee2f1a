package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/facility-booking/internal/application"
)

const (
	decisionApprove = "approve"
	decisionDeny    = "deny"
	decisionReject  = "reject"
	decisionCancel  = "cancel"
)

type approvalState int

const (
	approvalSelectRequest approvalState = iota
	approvalConfirm
)

// approvalFlow lets an admin pick a pending booking and approve or deny it.
type approvalFlow struct {
	env      *env
	userID   string
	state    approvalState
	snapshot []application.QueueEntry
	selected application.QueueEntry
}

func newApprovalFlow(e *env, userID string) *approvalFlow {
	return &approvalFlow{env: e, userID: userID}
}

func (f *approvalFlow) kind() string { return "approvebooking" }

func (f *approvalFlow) begin(ctx context.Context) step {
	entries, err := f.env.services.Decisions.Pending(f.userID)
	if err != nil {
		return f.env.fail(ctx, f.kind(), err)
	}
	if len(entries) == 0 {
		return reply(true, say("There are no pending bookings."))
	}
	f.snapshot = entries
	f.state = approvalSelectRequest
	return reply(false, f.menu())
}

func (f *approvalFlow) menu() application.Message {
	options := make([]application.Option, 0, len(f.snapshot))
	for _, entry := range f.snapshot {
		options = append(options, application.Option{
			Label: fmt.Sprintf("%d. %s: %s", entry.Index+1, entry.Request.Summary(), f.describe(entry.Request)),
			Value: strconv.Itoa(entry.Index),
		})
	}
	return choice("Select a pending booking to review", options)
}

func (f *approvalFlow) describe(request application.BookingRequest) string {
	return application.DescribeRequest(f.env.services.Facilities, request)
}

func (f *approvalFlow) handle(ctx context.Context, input string) step {
	switch f.state {
	case approvalSelectRequest:
		entry, ok := f.lookup(input)
		if !ok {
			return reply(false, f.menu())
		}
		f.selected = entry
		f.state = approvalConfirm
		prompt := fmt.Sprintf("%s requested %s.", entry.Request.Summary(), f.describe(entry.Request))
		if note := f.contention(ctx, entry.Request); note != "" {
			prompt += " " + note
		}
		return reply(false, choice(prompt,
			[]application.Option{
				{Label: "Approve", Value: decisionApprove},
				{Label: "Deny", Value: decisionDeny},
				{Label: "Cancel", Value: decisionCancel},
			}))

	case approvalConfirm:
		switch strings.ToLower(strings.TrimSpace(input)) {
		case decisionApprove:
			result, err := f.env.services.Decisions.Approve(ctx, f.userID, f.selected.Ref())
			if err != nil {
				return f.failed(ctx, err)
			}
			return reply(true, application.Text(approvalText(f.describe(result.Request), result)))
		case decisionDeny:
			result, err := f.env.services.Decisions.Deny(ctx, f.userID, f.selected.Ref())
			if err != nil {
				return f.failed(ctx, err)
			}
			return reply(true, application.Text(approvalText(f.describe(result.Request), result)))
		case decisionCancel:
			return reply(true, say("Action cancelled"))
		default:
			return reply(false, say("Please choose Approve, Deny or Cancel."))
		}
	}
	return f.env.fail(ctx, f.kind(), errors.New("approval flow in unknown state"))
}

// contention warns the admin about whatever else claims the selected window.
// Lookup failures only drop the warning; the decision re-checks anyway.
func (f *approvalFlow) contention(ctx context.Context, request application.BookingRequest) string {
	status, err := f.env.services.Availability.IsFreeExcluding(ctx, request.FacilityIndex, request.Start, request.End, request.ID)
	if err != nil {
		f.env.log(ctx, f.kind()).WarnContext(ctx, "contention check failed", "error", err, "error_kind", application.ErrorKind(err))
		return ""
	}
	switch {
	case status.Event != nil:
		return fmt.Sprintf("The slot is already booked by %s, so approving will deny this request.", status.Occupant)
	case status.CompetingPending == 1:
		return "1 other pending request overlaps this window. The first one approved wins."
	case status.CompetingPending > 1:
		return fmt.Sprintf("%d other pending requests overlap this window. The first one approved wins.", status.CompetingPending)
	}
	return ""
}

func (f *approvalFlow) lookup(input string) (application.QueueEntry, bool) {
	index, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return application.QueueEntry{}, false
	}
	for _, entry := range f.snapshot {
		if entry.Index == index {
			return entry, true
		}
	}
	return application.QueueEntry{}, false
}

func (f *approvalFlow) failed(ctx context.Context, err error) step {
	var pErr *application.ProviderError
	if errors.As(err, &pErr) {
		f.env.log(ctx, f.kind()).WarnContext(ctx, "decision failed", "error", err, "error_kind", application.ErrorKind(err))
		return reply(true, say("The calendar could not be reached. The request is still pending; try again later."))
	}
	if errors.Is(err, application.ErrStaleReference) {
		return reply(true, say("That request was already handled by another admin. Nothing was changed."))
	}
	return f.env.fail(ctx, f.kind(), err)
}

func approvalText(description string, result application.DecisionResult) string {
	requester := result.Request.Summary()
	switch result.Outcome {
	case application.DecisionApproved:
		return fmt.Sprintf("Booking approved: %s for %s.", requester, description)
	case application.DecisionAlreadyApplied:
		return fmt.Sprintf("The booking for %s by %s was already on the calendar. The requester has been told it is approved.", description, requester)
	case application.DecisionSlotTaken:
		return fmt.Sprintf("The slot for %s is no longer available (booked by %s). The request from %s was denied and they have been informed.",
			description, result.Occupant, requester)
	case application.DecisionDenied:
		return fmt.Sprintf("Booking denied: %s for %s.", requester, description)
	default:
		return genericFailure
	}
}
