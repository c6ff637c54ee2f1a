package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/facility-booking/internal/scheduler"
)

// DecisionOutcome reports how an admin decision resolved.
type DecisionOutcome int

const (
	// DecisionApproved means a confirmed booking was written.
	DecisionApproved DecisionOutcome = iota + 1
	// DecisionAlreadyApplied means an identical booking already existed.
	DecisionAlreadyApplied
	// DecisionSlotTaken means another booking won the slot and the request
	// was denied automatically.
	DecisionSlotTaken
	// DecisionDenied means the admin denied the request.
	DecisionDenied
)

func (o DecisionOutcome) String() string {
	switch o {
	case DecisionApproved:
		return "approved"
	case DecisionAlreadyApplied:
		return "already_applied"
	case DecisionSlotTaken:
		return "slot_taken"
	case DecisionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// DecisionResult describes a resolved queue entry.
type DecisionResult struct {
	Outcome  DecisionOutcome
	Request  BookingRequest
	EventID  string
	Occupant string
}

// Decisions applies admin approvals and denials to the booking queue.
type Decisions struct {
	registry     *Registry
	queue        *Queue
	availability *Availability
	calendar     Calendar
	notifier     *Notifier
	facilities   Facilities
	logger       *slog.Logger
}

// NewDecisions wires the approval workflow.
func NewDecisions(registry *Registry, queue *Queue, availability *Availability, calendar Calendar, notifier *Notifier, facilities Facilities, logger *slog.Logger) *Decisions {
	return &Decisions{
		registry:     registry,
		queue:        queue,
		availability: availability,
		calendar:     calendar,
		notifier:     notifier,
		facilities:   facilities,
		logger:       defaultLogger(logger),
	}
}

func (d *Decisions) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, d.logger, "Decisions", operation, attrs...)
}

// Pending returns the queue snapshot for an admin.
func (d *Decisions) Pending(actorID string) ([]QueueEntry, error) {
	if _, err := d.registry.RequireAdmin(actorID); err != nil {
		return nil, err
	}
	return d.queue.Snapshot(), nil
}

// Approve re-checks the request's window against confirmed bookings and then
// either commits it, treats an identical existing booking as already applied,
// or denies it automatically when another booking took the slot. A provider
// failure leaves the request queued.
func (d *Decisions) Approve(ctx context.Context, actorID string, ref QueueRef) (result DecisionResult, err error) {
	if d == nil {
		err = fmt.Errorf("Decisions is nil")
		return
	}

	logger := d.loggerWith(ctx, "Approve", "principal_id", actorID, "request_id", ref.ID, "index", ref.Index)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "approval failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "approval resolved", "outcome", result.Outcome.String(), "event_id", result.EventID)
	}()

	if _, err = d.registry.RequireAdmin(actorID); err != nil {
		return
	}

	result.Request, err = d.queue.Decide(ctx, ref, func(ctx context.Context, entry QueueEntry) error {
		request := entry.Request
		conflicts, err := d.availability.ConfirmedConflicts(ctx, request.FacilityIndex, request.Start, request.End)
		if err != nil {
			return err
		}

		candidate := scheduler.Slot{Resource: request.FacilityIndex, Label: request.Summary(), Start: request.Start, End: request.End}
		for _, event := range conflicts {
			existing := scheduler.Slot{ID: event.ID, Resource: event.FacilityIndex, Label: event.Summary, Start: event.Start, End: event.End}
			if normalizeLabel(existing.Label) == candidate.Label && scheduler.SameWindow(existing, candidate) {
				result.Outcome = DecisionAlreadyApplied
				result.EventID = event.ID
				return nil
			}
		}
		if len(conflicts) > 0 {
			result.Outcome = DecisionSlotTaken
			result.Occupant = conflicts[0].Summary
			return nil
		}

		eventID, err := d.calendar.InsertEvent(ctx, request.FacilityIndex, request.Summary(), request.Start, request.End)
		if err != nil {
			return providerError("insert event", err)
		}
		result.Outcome = DecisionApproved
		result.EventID = eventID
		return nil
	})
	if err != nil {
		return
	}

	d.notifyRequester(ctx, result)
	return
}

// Deny removes the request without touching the calendar.
func (d *Decisions) Deny(ctx context.Context, actorID string, ref QueueRef) (result DecisionResult, err error) {
	if d == nil {
		err = fmt.Errorf("Decisions is nil")
		return
	}

	logger := d.loggerWith(ctx, "Deny", "principal_id", actorID, "request_id", ref.ID, "index", ref.Index)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "denial failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "request denied")
	}()

	if _, err = d.registry.RequireAdmin(actorID); err != nil {
		return
	}

	result.Request, err = d.queue.Decide(ctx, ref, func(context.Context, QueueEntry) error {
		result.Outcome = DecisionDenied
		return nil
	})
	if err != nil {
		return
	}
	d.notifyRequester(ctx, result)
	return
}

// ExpirePending drops requests older than cutoff and tells each requester.
func (d *Decisions) ExpirePending(ctx context.Context, cutoff time.Time) ([]BookingRequest, error) {
	expired, err := d.queue.ExpireBefore(ctx, cutoff)
	for _, request := range expired {
		d.notifier.Notify(ctx, request.RequesterID, Text(fmt.Sprintf(
			"Your booking request for %s expired before an admin reviewed it.", d.describe(request))))
	}
	return expired, err
}

func (d *Decisions) notifyRequester(ctx context.Context, result DecisionResult) {
	request := result.Request
	var text string
	switch result.Outcome {
	case DecisionApproved, DecisionAlreadyApplied:
		text = fmt.Sprintf("Your booking for %s has been approved.", d.describe(request))
	case DecisionSlotTaken:
		text = fmt.Sprintf("Your booking for %s could not be approved: the slot is no longer available (booked by %s).",
			d.describe(request), result.Occupant)
	case DecisionDenied:
		text = fmt.Sprintf("Your booking for %s has been denied.", d.describe(request))
	default:
		return
	}
	d.notifier.Notify(ctx, request.RequesterID, Text(text))
}

func (d *Decisions) describe(request BookingRequest) string {
	return DescribeRequest(d.facilities, request)
}

// DescribeRequest renders "<facility> on DD/MM/YYYY HHMM-HHMM".
func DescribeRequest(facilities Facilities, request BookingRequest) string {
	name := fmt.Sprintf("facility %d", request.FacilityIndex)
	if facility, err := facilities.Lookup(request.FacilityIndex); err == nil {
		name = facility.Name
	}
	return fmt.Sprintf("%s on %s", name, FormatWindow(request.Start, request.End))
}
