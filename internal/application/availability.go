package application

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/example/facility-booking/internal/scheduler"
)

// SlotStatus is the oracle's answer for one window.
type SlotStatus struct {
	Free     bool
	Occupant string
	// Event is the confirmed booking that occupies the window, when any.
	Event *Event
	// CompetingPending counts pending requests overlapping the window.
	CompetingPending int
}

// Availability answers whether a facility window is free.
type Availability struct {
	calendar       Calendar
	queue          *Queue
	facilities     Facilities
	blockOnPending bool
	logger         *slog.Logger
}

// AvailabilityOption customizes the oracle.
type AvailabilityOption func(*Availability)

// WithBlockOnPending makes overlapping pending requests block submissions.
func WithBlockOnPending(block bool) AvailabilityOption {
	return func(a *Availability) { a.blockOnPending = block }
}

// WithAvailabilityLogger sets the base logger.
func WithAvailabilityLogger(logger *slog.Logger) AvailabilityOption {
	return func(a *Availability) { a.logger = logger }
}

// NewAvailability builds the oracle over calendar and queue.
func NewAvailability(calendar Calendar, queue *Queue, facilities Facilities, opts ...AvailabilityOption) *Availability {
	a := &Availability{calendar: calendar, queue: queue, facilities: facilities}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = defaultLogger(a.logger)
	return a
}

// IsFree checks the window against confirmed bookings and then the pending
// queue. Pending requests only block when the oracle was built with
// WithBlockOnPending.
func (a *Availability) IsFree(ctx context.Context, facilityIndex int, start, end time.Time) (SlotStatus, error) {
	return a.isFree(ctx, facilityIndex, start, end, "")
}

// IsFreeExcluding is IsFree ignoring the pending request excludeID.
func (a *Availability) IsFreeExcluding(ctx context.Context, facilityIndex int, start, end time.Time, excludeID string) (SlotStatus, error) {
	return a.isFree(ctx, facilityIndex, start, end, excludeID)
}

func (a *Availability) isFree(ctx context.Context, facilityIndex int, start, end time.Time, excludeID string) (SlotStatus, error) {
	status, err := a.IsFreeConfirmed(ctx, facilityIndex, start, end)
	if err != nil || !status.Free {
		return status, err
	}
	if a.queue == nil {
		return status, nil
	}

	competing := a.queue.Overlapping(facilityIndex, start, end, excludeID)
	status.CompetingPending = len(competing)
	if len(competing) > 0 && a.blockOnPending {
		return SlotStatus{
			Free:             false,
			Occupant:         competing[0].Summary(),
			CompetingPending: len(competing),
		}, nil
	}
	return status, nil
}

// IsFreeConfirmed checks the window against confirmed bookings only.
func (a *Availability) IsFreeConfirmed(ctx context.Context, facilityIndex int, start, end time.Time) (SlotStatus, error) {
	conflicts, err := a.ConfirmedConflicts(ctx, facilityIndex, start, end)
	if err != nil {
		return SlotStatus{}, err
	}
	if len(conflicts) == 0 {
		return SlotStatus{Free: true}, nil
	}
	first := conflicts[0]
	return SlotStatus{Free: false, Occupant: first.Summary, Event: &first}, nil
}

// ConfirmedConflicts returns every confirmed booking intersecting the window
// in provider order.
func (a *Availability) ConfirmedConflicts(ctx context.Context, facilityIndex int, start, end time.Time) ([]Event, error) {
	if _, err := a.facilities.Lookup(facilityIndex); err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, newValidationError("end", "end time must be after start time")
	}

	events, err := a.calendar.ListEvents(ctx, facilityIndex, start, end)
	if err != nil {
		return nil, providerError("list events", err)
	}

	var out []Event
	for _, event := range events {
		if scheduler.Overlaps(event.Start, event.End, start, end) {
			out = append(out, event)
		}
	}
	return out, nil
}

// DayListing returns the confirmed bookings on facility for the calendar day
// containing day, ordered by start. Pending requests are never listed.
func (a *Availability) DayListing(ctx context.Context, facilityIndex int, day time.Time) ([]Event, error) {
	dayStart := StartOfDay(day)
	events, err := a.ConfirmedConflicts(ctx, facilityIndex, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}
