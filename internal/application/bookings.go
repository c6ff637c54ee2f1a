package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/facility-booking/internal/scheduler"
)

// SubmitParams carries a composed booking window. ID is minted once per
// booking attempt so retried submissions are recognized.
type SubmitParams struct {
	ID            string
	UserID        string
	FacilityIndex int
	Start         time.Time
	End           time.Time
}

// FacilitySchedule is one facility's confirmed bookings for a day.
type FacilitySchedule struct {
	Facility Facility
	Events   []Event
}

// Bookings implements the member-facing booking operations.
type Bookings struct {
	registry     *Registry
	queue        *Queue
	availability *Availability
	calendar     Calendar
	notifier     *Notifier
	facilities   Facilities
	now          func() time.Time
	logger       *slog.Logger
}

// NewBookings wires the booking service.
func NewBookings(registry *Registry, queue *Queue, availability *Availability, calendar Calendar, notifier *Notifier, facilities Facilities, now func() time.Time, logger *slog.Logger) *Bookings {
	if now == nil {
		now = time.Now
	}
	return &Bookings{
		registry:     registry,
		queue:        queue,
		availability: availability,
		calendar:     calendar,
		notifier:     notifier,
		facilities:   facilities,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (b *Bookings) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, b.logger, "Bookings", operation, attrs...)
}

// Facilities returns the catalogue.
func (b *Bookings) Facilities() Facilities {
	return b.facilities
}

// Submit checks the window and queues it for approval. An occupied window
// yields *OccupiedError. Submitting an id that is already queued returns the
// queued request without notifying admins again.
func (b *Bookings) Submit(ctx context.Context, params SubmitParams) (request BookingRequest, err error) {
	if b == nil {
		err = fmt.Errorf("Bookings is nil")
		return
	}

	logger := b.loggerWith(ctx, "Submit",
		"user_id", params.UserID,
		"request_id", params.ID,
		"facility_index", params.FacilityIndex,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "booking submission failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking submitted")
	}()

	user, err := b.registry.RequireUser(params.UserID)
	if err != nil {
		return
	}
	if queued, ok := b.queue.Find(params.ID); ok {
		request = queued
		return
	}

	status, err := b.availability.IsFree(ctx, params.FacilityIndex, params.Start, params.End)
	if err != nil {
		return
	}
	if !status.Free {
		err = &OccupiedError{Occupant: status.Occupant, Pending: status.Event == nil}
		return
	}

	request = BookingRequest{
		ID:            params.ID,
		RequesterID:   user.ID,
		DisplayName:   user.DisplayName,
		Unit:          user.Unit,
		FacilityIndex: params.FacilityIndex,
		Start:         params.Start.In(OrganizationZone),
		End:           params.End.In(OrganizationZone),
		CreatedAt:     b.now(),
	}
	var added bool
	request, added, err = b.queue.Enqueue(ctx, request)
	if err != nil || !added {
		return
	}

	text := fmt.Sprintf("%s has requested %s. Review pending bookings with /approvebooking.",
		request.Summary(), DescribeRequest(b.facilities, request))
	if status.CompetingPending > 0 {
		text += fmt.Sprintf(" %d other pending request(s) overlap this slot.", status.CompetingPending)
	}
	b.notifier.Broadcast(ctx, b.registry.Admins(), Text(text))
	return
}

// DayListing returns confirmed bookings on facility for day.
func (b *Bookings) DayListing(ctx context.Context, facilityIndex int, day time.Time) ([]Event, error) {
	return b.availability.DayListing(ctx, facilityIndex, day)
}

// DaySchedule returns every facility's confirmed bookings for day.
func (b *Bookings) DaySchedule(ctx context.Context, day time.Time) ([]FacilitySchedule, error) {
	schedule := make([]FacilitySchedule, 0, len(b.facilities))
	for _, facility := range b.facilities {
		events, err := b.availability.DayListing(ctx, facility.Index, day)
		if err != nil {
			return nil, err
		}
		schedule = append(schedule, FacilitySchedule{Facility: facility, Events: events})
	}
	return schedule, nil
}

// OwnBookings returns the user's confirmed bookings on facility for day.
func (b *Bookings) OwnBookings(ctx context.Context, userID string, facilityIndex int, day time.Time) ([]Event, error) {
	user, err := b.registry.RequireUser(userID)
	if err != nil {
		return nil, err
	}
	events, err := b.availability.DayListing(ctx, facilityIndex, day)
	if err != nil {
		return nil, err
	}
	summary := user.Summary()
	var own []Event
	for _, event := range events {
		if normalizeLabel(event.Summary) == summary {
			own = append(own, event)
		}
	}
	return own, nil
}

// DeleteOwn removes one of the user's confirmed bookings. A booking that is
// gone or no longer carries the user's summary yields ErrStaleReference.
func (b *Bookings) DeleteOwn(ctx context.Context, userID string, event Event) (err error) {
	logger := b.loggerWith(ctx, "DeleteOwn", "user_id", userID, "event_id", event.ID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking deleted")
	}()

	own, err := b.OwnBookings(ctx, userID, event.FacilityIndex, event.Start)
	if err != nil {
		return err
	}
	found := false
	for _, candidate := range own {
		if candidate.ID == event.ID {
			found = true
			break
		}
	}
	if !found {
		return ErrStaleReference
	}

	if err := b.calendar.DeleteEvent(ctx, event.FacilityIndex, event.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrStaleReference
		}
		return providerError("delete event", err)
	}
	return nil
}

// Audit scans confirmed bookings from day for the given number of days and
// reports overlapping pairs. Bookings written outside this service are the
// only way such pairs can appear.
func (b *Bookings) Audit(ctx context.Context, day time.Time, days int) ([]scheduler.Conflict, error) {
	if days <= 0 {
		days = 1
	}
	start := StartOfDay(day)
	end := start.AddDate(0, 0, days)

	var slots []scheduler.Slot
	for _, facility := range b.facilities {
		events, err := b.availability.ConfirmedConflicts(ctx, facility.Index, start, end)
		if err != nil {
			return nil, err
		}
		for _, event := range events {
			slots = append(slots, scheduler.Slot{
				ID:       event.ID,
				Resource: facility.Index,
				Label:    event.Summary,
				Start:    event.Start,
				End:      event.End,
			})
		}
	}
	return scheduler.FindOverlaps(slots), nil
}
