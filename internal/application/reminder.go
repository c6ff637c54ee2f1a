package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ReminderResult summarizes one reminder broadcast.
type ReminderResult struct {
	Bookings   int
	Recipients int
	Delivered  int
}

// Reminder broadcasts today's tracked-movement bookings to every member.
type Reminder struct {
	registry     *Registry
	availability *Availability
	facilities   Facilities
	notifier     *Notifier
	now          func() time.Time
	logger       *slog.Logger
}

// NewReminder wires the broadcast.
func NewReminder(registry *Registry, availability *Availability, facilities Facilities, notifier *Notifier, now func() time.Time, logger *slog.Logger) *Reminder {
	if now == nil {
		now = time.Now
	}
	return &Reminder{
		registry:     registry,
		availability: availability,
		facilities:   facilities,
		notifier:     notifier,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

// Send lists today's bookings on tracked facilities and, when any exist,
// sends the timings to every registered user.
func (r *Reminder) Send(ctx context.Context) (ReminderResult, error) {
	var result ReminderResult
	today := StartOfDay(r.now())
	logger := serviceLogger(ctx, r.logger, "Reminder", "Send", "date", FormatDate(today))

	var b strings.Builder
	for _, facility := range r.facilities.Tracked() {
		events, err := r.availability.DayListing(ctx, facility.Index, today)
		if err != nil {
			logger.ErrorContext(ctx, "failed to list tracked movements", "error", err, "error_kind", ErrorKind(err))
			return result, err
		}
		if len(events) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", facility.Name)
		for _, event := range events {
			fmt.Fprintf(&b, "[%s-%s]\n", FormatClock(event.Start), FormatClock(event.End))
		}
		result.Bookings += len(events)
	}
	if result.Bookings == 0 {
		logger.InfoContext(ctx, "no tracked movements today")
		return result, nil
	}

	text := fmt.Sprintf("Please be reminded that there will be tracked vehicle movement today (%s) at these timings:\n%s",
		FormatDate(today), b.String())
	recipients := r.registry.Users()
	result.Recipients = len(recipients)
	result.Delivered = r.notifier.Broadcast(ctx, recipients, Text(text))
	logger.InfoContext(ctx, "tracked movement reminder sent",
		"bookings", result.Bookings,
		"recipients", result.Recipients,
		"delivered", result.Delivered)
	return result, nil
}
