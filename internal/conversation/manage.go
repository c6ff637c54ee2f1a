package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/facility-booking/internal/application"
)

// promoteFlow lets an admin grant admin rights to a member.
type promoteFlow struct {
	env        *env
	userID     string
	candidates []application.User
}

func newPromoteFlow(e *env, userID string) *promoteFlow {
	return &promoteFlow{env: e, userID: userID}
}

func (f *promoteFlow) kind() string { return "promote" }

func (f *promoteFlow) begin(ctx context.Context) step {
	if _, err := f.env.services.Registry.RequireAdmin(f.userID); err != nil {
		return f.env.fail(ctx, f.kind(), err)
	}
	f.candidates = f.env.services.Registry.NonAdmins()
	if len(f.candidates) == 0 {
		return reply(true, say("There are no users to promote."))
	}
	return reply(false, f.menu())
}

func (f *promoteFlow) menu() application.Message {
	options := make([]application.Option, 0, len(f.candidates))
	for _, user := range f.candidates {
		options = append(options, application.Option{Label: user.Summary(), Value: user.ID})
	}
	return choice("Select a user to promote to admin", options)
}

func (f *promoteFlow) handle(ctx context.Context, input string) step {
	value := strings.TrimSpace(input)
	for _, candidate := range f.candidates {
		if candidate.ID != value {
			continue
		}
		user, err := f.env.services.Registry.Promote(ctx, f.userID, candidate.ID)
		if errors.Is(err, application.ErrNotFound) {
			return reply(true, say("%s is no longer registered.", candidate.Summary()))
		}
		if err != nil {
			return f.env.fail(ctx, f.kind(), err)
		}
		return reply(true, say("%s is now an admin.", user.Summary()))
	}
	return reply(false, f.menu())
}

type deleteState int

const (
	deleteSelectFacility deleteState = iota
	deleteSelectDate
	deleteSelectBooking
)

const deleteFacilityPrompt = "Please select the facility you are deleting a booking for"

// deleteFlow removes one of the caller's own confirmed bookings.
type deleteFlow struct {
	env      *env
	userID   string
	state    deleteState
	facility application.Facility
	day      time.Time
	own      []application.Event
}

func newDeleteFlow(e *env, userID string) *deleteFlow {
	return &deleteFlow{env: e, userID: userID}
}

func (f *deleteFlow) kind() string { return "delete" }

func (f *deleteFlow) begin(ctx context.Context) step {
	if _, err := f.env.services.Registry.RequireUser(f.userID); err != nil {
		return f.env.fail(ctx, f.kind(), err)
	}
	f.state = deleteSelectFacility
	return reply(false, choice(deleteFacilityPrompt, f.env.services.Facilities.Options()))
}

func (f *deleteFlow) handle(ctx context.Context, input string) step {
	switch f.state {
	case deleteSelectFacility:
		facility, err := f.env.services.Facilities.Parse(input)
		if err != nil {
			return reply(false, choice(deleteFacilityPrompt, f.env.services.Facilities.Options()))
		}
		f.facility = facility
		f.state = deleteSelectDate
		return reply(false, say("Please enter the date of the booking on %s you want to delete.", facility.Name))

	case deleteSelectDate:
		day, err := application.ParseDate(input, f.env.now())
		if err != nil {
			return reply(false, retry(err, "Please enter a valid booking date."))
		}
		own, err := f.env.services.Bookings.OwnBookings(ctx, f.userID, f.facility.Index, day)
		if err != nil {
			return f.env.fail(ctx, f.kind(), err)
		}
		if len(own) == 0 {
			return reply(true, say("You have no bookings on %s for %s.", f.facility.Name, application.FormatDate(day)))
		}
		f.day = day
		f.own = own
		f.state = deleteSelectBooking
		return reply(false, f.menu())

	case deleteSelectBooking:
		value := strings.TrimSpace(input)
		for _, event := range f.own {
			if event.ID != value {
				continue
			}
			window := application.FormatWindow(event.Start, event.End)
			if err := f.env.services.Bookings.DeleteOwn(ctx, f.userID, event); err != nil {
				if errors.Is(err, application.ErrStaleReference) {
					return reply(true, say("The booking on %s at %s no longer exists.", f.facility.Name, window))
				}
				return f.env.fail(ctx, f.kind(), err)
			}
			return reply(true, say("Deleted your booking for %s on %s.", f.facility.Name, window))
		}
		return reply(false, f.menu())
	}
	return f.env.fail(ctx, f.kind(), errors.New("delete flow in unknown state"))
}

func (f *deleteFlow) menu() application.Message {
	options := make([]application.Option, 0, len(f.own))
	for _, event := range f.own {
		options = append(options, application.Option{
			Label: fmt.Sprintf("%s [%s-%s]", event.Summary, application.FormatClock(event.Start), application.FormatClock(event.End)),
			Value: event.ID,
		})
	}
	return choice(fmt.Sprintf("Select the booking on %s to delete", application.FormatDate(f.day)), options)
}

// viewFlow lists every facility's confirmed bookings for one day.
type viewFlow struct {
	env    *env
	userID string
}

func newViewFlow(e *env, userID string) *viewFlow {
	return &viewFlow{env: e, userID: userID}
}

func (f *viewFlow) kind() string { return "view" }

func (f *viewFlow) begin(ctx context.Context) step {
	if _, err := f.env.services.Registry.RequireUser(f.userID); err != nil {
		return f.env.fail(ctx, f.kind(), err)
	}
	return reply(false, say("Please enter the date for viewing"))
}

func (f *viewFlow) handle(ctx context.Context, input string) step {
	day, err := application.ParseDate(input, f.env.now())
	if err != nil {
		return reply(false, retry(err, "Please enter the date for viewing"))
	}
	schedule, err := f.env.services.Bookings.DaySchedule(ctx, day)
	if err != nil {
		return f.env.fail(ctx, f.kind(), err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Bookings for %s:\n", application.FormatDate(day))
	for _, entry := range schedule {
		fmt.Fprintf(&b, "\n%s:\n", entry.Facility.Name)
		if len(entry.Events) == 0 {
			b.WriteString("None\n")
		}
		for _, event := range entry.Events {
			fmt.Fprintf(&b, "%s [%s-%s]\n", event.Summary, application.FormatClock(event.Start), application.FormatClock(event.End))
		}
	}
	return reply(true, application.Text(b.String()))
}
