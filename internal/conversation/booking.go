package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/example/facility-booking/internal/application"
)

type bookingState int

const (
	bookingSelectFacility bookingState = iota
	bookingSelectDate
	bookingSelectStart
	bookingSelectEnd
)

const (
	facilityPrompt = "Please select the facility you would like to book"
	startPrompt    = "Please enter your booking start time in 24 hour HHMM format."
	endPrompt      = "Please enter your booking end time in 24 hour HHMM format."
)

// bookingFlow collects facility, date, start and end and submits the window.
type bookingFlow struct {
	env    *env
	userID string
	state  bookingState

	// requestID is minted once so a retried submission is recognized.
	requestID  string
	facility   application.Facility
	day        time.Time
	startClock string
}

func newBookingFlow(e *env, userID string) *bookingFlow {
	return &bookingFlow{env: e, userID: userID}
}

func (f *bookingFlow) kind() string { return "book" }

func (f *bookingFlow) begin(ctx context.Context) step {
	if _, err := f.env.services.Registry.RequireUser(f.userID); err != nil {
		return f.env.fail(ctx, f.kind(), err)
	}
	f.requestID = f.env.newID()
	f.state = bookingSelectFacility
	return reply(false, choice(facilityPrompt, f.env.services.Facilities.Options()))
}

func (f *bookingFlow) handle(ctx context.Context, input string) step {
	switch f.state {
	case bookingSelectFacility:
		facility, err := f.env.services.Facilities.Parse(input)
		if err != nil {
			return reply(false, choice(facilityPrompt, f.env.services.Facilities.Options()))
		}
		f.facility = facility
		f.state = bookingSelectDate
		return reply(false, say("Please enter the date of booking for %s (e.g. 25/12/2026, tomorrow or friday).", facility.Name))

	case bookingSelectDate:
		day, err := application.ParseDate(input, f.env.now())
		if err != nil {
			return reply(false, retry(err, "Please enter a valid booking date."))
		}
		events, err := f.env.services.Bookings.DayListing(ctx, f.facility.Index, day)
		if err != nil {
			return f.env.fail(ctx, f.kind(), err)
		}
		f.day = day
		f.state = bookingSelectStart
		return reply(false, application.Text(dayListing(day, events)+startPrompt))

	case bookingSelectStart:
		clock, err := application.ParseClock("start", input)
		if err != nil {
			return reply(false, retry(err, startPrompt))
		}
		f.startClock = clock
		f.state = bookingSelectEnd
		return reply(false, say(endPrompt))

	case bookingSelectEnd:
		clock, err := application.ParseClock("end", input)
		if err != nil {
			return reply(false, retry(err, endPrompt))
		}
		// Fixed-width HHMM strings order the same way as the times they name.
		if clock <= f.startClock {
			return reply(false, say("End time must be after the start time %s. %s", f.startClock, endPrompt))
		}
		return f.submit(ctx, clock)
	}
	return f.env.fail(ctx, f.kind(), errors.New("booking flow in unknown state"))
}

func (f *bookingFlow) submit(ctx context.Context, endClock string) step {
	start := application.AtClock(f.day, f.startClock)
	end := application.AtClock(f.day, endClock)
	window := application.FormatWindow(start, end)

	_, err := f.env.services.Bookings.Submit(ctx, application.SubmitParams{
		ID:            f.requestID,
		UserID:        f.userID,
		FacilityIndex: f.facility.Index,
		Start:         start,
		End:           end,
	})

	var occupied *application.OccupiedError
	var vErr *application.ValidationError
	switch {
	case err == nil:
		return reply(true, say("Booking request submitted for %s on %s. The %s will review it and you will be notified of the outcome.",
			f.facility.Name, window, f.facility.ApproverRole))
	case errors.As(err, &occupied):
		f.startClock = ""
		f.state = bookingSelectStart
		if occupied.Pending {
			return reply(false, say("Cannot book %s on %s. The slot was already requested by %s and is awaiting approval. Use /cancel to cancel or enter a new booking start time in 24 hour HHMM format.",
				f.facility.Name, window, occupied.Occupant))
		}
		return reply(false, say("Cannot book %s on %s. Booking already made by %s. Use /cancel to cancel or enter a new booking start time in 24 hour HHMM format.",
			f.facility.Name, window, occupied.Occupant))
	case errors.As(err, &vErr):
		f.startClock = ""
		f.state = bookingSelectStart
		return reply(false, retry(err, startPrompt))
	default:
		return f.env.fail(ctx, f.kind(), err)
	}
}
