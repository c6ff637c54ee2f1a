package application

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestBookingsSubmit(t *testing.T) {
	t.Parallel()

	t.Run("queues a free window and tells admins", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		day := reference()
		h.member(t, "admin", "MAJ Ong", "HQ", true)
		h.member(t, "tan", "LTA Tan", "40", false)

		request := h.submit(t, "tan", 1, at(day, 9, 0), at(day, 10, 0))
		if request.RequesterID != "tan" || request.Summary() != "LTA Tan 40" {
			t.Fatalf("unexpected request: %+v", request)
		}
		if !request.CreatedAt.Equal(reference()) {
			t.Fatalf("expected creation time from the clock, got %v", request.CreatedAt)
		}
		if h.services.Queue.Len() != 1 || len(h.queue.stored) != 1 {
			t.Fatalf("expected request queued and persisted")
		}
		msgs := h.messenger.to("admin")
		if len(msgs) != 1 || !strings.Contains(msgs[0], "/approvebooking") || !strings.Contains(msgs[0], "L1 Mercury Planning Room on 20/10/2026 0900-1000") {
			t.Fatalf("unexpected admin notice: %v", msgs)
		}
		if h.calendar.inserts != 0 {
			t.Fatalf("submission must not write the calendar")
		}
	})

	t.Run("occupied window is refused", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		day := reference()
		h.member(t, "tan", "LTA Tan", "40", false)
		h.calendar.add(Event{FacilityIndex: 0, Summary: "A Team", Start: at(day, 9, 0), End: at(day, 10, 0)})

		_, err := h.services.Bookings.Submit(context.Background(), SubmitParams{
			ID: h.nextID(), UserID: "tan", FacilityIndex: 0, Start: at(day, 9, 30), End: at(day, 10, 30),
		})
		var occupied *OccupiedError
		if !errors.As(err, &occupied) || occupied.Occupant != "A Team" || occupied.Pending {
			t.Fatalf("expected OccupiedError(A Team), got %v", err)
		}
		if h.services.Queue.Len() != 0 {
			t.Fatalf("refused submission must not be queued")
		}
	})

	t.Run("competing pending request is mentioned", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		day := reference()
		h.member(t, "admin", "MAJ Ong", "HQ", true)
		h.member(t, "tan", "LTA Tan", "40", false)
		h.member(t, "lim", "CPT Lim", "41", false)
		h.submit(t, "tan", 0, at(day, 9, 0), at(day, 10, 0))
		h.submit(t, "lim", 0, at(day, 9, 30), at(day, 10, 30))

		msgs := h.messenger.to("admin")
		if len(msgs) != 2 || !strings.Contains(msgs[1], "1 other pending request(s)") {
			t.Fatalf("expected competing count in second notice, got %v", msgs)
		}
	})

	t.Run("pending request blocks when configured", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, withBlockOnPending())
		day := reference()
		h.member(t, "tan", "LTA Tan", "40", false)
		h.member(t, "lim", "CPT Lim", "41", false)
		h.submit(t, "tan", 0, at(day, 9, 0), at(day, 10, 0))

		_, err := h.services.Bookings.Submit(context.Background(), SubmitParams{
			ID: h.nextID(), UserID: "lim", FacilityIndex: 0, Start: at(day, 9, 30), End: at(day, 10, 30),
		})
		var occupied *OccupiedError
		if !errors.As(err, &occupied) || !occupied.Pending {
			t.Fatalf("expected pending OccupiedError, got %v", err)
		}
	})

	t.Run("retried submission is not queued twice", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		day := reference()
		h.member(t, "admin", "MAJ Ong", "HQ", true)
		h.member(t, "tan", "LTA Tan", "40", false)
		params := SubmitParams{ID: "attempt-1", UserID: "tan", FacilityIndex: 0, Start: at(day, 9, 0), End: at(day, 10, 0)}

		first, err := h.services.Bookings.Submit(context.Background(), params)
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		second, err := h.services.Bookings.Submit(context.Background(), params)
		if err != nil {
			t.Fatalf("retried Submit failed: %v", err)
		}
		if first.ID != second.ID || h.services.Queue.Len() != 1 {
			t.Fatalf("expected a single queued request, got %d", h.services.Queue.Len())
		}
		if msgs := h.messenger.to("admin"); len(msgs) != 1 {
			t.Fatalf("expected admins notified once, got %v", msgs)
		}
	})

	t.Run("unregistered user is refused", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		day := reference()
		_, err := h.services.Bookings.Submit(context.Background(), SubmitParams{
			ID: "x", UserID: "ghost", FacilityIndex: 0, Start: at(day, 9, 0), End: at(day, 10, 0),
		})
		if !errors.Is(err, ErrNotRegistered) {
			t.Fatalf("expected ErrNotRegistered, got %v", err)
		}
	})
}

func TestBookingsOwnAndDelete(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	day := reference()
	h.member(t, "tan", "LTA Tan", "40", false)
	h.member(t, "lim", "CPT Lim", "41", false)
	h.calendar.add(Event{ID: "mine", FacilityIndex: 0, Summary: "LTA  Tan 40", Start: at(day, 9, 0), End: at(day, 10, 0)})
	h.calendar.add(Event{ID: "theirs", FacilityIndex: 0, Summary: "CPT Lim 41", Start: at(day, 11, 0), End: at(day, 12, 0)})

	own, err := h.services.Bookings.OwnBookings(ctx, "tan", 0, day)
	if err != nil {
		t.Fatalf("OwnBookings failed: %v", err)
	}
	if len(own) != 1 || own[0].ID != "mine" {
		t.Fatalf("expected only the caller's booking, got %+v", own)
	}

	theirs := h.calendar.onFacility(0)[1]
	if err := h.services.Bookings.DeleteOwn(ctx, "tan", theirs); !errors.Is(err, ErrStaleReference) {
		t.Fatalf("expected ErrStaleReference deleting another user's booking, got %v", err)
	}
	if err := h.services.Bookings.DeleteOwn(ctx, "tan", own[0]); err != nil {
		t.Fatalf("DeleteOwn failed: %v", err)
	}
	if events := h.calendar.onFacility(0); len(events) != 1 || events[0].ID != "theirs" {
		t.Fatalf("expected only the other booking left, got %+v", events)
	}
	if err := h.services.Bookings.DeleteOwn(ctx, "tan", own[0]); !errors.Is(err, ErrStaleReference) {
		t.Fatalf("expected ErrStaleReference on second delete, got %v", err)
	}

	h.calendar.add(Event{ID: "again", FacilityIndex: 0, Summary: "LTA Tan 40", Start: at(day, 14, 0), End: at(day, 15, 0)})
	h.calendar.deleteErr = errors.New("calendar unavailable")
	var pErr *ProviderError
	if err := h.services.Bookings.DeleteOwn(ctx, "tan", Event{ID: "again", FacilityIndex: 0, Start: at(day, 14, 0)}); !errors.As(err, &pErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestBookingsDaySchedule(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	day := reference()
	h.calendar.add(Event{FacilityIndex: 4, Summary: "Convoy", Start: at(day, 7, 0), End: at(day, 8, 0)})

	schedule, err := h.services.Bookings.DaySchedule(context.Background(), day)
	if err != nil {
		t.Fatalf("DaySchedule failed: %v", err)
	}
	if len(schedule) != len(DefaultFacilities()) {
		t.Fatalf("expected one entry per facility, got %d", len(schedule))
	}
	if len(schedule[4].Events) != 1 || len(schedule[0].Events) != 0 {
		t.Fatalf("unexpected schedule: %+v", schedule)
	}
}

func TestBookingsAudit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	day := reference()
	h.calendar.add(Event{ID: "a", FacilityIndex: 2, Summary: "A", Start: at(day, 9, 0), End: at(day, 11, 0)})
	h.calendar.add(Event{ID: "b", FacilityIndex: 2, Summary: "B", Start: at(day, 10, 0), End: at(day, 12, 0)})
	h.calendar.add(Event{ID: "c", FacilityIndex: 2, Summary: "C", Start: at(day, 12, 0), End: at(day, 13, 0)})
	next := day.AddDate(0, 0, 3)
	h.calendar.add(Event{ID: "d", FacilityIndex: 3, Summary: "D", Start: at(next, 9, 0), End: at(next, 10, 0)})
	h.calendar.add(Event{ID: "e", FacilityIndex: 3, Summary: "E", Start: at(next, 9, 30), End: at(next, 10, 0)})

	conflicts, err := h.services.Bookings.Audit(context.Background(), day, 1)
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].WithSlotID != "a" || conflicts[0].Label != "B" {
		t.Fatalf("expected one conflict on day one, got %+v", conflicts)
	}

	conflicts, err = h.services.Bookings.Audit(context.Background(), day, 7)
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	if len(conflicts) != 2 {
		t.Fatalf("expected two conflicts over the week, got %+v", conflicts)
	}
}
