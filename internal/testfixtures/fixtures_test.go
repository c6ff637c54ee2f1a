package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
	if clock.Now().Weekday() != time.Tuesday {
		t.Fatalf("expected reference day to be a Tuesday, got %v", clock.Now().Weekday())
	}
}

func TestClockAdvanceSetAndNextDay(t *testing.T) {
	start := At(ReferenceTime(), 9, 30)
	clock := NewClock(start)

	if updated := clock.Advance(90 * time.Minute); !updated.Equal(At(start, 11, 0)) {
		t.Fatalf("advance returned %v", updated)
	}
	if next := clock.NextDay(); !next.Equal(At(start.AddDate(0, 0, 1), 11, 0)) {
		t.Fatalf("next day returned %v", next)
	}

	nowFn := clock.NowFunc()
	clock.Set(start)
	if got := nowFn(); !got.Equal(start) {
		t.Fatalf("expected NowFunc to follow Set, got %v", got)
	}
}

func TestIDGenerator(t *testing.T) {
	gen := NewIDGenerator("")
	next := gen.NextFunc()
	if first := next(); first != "id-1" {
		t.Fatalf("expected id-1, got %q", first)
	}
	if second := gen.Next(); second != "id-2" {
		t.Fatalf("expected id-2, got %q", second)
	}
	if issued := gen.Issued(); len(issued) != 2 || issued[0] != "id-1" {
		t.Fatalf("unexpected issued ids: %v", issued)
	}

	var missing *IDGenerator
	if id := missing.NextFunc()(); id != "" {
		t.Fatalf("expected empty id from nil generator, got %q", id)
	}
}
