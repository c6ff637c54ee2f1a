package application

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	t.Parallel()

	now := reference() // Tuesday 20/10/2026 08:00 UTC+8
	day := func(year int, month time.Month, d int) time.Time {
		return time.Date(year, month, d, 0, 0, 0, 0, OrganizationZone)
	}

	cases := []struct {
		input string
		want  time.Time
	}{
		{"20/10/2026", day(2026, time.October, 20)},
		{"1/11/2026", day(2026, time.November, 1)},
		{"25/12/26", day(2026, time.December, 25)},
		{"2026-10-21", day(2026, time.October, 21)},
		{"21-10-2026", day(2026, time.October, 21)},
		{"3 Nov 2026", day(2026, time.November, 3)},
		{"today", day(2026, time.October, 20)},
		{"Tomorrow", day(2026, time.October, 21)},
		{"friday", day(2026, time.October, 23)},
		{"tue", day(2026, time.October, 27)},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.input, now)
		if err != nil {
			t.Fatalf("ParseDate(%q) failed: %v", tc.input, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}

	for _, input := range []string{"", "31/02/2026", "next week", "19/10/2026"} {
		_, err := ParseDate(input, now)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("ParseDate(%q) expected ValidationError, got %v", input, err)
		}
	}
}

func TestParseDateUsesOrganizationZone(t *testing.T) {
	t.Parallel()

	// 17:00 UTC on the 19th is already the 20th in UTC+8.
	now := time.Date(2026, time.October, 19, 17, 0, 0, 0, time.UTC)
	if _, err := ParseDate("19/10/2026", now); err == nil {
		t.Fatalf("expected the 19th to be in the past in UTC+8")
	}
	if _, err := ParseDate("20/10/2026", now); err != nil {
		t.Fatalf("expected the 20th to be today: %v", err)
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"0000", "0930", "1359", "2359"} {
		if _, err := ParseClock("start", input); err != nil {
			t.Fatalf("ParseClock(%q) failed: %v", input, err)
		}
	}
	for _, input := range []string{"930", "2400", "1260", "09:30", "abcd", ""} {
		_, err := ParseClock("start", input)
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Message("start") == "" {
			t.Fatalf("ParseClock(%q) expected start ValidationError, got %v", input, err)
		}
	}
}

func TestAtClockAndFormatting(t *testing.T) {
	t.Parallel()

	day := reference()
	start := AtClock(day, "0930")
	if start.Hour() != 9 || start.Minute() != 30 || start.Location() != OrganizationZone {
		t.Fatalf("unexpected instant %v", start)
	}
	end := AtClock(day, "1045")
	if got := FormatWindow(start, end); got != "20/10/2026 0930-1045" {
		t.Fatalf("FormatWindow = %q", got)
	}
	if got := FormatClock(start.UTC()); got != "0930" {
		t.Fatalf("FormatClock should render in the organization zone, got %q", got)
	}
}
