package application

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3])[0-5][0-9]$`)

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/06",
	"2/1/06",
	"2006-01-02",
	"02-01-2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2 2006",
}

// StartOfDay returns midnight of t's calendar day in the organization zone.
func StartOfDay(t time.Time) time.Time {
	local := t.In(OrganizationZone)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, OrganizationZone)
}

// ParseDate interprets free-text input as a calendar day relative to now and
// rejects days before today.
func ParseDate(input string, now time.Time) (time.Time, error) {
	today := StartOfDay(now)
	value := strings.TrimSpace(input)
	if value == "" {
		return time.Time{}, newValidationError("date", "please enter a date, e.g. 25/12/2026")
	}

	day, ok := parseRelativeDay(strings.ToLower(value), today)
	if !ok {
		for _, layout := range dateLayouts {
			parsed, err := time.ParseInLocation(layout, value, OrganizationZone)
			if err == nil {
				day, ok = StartOfDay(parsed), true
				break
			}
		}
	}
	if !ok {
		return time.Time{}, newValidationError("date", fmt.Sprintf("could not read %q as a date, try DD/MM/YYYY", value))
	}
	if day.Before(today) {
		return time.Time{}, newValidationError("date", fmt.Sprintf("%s is in the past", FormatDate(day)))
	}
	return day, nil
}

func parseRelativeDay(value string, today time.Time) (time.Time, bool) {
	switch value {
	case "today":
		return today, true
	case "tomorrow", "tmr":
		return today.AddDate(0, 0, 1), true
	}
	for offset := 0; offset < 7; offset++ {
		weekday := time.Weekday(offset)
		name := strings.ToLower(weekday.String())
		if value != name && value != name[:3] {
			continue
		}
		diff := (int(weekday) - int(today.Weekday()) + 7) % 7
		if diff == 0 {
			diff = 7
		}
		return today.AddDate(0, 0, diff), true
	}
	return time.Time{}, false
}

// ParseClock validates a four digit 24-hour time such as 0930.
func ParseClock(field, input string) (string, error) {
	value := strings.TrimSpace(input)
	if !clockPattern.MatchString(value) {
		return "", newValidationError(field, "enter a 24-hour time as four digits, e.g. 0930")
	}
	return value, nil
}

// AtClock combines a day with a validated HHMM clock value.
func AtClock(day time.Time, clock string) time.Time {
	if len(clock) != 4 {
		return StartOfDay(day)
	}
	hour, _ := strconv.Atoi(clock[:2])
	minute, _ := strconv.Atoi(clock[2:])
	start := StartOfDay(day)
	return time.Date(start.Year(), start.Month(), start.Day(), hour, minute, 0, 0, OrganizationZone)
}

// FormatDate renders a day as DD/MM/YYYY in the organization zone.
func FormatDate(t time.Time) string {
	return t.In(OrganizationZone).Format("02/01/2006")
}

// FormatClock renders an instant as HHMM in the organization zone.
func FormatClock(t time.Time) string {
	return t.In(OrganizationZone).Format("1504")
}

// FormatWindow renders "DD/MM/YYYY HHMM-HHMM".
func FormatWindow(start, end time.Time) string {
	return fmt.Sprintf("%s %s-%s", FormatDate(start), FormatClock(start), FormatClock(end))
}
