package testfixtures

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/facility-booking/internal/application"
)

// Calendar is an in-memory application.Calendar. Setting one of the Err
// fields makes the matching call fail.
type Calendar struct {
	mu        sync.Mutex
	events    []application.Event
	next      int
	inserts   int
	ListErr   error
	InsertErr error
	DeleteErr error
}

// NewCalendar returns an empty calendar.
func NewCalendar() *Calendar {
	return &Calendar{}
}

// ListEvents returns events intersecting [start, end) in insertion order.
func (c *Calendar) ListEvents(_ context.Context, facilityIndex int, start, end time.Time) ([]application.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	var out []application.Event
	for _, event := range c.events {
		if event.FacilityIndex == facilityIndex && event.Start.Before(end) && start.Before(event.End) {
			out = append(out, event)
		}
	}
	return out, nil
}

// InsertEvent stores a new event and returns its id.
func (c *Calendar) InsertEvent(_ context.Context, facilityIndex int, summary string, start, end time.Time) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.InsertErr != nil {
		return "", c.InsertErr
	}
	c.inserts++
	return c.addLocked(application.Event{FacilityIndex: facilityIndex, Summary: summary, Start: start, End: end}), nil
}

// DeleteEvent removes an event, reporting application.ErrNotFound when absent.
func (c *Calendar) DeleteEvent(_ context.Context, facilityIndex int, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.DeleteErr != nil {
		return c.DeleteErr
	}
	for i, event := range c.events {
		if event.ID == eventID && event.FacilityIndex == facilityIndex {
			c.events = append(c.events[:i], c.events[i+1:]...)
			return nil
		}
	}
	return application.ErrNotFound
}

// Add seeds an event directly, bypassing InsertErr. An empty id is filled in.
func (c *Calendar) Add(event application.Event) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(event)
}

func (c *Calendar) addLocked(event application.Event) string {
	if event.ID == "" {
		c.next++
		event.ID = fmt.Sprintf("evt-%d", c.next)
	}
	c.events = append(c.events, event)
	return event.ID
}

// Events returns the facility's events ordered by start.
func (c *Calendar) Events(facilityIndex int) []application.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []application.Event
	for _, event := range c.events {
		if event.FacilityIndex == facilityIndex {
			out = append(out, event)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Inserts counts successful InsertEvent calls.
func (c *Calendar) Inserts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inserts
}
