// Package testfixtures provides deterministic collaborators for tests of the
// booking core and its transports: a controllable clock, sequential ids, an
// in-memory calendar, a recording messenger and in-memory stores.
package testfixtures

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/facility-booking/internal/application"
)

// referenceTime is a Tuesday morning in the organization zone.
var referenceTime = time.Date(2026, time.October, 20, 8, 0, 0, 0, application.OrganizationZone)

// ReferenceTime returns the canonical baseline instant used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// At returns hour:minute on day's calendar date in the organization zone.
func At(day time.Time, hour, minute int) time.Time {
	d := application.StartOfDay(day)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, application.OrganizationZone)
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewClock starts a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = referenceTime
	}
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// NowFunc exposes Now for injection. A nil clock yields time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

func (c *Clock) Set(t time.Time) {
	c.move(func(time.Time) time.Time { return t })
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	return c.move(func(now time.Time) time.Time { return now.Add(d) })
}

// NextDay keeps the wall time and moves to the following calendar day.
func (c *Clock) NextDay() time.Time {
	return c.move(func(now time.Time) time.Time { return now.AddDate(0, 0, 1) })
}

func (c *Clock) move(step func(time.Time) time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = step(c.now)
	return c.now
}

// IDGenerator yields "<prefix>-<n>" identifiers in sequence.
type IDGenerator struct {
	prefix  string
	counter atomic.Uint64

	mu     sync.Mutex
	issued []string
}

// NewIDGenerator defaults the prefix to "id".
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

func (g *IDGenerator) Next() string {
	id := fmt.Sprintf("%s-%d", g.prefix, g.counter.Add(1))
	g.mu.Lock()
	g.issued = append(g.issued, id)
	g.mu.Unlock()
	return id
}

// NextFunc exposes Next for injection. A nil generator yields empty ids.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Issued lists every identifier handed out so far.
func (g *IDGenerator) Issued() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.issued...)
}
