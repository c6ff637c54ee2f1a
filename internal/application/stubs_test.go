package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var testZone = OrganizationZone

// reference is a Tuesday morning in the organization zone.
func reference() time.Time {
	return time.Date(2026, time.October, 20, 8, 0, 0, 0, testZone)
}

func at(day time.Time, hour, minute int) time.Time {
	d := StartOfDay(day)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, testZone)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type calendarStub struct {
	mu        sync.Mutex
	events    []Event
	nextID    int
	listErr   error
	insertErr error
	deleteErr error
	inserts   int
}

func (c *calendarStub) ListEvents(_ context.Context, facilityIndex int, start, end time.Time) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	var out []Event
	for _, event := range c.events {
		if event.FacilityIndex == facilityIndex && event.Start.Before(end) && start.Before(event.End) {
			out = append(out, event)
		}
	}
	return out, nil
}

func (c *calendarStub) InsertEvent(_ context.Context, facilityIndex int, summary string, start, end time.Time) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.insertErr != nil {
		return "", c.insertErr
	}
	c.nextID++
	c.inserts++
	id := fmt.Sprintf("evt-%d", c.nextID)
	c.events = append(c.events, Event{ID: id, FacilityIndex: facilityIndex, Summary: summary, Start: start, End: end})
	return id, nil
}

func (c *calendarStub) DeleteEvent(_ context.Context, facilityIndex int, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}
	for i, event := range c.events {
		if event.ID == eventID && event.FacilityIndex == facilityIndex {
			c.events = append(c.events[:i], c.events[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (c *calendarStub) add(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if event.ID == "" {
		c.nextID++
		event.ID = fmt.Sprintf("evt-%d", c.nextID)
	}
	c.events = append(c.events, event)
}

func (c *calendarStub) onFacility(index int) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, event := range c.events {
		if event.FacilityIndex == index {
			out = append(out, event)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

type sentMessage struct {
	UserID string
	Msg    Message
}

type messengerStub struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]bool
}

func (m *messengerStub) Send(_ context.Context, userID string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[userID] {
		return errors.New("transport unavailable")
	}
	m.sent = append(m.sent, sentMessage{UserID: userID, Msg: msg})
	return nil
}

func (m *messengerStub) to(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		if s.UserID == userID {
			out = append(out, s.Msg.Text)
		}
	}
	return out
}

type registryStoreStub struct {
	mu       sync.Mutex
	snapshot RegistrySnapshot
	failAll  error
	saved    []User
	requests []RegistrationRequest
	digests  []string
	deleted  []string
	approved []string
}

func (s *registryStoreStub) LoadRegistry(context.Context) (RegistrySnapshot, error) {
	if s.failAll != nil {
		return RegistrySnapshot{}, s.failAll
	}
	return s.snapshot, nil
}

func (s *registryStoreStub) SaveUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	s.saved = append(s.saved, user)
	return nil
}

func (s *registryStoreStub) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *registryStoreStub) SaveRegistrationRequest(_ context.Context, request RegistrationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	s.requests = append(s.requests, request)
	return nil
}

func (s *registryStoreStub) DeleteRegistrationRequest(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	s.deleted = append(s.deleted, "request:"+userID)
	return nil
}

func (s *registryStoreStub) AddAllowListDigest(_ context.Context, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	s.digests = append(s.digests, digest)
	return nil
}

func (s *registryStoreStub) ApproveRegistration(_ context.Context, user User, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	s.approved = append(s.approved, user.ID)
	s.digests = append(s.digests, digest)
	return nil
}

type queueStoreStub struct {
	mu        sync.Mutex
	stored    []BookingRequest
	insertErr error
	deleteErr error
}

func (s *queueStoreStub) LoadPendingBookings(context.Context) ([]BookingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]BookingRequest(nil), s.stored...), nil
}

func (s *queueStoreStub) InsertPendingBooking(_ context.Context, request BookingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.stored = append(s.stored, request)
	return nil
}

func (s *queueStoreStub) DeletePendingBooking(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for i, request := range s.stored {
		if request.ID == id {
			s.stored = append(s.stored[:i], s.stored[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type harness struct {
	clock     *fixedClock
	calendar  *calendarStub
	messenger *messengerStub
	regStore  *registryStoreStub
	queue     *queueStoreStub
	services  *Services
	ids       int
}

type harnessOption func(*Options)

func withBlockOnPending() harnessOption {
	return func(o *Options) { o.BlockOnPending = true }
}

func withJanitor(cfg JanitorConfig) harnessOption {
	return func(o *Options) { o.Janitor = cfg }
}

func newHarness(t interface{ Fatalf(string, ...any) }, opts ...harnessOption) *harness {
	h := &harness{
		clock:     &fixedClock{now: reference()},
		calendar:  &calendarStub{},
		messenger: &messengerStub{},
		regStore:  &registryStoreStub{},
		queue:     &queueStoreStub{},
	}
	digester, err := NewKeyDigester([]byte("test-secret"))
	if err != nil {
		t.Fatalf("NewKeyDigester failed: %v", err)
	}
	options := Options{Facilities: DefaultFacilities()}
	for _, opt := range opts {
		opt(&options)
	}
	h.services, err = NewServices(Dependencies{
		RegistryStore: h.regStore,
		QueueStore:    h.queue,
		Calendar:      h.calendar,
		Messenger:     h.messenger,
		Digester:      digester,
		Now:           h.clock.Now,
		Logger:        discardLogger(),
	}, options)
	if err != nil {
		t.Fatalf("NewServices failed: %v", err)
	}
	return h
}

func (h *harness) nextID() string {
	h.ids++
	return fmt.Sprintf("req-%d", h.ids)
}

// member registers a user through the allow-list fast path.
func (h *harness) member(t interface{ Fatalf(string, ...any) }, id, name, unit string, admin bool) User {
	ctx := context.Background()
	key := AuthKey{Identity: fmt.Sprintf("%03dA", len(h.services.Registry.Users())), Numeric: "1234"}
	if err := h.services.Registry.AllowKey(ctx, key); err != nil {
		t.Fatalf("AllowKey failed: %v", err)
	}
	outcome, user, err := h.services.Registry.Register(ctx, RegisterParams{UserID: id, Key: key, DisplayName: name, Unit: unit})
	if err != nil || outcome != OutcomeRegistered {
		t.Fatalf("Register(%s) = %v, %v", id, outcome, err)
	}
	if admin {
		if user, err = h.services.Registry.Bootstrap(ctx, id); err != nil {
			t.Fatalf("Bootstrap failed: %v", err)
		}
	}
	return user
}

func (h *harness) submit(t interface{ Fatalf(string, ...any) }, userID string, facility int, start, end time.Time) BookingRequest {
	request, err := h.services.Bookings.Submit(context.Background(), SubmitParams{
		ID: h.nextID(), UserID: userID, FacilityIndex: facility, Start: start, End: end,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	return request
}
