package testfixtures

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/example/facility-booking/internal/application"
)

// RegistryStore keeps identity state in maps.
type RegistryStore struct {
	mu        sync.Mutex
	users     map[string]application.User
	requests  map[string]application.RegistrationRequest
	allowList map[string]struct{}
	// Err, when set, fails every call.
	Err error
}

// NewRegistryStore returns an empty store.
func NewRegistryStore() *RegistryStore {
	return &RegistryStore{
		users:     make(map[string]application.User),
		requests:  make(map[string]application.RegistrationRequest),
		allowList: make(map[string]struct{}),
	}
}

func (s *RegistryStore) LoadRegistry(context.Context) (application.RegistrySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return application.RegistrySnapshot{}, s.Err
	}
	var snapshot application.RegistrySnapshot
	for _, user := range s.users {
		snapshot.Users = append(snapshot.Users, user)
	}
	for _, request := range s.requests {
		snapshot.Requests = append(snapshot.Requests, request)
	}
	for digest := range s.allowList {
		snapshot.AllowList = append(snapshot.AllowList, digest)
	}
	sort.Slice(snapshot.Users, func(i, j int) bool { return snapshot.Users[i].ID < snapshot.Users[j].ID })
	sort.Strings(snapshot.AllowList)
	return snapshot, nil
}

func (s *RegistryStore) SaveUser(_ context.Context, user application.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.users[user.ID] = user
	return nil
}

func (s *RegistryStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.users[id]; !ok {
		return application.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *RegistryStore) SaveRegistrationRequest(_ context.Context, request application.RegistrationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.requests[request.UserID] = request
	return nil
}

func (s *RegistryStore) DeleteRegistrationRequest(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.requests[userID]; !ok {
		return application.ErrNotFound
	}
	delete(s.requests, userID)
	return nil
}

func (s *RegistryStore) AddAllowListDigest(_ context.Context, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.allowList[digest] = struct{}{}
	return nil
}

// ApproveRegistration applies the three writes together.
func (s *RegistryStore) ApproveRegistration(_ context.Context, user application.User, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.requests[user.ID]; !ok {
		return application.ErrNotFound
	}
	if _, ok := s.users[user.ID]; ok {
		return application.ErrDuplicateUser
	}
	delete(s.requests, user.ID)
	s.allowList[digest] = struct{}{}
	s.users[user.ID] = user
	return nil
}

// Users returns the stored users ordered by id.
func (s *RegistryStore) Users() []application.User {
	snapshot, _ := s.LoadRegistry(context.Background())
	return snapshot.Users
}

// ErrDuplicateBooking is returned when a booking id is inserted twice.
var ErrDuplicateBooking = errors.New("testfixtures: duplicate booking id")

// QueueStore keeps pending bookings in submission order.
type QueueStore struct {
	mu      sync.Mutex
	pending []application.BookingRequest
	// Err, when set, fails inserts and deletes.
	Err error
}

// NewQueueStore returns an empty store.
func NewQueueStore() *QueueStore {
	return &QueueStore{}
}

func (s *QueueStore) LoadPendingBookings(context.Context) ([]application.BookingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]application.BookingRequest(nil), s.pending...), nil
}

func (s *QueueStore) InsertPendingBooking(_ context.Context, request application.BookingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, existing := range s.pending {
		if existing.ID == request.ID {
			return ErrDuplicateBooking
		}
	}
	s.pending = append(s.pending, request)
	return nil
}

func (s *QueueStore) DeletePendingBooking(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for i, request := range s.pending {
		if request.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
	}
	return application.ErrNotFound
}

// Len reports how many requests are stored.
func (s *QueueStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
