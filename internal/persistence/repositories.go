package persistence

import (
	"context"
	"time"
)

// RegistryStore persists users, registration requests and the allow-list.
type RegistryStore interface {
	LoadRegistry(ctx context.Context) (RegistrySnapshot, error)
	// SaveUser upserts the user and drops any registration request with the
	// same id in the same transaction.
	SaveUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id string) error
	SaveRegistrationRequest(ctx context.Context, request RegistrationRequest) error
	DeleteRegistrationRequest(ctx context.Context, userID string) error
	AddAllowListEntry(ctx context.Context, entry AllowListEntry) error
	// ApproveRegistration atomically removes the request, records the digest
	// and creates the user.
	ApproveRegistration(ctx context.Context, user User, entry AllowListEntry) error
}

// QueueStore persists pending booking requests.
type QueueStore interface {
	// LoadPendingBookings returns requests ordered by creation time.
	LoadPendingBookings(ctx context.Context) ([]BookingRequest, error)
	InsertPendingBooking(ctx context.Context, request BookingRequest) error
	DeletePendingBooking(ctx context.Context, id string) error
}

// EventFilter narrows event queries to one facility and a window.
type EventFilter struct {
	FacilityIndex int
	StartsBefore  time.Time
	EndsAfter     time.Time
}

// EventStore holds confirmed bookings.
type EventStore interface {
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	InsertEvent(ctx context.Context, event Event) error
	DeleteEvent(ctx context.Context, facilityIndex int, id string) error
}
