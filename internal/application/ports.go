package application

import (
	"context"
	"time"
)

// Calendar is the confirmed-bookings service. ListEvents returns every event
// on the facility intersecting [start, end) in provider order; DeleteEvent
// returns ErrNotFound when the event is gone.
type Calendar interface {
	ListEvents(ctx context.Context, facilityIndex int, start, end time.Time) ([]Event, error)
	InsertEvent(ctx context.Context, facilityIndex int, summary string, start, end time.Time) (string, error)
	DeleteEvent(ctx context.Context, facilityIndex int, eventID string) error
}

// Messenger delivers chat messages to a user.
type Messenger interface {
	Send(ctx context.Context, userID string, msg Message) error
}

// RegistrySnapshot is the identity state restored at startup.
type RegistrySnapshot struct {
	Users     []User
	Requests  []RegistrationRequest
	AllowList []string
}

// RegistryStore persists identity state. Implementations report missing rows
// with ErrNotFound and key collisions with ErrDuplicateUser.
type RegistryStore interface {
	LoadRegistry(ctx context.Context) (RegistrySnapshot, error)
	SaveUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id string) error
	SaveRegistrationRequest(ctx context.Context, request RegistrationRequest) error
	DeleteRegistrationRequest(ctx context.Context, userID string) error
	AddAllowListDigest(ctx context.Context, digest string) error
	ApproveRegistration(ctx context.Context, user User, digest string) error
}

// QueueStore persists pending booking requests in submission order.
type QueueStore interface {
	LoadPendingBookings(ctx context.Context) ([]BookingRequest, error)
	InsertPendingBooking(ctx context.Context, request BookingRequest) error
	DeletePendingBooking(ctx context.Context, id string) error
}
