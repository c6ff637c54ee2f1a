package persistence

import "time"

// User represents a registered member.
type User struct {
	ID          string
	DisplayName string
	Unit        string
	IsAdmin     bool
	CreatedAt   time.Time
}

// RegistrationRequest is a pending self-registration awaiting an admin
// decision. Keyed by the requester's user id.
type RegistrationRequest struct {
	UserID      string
	Identity    string
	Numeric     string
	DisplayName string
	Unit        string
	CreatedAt   time.Time
}

// AllowListEntry stores the digest of a pre-approved identity key.
type AllowListEntry struct {
	Digest    string
	CreatedAt time.Time
}

// BookingRequest is a pending reservation waiting in the approval queue.
type BookingRequest struct {
	ID            string
	RequesterID   string
	DisplayName   string
	Unit          string
	FacilityIndex int
	Start         time.Time
	End           time.Time
	CreatedAt     time.Time
}

// Event is a confirmed booking held by the calendar store.
type Event struct {
	ID            string
	FacilityIndex int
	Summary       string
	Start         time.Time
	End           time.Time
	CreatedAt     time.Time
}

// RegistrySnapshot is the complete identity state loaded at startup.
type RegistrySnapshot struct {
	Users     []User
	Requests  []RegistrationRequest
	AllowList []AllowListEntry
}
