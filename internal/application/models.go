package application

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// OrganizationZone is the fixed offset every booking instant is expressed in.
var OrganizationZone = time.FixedZone("UTC+8", 8*60*60)

// User is a registered member.
type User struct {
	ID          string
	DisplayName string
	Unit        string
	IsAdmin     bool
	CreatedAt   time.Time
}

// Summary is the label written to confirmed bookings.
func (u User) Summary() string {
	return BookingSummary(u.DisplayName, u.Unit)
}

// RegistrationRequest is a pending self-registration awaiting admin review.
type RegistrationRequest struct {
	UserID      string
	Key         AuthKey
	DisplayName string
	Unit        string
	CreatedAt   time.Time
}

// RegistrationOutcome reports how a registration attempt resolved.
type RegistrationOutcome int

const (
	// OutcomeRegistered means the user was created immediately.
	OutcomeRegistered RegistrationOutcome = iota + 1
	// OutcomePending means an admin must approve the request.
	OutcomePending
)

func (o RegistrationOutcome) String() string {
	switch o {
	case OutcomeRegistered:
		return "registered"
	case OutcomePending:
		return "pending"
	default:
		return "unknown"
	}
}

// RegisterParams carries the inputs collected by the registration flow.
type RegisterParams struct {
	UserID      string
	Key         AuthKey
	DisplayName string
	Unit        string
}

// BookingRequest is a submitted reservation awaiting an admin decision.
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

// Summary is the label the booking will carry once confirmed.
func (r BookingRequest) Summary() string {
	return BookingSummary(r.DisplayName, r.Unit)
}

// Event is a confirmed booking held by the calendar.
type Event struct {
	ID            string
	FacilityIndex int
	Summary       string
	Start         time.Time
	End           time.Time
}

// Message is an outbound chat message. Options turn it into a choice prompt;
// the chosen option's Value comes back as the next inbound text.
type Message struct {
	Text    string
	Options []Option
}

// Option is one selectable answer of a choice prompt.
type Option struct {
	Label string
	Value string
}

// Text builds a plain message.
func Text(text string) Message {
	return Message{Text: text}
}

// BookingSummary joins a display name and unit the way confirmed bookings are
// labelled, collapsing whitespace and normalizing to NFC so that equality is
// stable across inputs.
func BookingSummary(displayName, unit string) string {
	return normalizeLabel(displayName + " " + unit)
}

func normalizeLabel(value string) string {
	return norm.NFC.String(strings.Join(strings.Fields(value), " "))
}
