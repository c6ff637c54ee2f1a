package testfixtures

import (
	"context"
	"errors"
	"sync"

	"github.com/example/facility-booking/internal/application"
)

// ErrUndeliverable is returned for recipients marked with Fail.
var ErrUndeliverable = errors.New("testfixtures: recipient unreachable")

// Delivery is one recorded message.
type Delivery struct {
	UserID  string
	Message application.Message
}

// Messenger records every message it is asked to send.
type Messenger struct {
	mu         sync.Mutex
	deliveries []Delivery
	failing    map[string]bool
}

// NewMessenger returns an empty recorder.
func NewMessenger() *Messenger {
	return &Messenger{failing: make(map[string]bool)}
}

// Send records msg unless userID was marked with Fail.
func (m *Messenger) Send(_ context.Context, userID string, msg application.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing[userID] {
		return ErrUndeliverable
	}
	m.deliveries = append(m.deliveries, Delivery{UserID: userID, Message: msg})
	return nil
}

// Fail makes every later Send to userID fail.
func (m *Messenger) Fail(userID string) {
	m.mu.Lock()
	m.failing[userID] = true
	m.mu.Unlock()
}

// Texts returns the text of each message delivered to userID.
func (m *Messenger) Texts(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, d := range m.deliveries {
		if d.UserID == userID {
			out = append(out, d.Message.Text)
		}
	}
	return out
}

// Deliveries returns every recorded message.
func (m *Messenger) Deliveries() []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Delivery(nil), m.deliveries...)
}

// Reset forgets recorded messages.
func (m *Messenger) Reset() {
	m.mu.Lock()
	m.deliveries = nil
	m.mu.Unlock()
}
