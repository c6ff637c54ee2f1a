package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/logging"
)

// ErrMissingUser is returned for inbound messages without a sender.
var ErrMissingUser = errors.New("conversation: user id is required")

const helpText = `Available commands:
/register - register to use the booking service
/book - request a facility booking
/delete - delete one of your bookings
/view - view all bookings for a day
/dereg - deregister yourself
/cancel - cancel the current action
/help - show this message

Admin commands:
/approve - review pending registrations
/approve IDENTITY NUMERIC - add an identity to the allow-list
/approvebooking - review pending bookings
/promote - promote a user to admin`

const unknownInput = "Sorry, I did not understand that. Use /help to see available commands."

// Config tunes the dispatcher.
type Config struct {
	// IdleTimeout reclaims sessions that saw no input for this long. Zero
	// keeps idle sessions until their flow finishes.
	IdleTimeout time.Duration
	Now         func() time.Time
	NewID       func() string
	Logger      *slog.Logger
}

type session struct {
	mu       sync.Mutex
	userID   string
	flow     flow
	lastSeen time.Time
	// detached is set once the session left the map; holders must retry
	// with a fresh lookup.
	detached bool
}

// Dispatcher routes inbound messages to per-user sessions. Messages from one
// user are handled one at a time; different users proceed concurrently.
type Dispatcher struct {
	env         *env
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// NewDispatcher builds a dispatcher over the core services.
func NewDispatcher(services *application.Services, cfg Config) *Dispatcher {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		env: &env{
			services: services,
			now:      cfg.Now,
			newID:    cfg.NewID,
			logger:   cfg.Logger,
		},
		idleTimeout: cfg.IdleTimeout,
		sessions:    make(map[string]*session),
	}
}

// Handle processes one inbound message and returns the replies for the
// sender.
func (d *Dispatcher) Handle(ctx context.Context, userID, input string) ([]application.Message, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUser
	}
	ctx = logging.ContextWithLogger(ctx, logging.FromContextOr(ctx, d.env.logger).With("user_id", userID))

	for {
		s := d.session(userID)
		s.mu.Lock()
		if s.detached {
			s.mu.Unlock()
			continue
		}
		messages := d.handleLocked(ctx, s, strings.TrimSpace(input))
		if s.flow == nil {
			d.release(s)
		}
		s.mu.Unlock()
		return messages, nil
	}
}

func (d *Dispatcher) session(userID string) *session {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[userID]
	if !ok {
		s = &session{userID: userID}
		d.sessions[userID] = s
	}
	return s
}

// release drops s from the map. The caller holds s.mu.
func (d *Dispatcher) release(s *session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sessions[s.userID] == s {
		delete(d.sessions, s.userID)
	}
	s.detached = true
}

func (d *Dispatcher) handleLocked(ctx context.Context, s *session, input string) []application.Message {
	s.lastSeen = d.env.now()

	if command, args, ok := parseCommand(input); ok {
		return d.command(ctx, s, command, args)
	}
	if s.flow == nil {
		return []application.Message{application.Text(unknownInput)}
	}
	return d.advance(s, s.flow.handle(ctx, input))
}

func (d *Dispatcher) advance(s *session, st step) []application.Message {
	if st.done {
		s.flow = nil
	}
	return st.messages
}

func (d *Dispatcher) command(ctx context.Context, s *session, command string, args []string) []application.Message {
	logger := logging.FromContextOr(ctx, d.env.logger)
	logger.DebugContext(ctx, "command received", "command", command)

	switch command {
	case "cancel":
		if s.flow == nil {
			return []application.Message{application.Text("Nothing to cancel.")}
		}
		logger.InfoContext(ctx, "flow cancelled", "flow", s.flow.kind())
		s.flow = nil
		return []application.Message{application.Text("Action cancelled")}
	case "start", "help":
		return []application.Message{application.Text(helpText)}
	case "dereg":
		s.flow = nil
		return []application.Message{d.deregister(ctx, s.userID)}
	}

	next := d.newFlow(command, s.userID, args)
	if next == nil {
		return []application.Message{application.Text(unknownInput)}
	}
	if s.flow != nil {
		logger.InfoContext(ctx, "flow replaced", "flow", s.flow.kind(), "next", next.kind())
	}
	s.flow = next
	return d.advance(s, next.begin(ctx))
}

func (d *Dispatcher) newFlow(command, userID string, args []string) flow {
	switch command {
	case "register":
		return newRegistrationFlow(d.env, userID)
	case "book":
		return newBookingFlow(d.env, userID)
	case "approvebooking":
		return newApprovalFlow(d.env, userID)
	case "approve":
		return newRegistrationApprovalFlow(d.env, userID, args)
	case "promote":
		return newPromoteFlow(d.env, userID)
	case "delete":
		return newDeleteFlow(d.env, userID)
	case "view", "viewday":
		return newViewFlow(d.env, userID)
	default:
		return nil
	}
}

func (d *Dispatcher) deregister(ctx context.Context, userID string) application.Message {
	user, err := d.env.services.Registry.Deregister(ctx, userID)
	if errors.Is(err, application.ErrNotRegistered) {
		return application.Text("User not registered!")
	}
	if err != nil {
		return d.env.fail(ctx, "dereg", err).messages[0]
	}
	return say("User %s deregistered.", user.DisplayName)
}

// parseCommand splits "/name@bot arg1 arg2" into a lower-case name and args.
func parseCommand(input string) (string, []string, bool) {
	if !strings.HasPrefix(input, "/") {
		return "", nil, false
	}
	fields := strings.Fields(input[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(name), fields[1:], true
}

// Active reports how many sessions are currently held.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// Sweep reclaims sessions idle since before now minus the idle timeout.
// Sessions busy with a message are skipped.
func (d *Dispatcher) Sweep(ctx context.Context) int {
	if d.idleTimeout <= 0 {
		return 0
	}
	cutoff := d.env.now().Add(-d.idleTimeout)

	d.mu.Lock()
	defer d.mu.Unlock()
	reclaimed := 0
	for userID, s := range d.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if s.lastSeen.Before(cutoff) {
			delete(d.sessions, userID)
			s.detached = true
			reclaimed++
		}
		s.mu.Unlock()
	}
	if reclaimed > 0 {
		logging.FromContextOr(ctx, d.env.logger).InfoContext(ctx, "reclaimed idle sessions", "count", reclaimed)
	}
	return reclaimed
}

// Run sweeps idle sessions every interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	if d.idleTimeout <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Sweep(ctx)
		}
	}
}
