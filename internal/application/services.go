package application

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Dependencies are the collaborators the core calls through.
type Dependencies struct {
	RegistryStore RegistryStore
	QueueStore    QueueStore
	Calendar      Calendar
	Messenger     Messenger
	Digester      *KeyDigester
	Now           func() time.Time
	Logger        *slog.Logger
}

// Options are the operator-controlled policies.
type Options struct {
	Facilities     Facilities
	BlockOnPending bool
	Janitor        JanitorConfig
}

// Services bundles every core service over one shared registry and queue.
type Services struct {
	Facilities   Facilities
	Notifier     *Notifier
	Registry     *Registry
	Queue        *Queue
	Availability *Availability
	Bookings     *Bookings
	Decisions    *Decisions
	Reminder     *Reminder
	Janitor      *Janitor
}

// NewServices wires the core. Call Load before serving traffic.
func NewServices(deps Dependencies, opts Options) (*Services, error) {
	if deps.Calendar == nil {
		return nil, errors.New("application: calendar is required")
	}
	if deps.Digester == nil {
		return nil, errors.New("application: key digester is required")
	}
	if len(opts.Facilities) == 0 {
		opts.Facilities = DefaultFacilities()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := defaultLogger(deps.Logger)

	notifier := NewNotifier(deps.Messenger, logger)
	registry := NewRegistry(deps.RegistryStore, deps.Digester, notifier, deps.Now, logger)
	queue := NewQueue(deps.QueueStore, logger)
	availability := NewAvailability(deps.Calendar, queue, opts.Facilities,
		WithBlockOnPending(opts.BlockOnPending),
		WithAvailabilityLogger(logger),
	)
	decisions := NewDecisions(registry, queue, availability, deps.Calendar, notifier, opts.Facilities, logger)

	return &Services{
		Facilities:   opts.Facilities,
		Notifier:     notifier,
		Registry:     registry,
		Queue:        queue,
		Availability: availability,
		Bookings:     NewBookings(registry, queue, availability, deps.Calendar, notifier, opts.Facilities, deps.Now, logger),
		Decisions:    decisions,
		Reminder:     NewReminder(registry, availability, opts.Facilities, notifier, deps.Now, logger),
		Janitor:      NewJanitor(decisions, registry, opts.Janitor, deps.Now, logger),
	}, nil
}

// Load restores the registry and queue from their stores.
func (s *Services) Load(ctx context.Context) error {
	if err := s.Registry.Load(ctx); err != nil {
		return err
	}
	return s.Queue.Load(ctx)
}
