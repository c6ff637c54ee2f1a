package testfixtures

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/example/facility-booking/internal/application"
)

// Env is a fully wired core over in-memory collaborators.
type Env struct {
	Clock     *Clock
	IDs       *IDGenerator
	Calendar  *Calendar
	Messenger *Messenger
	Registry  *RegistryStore
	Queue     *QueueStore
	Services  *application.Services

	keys int
}

// EnvOption adjusts the policies the core is built with.
type EnvOption func(*application.Options)

// WithBlockOnPending makes pending requests block new submissions.
func WithBlockOnPending() EnvOption {
	return func(o *application.Options) { o.BlockOnPending = true }
}

// WithJanitor sets request time-to-live values.
func WithJanitor(cfg application.JanitorConfig) EnvOption {
	return func(o *application.Options) { o.Janitor = cfg }
}

// WithFacilities replaces the default catalogue.
func WithFacilities(facilities application.Facilities) EnvOption {
	return func(o *application.Options) { o.Facilities = facilities }
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewEnv wires application.Services and loads it.
func NewEnv(tb testing.TB, opts ...EnvOption) *Env {
	tb.Helper()

	env := &Env{
		Clock:     NewClock(ReferenceTime()),
		IDs:       NewIDGenerator("req"),
		Calendar:  NewCalendar(),
		Messenger: NewMessenger(),
		Registry:  NewRegistryStore(),
		Queue:     NewQueueStore(),
	}
	digester, err := application.NewKeyDigester([]byte("fixture-secret"))
	if err != nil {
		tb.Fatalf("NewKeyDigester: %v", err)
	}
	options := application.Options{Facilities: application.DefaultFacilities()}
	for _, opt := range opts {
		opt(&options)
	}
	env.Services, err = application.NewServices(application.Dependencies{
		RegistryStore: env.Registry,
		QueueStore:    env.Queue,
		Calendar:      env.Calendar,
		Messenger:     env.Messenger,
		Digester:      digester,
		Now:           env.Clock.NowFunc(),
		Logger:        DiscardLogger(),
	}, options)
	if err != nil {
		tb.Fatalf("NewServices: %v", err)
	}
	if err := env.Services.Load(context.Background()); err != nil {
		tb.Fatalf("Load: %v", err)
	}
	return env
}

// Member registers userID through the allow-list and optionally makes them
// an admin.
func (e *Env) Member(tb testing.TB, userID, displayName, unit string, admin bool) application.User {
	tb.Helper()

	ctx := context.Background()
	e.keys++
	key := application.AuthKey{Identity: fmt.Sprintf("%03dM", e.keys%1000), Numeric: "0000"}
	if err := e.Services.Registry.AllowKey(ctx, key); err != nil {
		tb.Fatalf("AllowKey: %v", err)
	}
	outcome, user, err := e.Services.Registry.Register(ctx, application.RegisterParams{
		UserID: userID, Key: key, DisplayName: displayName, Unit: unit,
	})
	if err != nil || outcome != application.OutcomeRegistered {
		tb.Fatalf("Register(%s) = %v, %v", userID, outcome, err)
	}
	if admin {
		if user, err = e.Services.Registry.Bootstrap(ctx, userID); err != nil {
			tb.Fatalf("Bootstrap(%s): %v", userID, err)
		}
	}
	return user
}
