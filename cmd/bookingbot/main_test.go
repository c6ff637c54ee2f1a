package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/config"
	"github.com/example/facility-booking/internal/persistence/sqlite"
	"github.com/example/facility-booking/internal/persistence/sqlstore"
	"github.com/example/facility-booking/internal/testfixtures"
)

func newTestApp(t *testing.T) (*app, *sqlstore.Store) {
	t.Helper()

	db, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	store := sqlstore.New(db, testfixtures.DiscardLogger())
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	a := &app{
		cfg: config.Config{
			AllowList: config.AllowListConfig{Secret: "test-secret", Seed: []string{"123A:4567"}},
		},
		logger: testfixtures.DiscardLogger(),
		now:    clock.NowFunc(),
	}
	return a, store
}

func TestServicesPersistAcrossRestarts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a, store := newTestApp(t)
	messenger := testfixtures.NewMessenger()
	services, err := a.buildServices(ctx, store, nil, messenger)
	if err != nil {
		t.Fatalf("buildServices: %v", err)
	}

	outcome, _, err := services.Registry.Register(ctx, application.RegisterParams{
		UserID:      "100",
		Key:         application.AuthKey{Identity: "123A", Numeric: "4567"},
		DisplayName: "CPT Lim",
		Unit:        "HQ",
	})
	if err != nil || outcome != application.OutcomeRegistered {
		t.Fatalf("seeded key should register immediately, got %v %v", outcome, err)
	}
	if _, err := services.Registry.Bootstrap(ctx, "100"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	outcome, _, err = services.Registry.Register(ctx, application.RegisterParams{
		UserID:      "200",
		Key:         application.AuthKey{Identity: "999Z", Numeric: "0001"},
		DisplayName: "LTA Tan",
		Unit:        "40",
	})
	if err != nil || outcome != application.OutcomePending {
		t.Fatalf("unknown key should be pending, got %v %v", outcome, err)
	}
	if _, err := services.Registry.ApproveRequest(ctx, "100", "200"); err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}

	day := testfixtures.ReferenceTime()
	request, err := services.Bookings.Submit(ctx, application.SubmitParams{
		ID:            "req-1",
		UserID:        "200",
		FacilityIndex: 1,
		Start:         testfixtures.At(day, 9, 0),
		End:           testfixtures.At(day, 10, 0),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	restarted, err := a.buildServices(ctx, store, nil, messenger)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if user, ok := restarted.Registry.User("100"); !ok || !user.IsAdmin {
		t.Fatalf("expected admin to survive a restart, got %+v", user)
	}
	if _, ok := restarted.Registry.User("200"); !ok {
		t.Fatalf("expected approved user to survive a restart")
	}
	pending, err := restarted.Decisions.Pending("100")
	if err != nil || len(pending) != 1 || pending[0].Request.ID != request.ID {
		t.Fatalf("expected the queued request after restart, got %+v %v", pending, err)
	}
	if !pending[0].Request.Start.Equal(request.Start) {
		t.Fatalf("start changed across restart: %s vs %s", pending[0].Request.Start, request.Start)
	}

	result, err := restarted.Decisions.Approve(ctx, "100", pending[0].Ref())
	if err != nil || result.Outcome != application.DecisionApproved {
		t.Fatalf("Approve: %+v %v", result, err)
	}

	events, err := newEventCalendar(store, a.now).ListEvents(ctx, 1, testfixtures.At(day, 0, 0), testfixtures.At(day, 23, 59))
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 || events[0].Summary != "LTA Tan 40" || events[0].ID != result.EventID {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].Start.Location() != application.OrganizationZone {
		t.Fatalf("expected events in the organization zone, got %s", events[0].Start.Location())
	}

	final, err := a.buildServices(ctx, store, nil, messenger)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if final.Queue.Len() != 0 {
		t.Fatalf("approved request should leave the queue, got %d", final.Queue.Len())
	}
}

func TestStoreErrorsMapToCoreErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a, store := newTestApp(t)

	calendar := newEventCalendar(store, a.now)
	if err := calendar.DeleteEvent(ctx, 0, "missing"); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	registry := newRegistryStoreAdapter(store, a.now)
	if err := registry.DeleteRegistrationRequest(ctx, "nobody"); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := registry.AddAllowListDigest(ctx, "abc"); err != nil {
		t.Fatalf("AddAllowListDigest: %v", err)
	}
	if err := registry.AddAllowListDigest(ctx, "abc"); err != nil {
		t.Fatalf("re-adding a digest should be a no-op, got %v", err)
	}

	queue := newQueueStoreAdapter(store)
	if err := queue.DeletePendingBooking(ctx, "missing"); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	t.Setenv("BOOKING_ALLOWLIST_SECRET", "command-secret")
	t.Setenv("BOOKING_STORAGE_DSN", "file:"+filepath.Join(t.TempDir(), "bookings.db"))
	t.Setenv("BOOKING_LOG_LEVEL", "error")

	t.Run("facilities lists the catalogue", func(t *testing.T) {
		out, err := runCommand(t, "facilities")
		if err != nil {
			t.Fatalf("facilities: %v", err)
		}
		if !strings.Contains(out, "TRACKED VEHICLE MOVEMENT") || !strings.Contains(out, "movement controller") {
			t.Fatalf("unexpected output:\n%s", out)
		}
	})

	t.Run("migrate and allowlist add", func(t *testing.T) {
		if _, err := runCommand(t, "migrate"); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		out, err := runCommand(t, "allowlist", "add", "123a", "4567")
		if err != nil {
			t.Fatalf("allowlist add: %v", err)
		}
		if !strings.Contains(out, "Identity 123A & phone 4567 added to the allow-list.") {
			t.Fatalf("unexpected output: %q", out)
		}
		if _, err := runCommand(t, "allowlist", "add", "12", "4567"); err == nil {
			t.Fatalf("expected a malformed key to be rejected")
		}
	})

	t.Run("bootstrap requires a registered user", func(t *testing.T) {
		if _, err := runCommand(t, "admin", "bootstrap", "nobody"); !errors.Is(err, application.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("remind with no tracked bookings", func(t *testing.T) {
		out, err := runCommand(t, "remind")
		if err != nil {
			t.Fatalf("remind: %v", err)
		}
		if !strings.Contains(out, "no tracked movements today") {
			t.Fatalf("unexpected output: %q", out)
		}
	})

	t.Run("audit with no bookings", func(t *testing.T) {
		out, err := runCommand(t, "audit", "--days", "3")
		if err != nil {
			t.Fatalf("audit: %v", err)
		}
		if !strings.Contains(out, "no overlapping bookings") {
			t.Fatalf("unexpected output: %q", out)
		}
	})

	t.Run("missing secret fails before running", func(t *testing.T) {
		t.Setenv("BOOKING_ALLOWLIST_SECRET", "")
		if _, err := runCommand(t, "facilities"); err == nil || !strings.Contains(err.Error(), "allowlist.secret") {
			t.Fatalf("expected configuration error, got %v", err)
		}
	})
}
