package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/config"
	"github.com/example/facility-booking/internal/logging"
	"github.com/example/facility-booking/internal/persistence/postgres"
	"github.com/example/facility-booking/internal/persistence/sqlite"
	"github.com/example/facility-booking/internal/persistence/sqlstore"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	configFile string
	cfg        config.Config
	logger     *slog.Logger
	out        io.Writer
	now        func() time.Time
}

func newRootCommand() *cobra.Command {
	a := &app{out: os.Stdout, now: time.Now}

	root := &cobra.Command{
		Use:           "bookingbot",
		Short:         "Facility booking chat bot",
		Long:          `A chat bot that takes facility booking requests and routes them to admins for approval.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(cmd.ErrOrStderr(), cfg.Log.Level)
			a.out = cmd.OutOrStdout()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (YAML)")

	root.AddCommand(
		a.serveCommand(),
		a.migrateCommand(),
		a.allowListCommand(),
		a.adminCommand(),
		a.remindCommand(),
		a.facilitiesCommand(),
		a.auditCommand(),
	)
	return root
}

func newLogger(w io.Writer, level string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logging.ParseLevel(level)}))
	slog.SetDefault(logger)
	return logger
}

// openStore connects to the configured database and applies pending
// migrations.
func (a *app) openStore(ctx context.Context) (*sqlstore.Store, error) {
	open := sqlite.Open
	if a.cfg.Storage.Driver == "postgres" {
		open = postgres.Open
	}
	db, err := open(ctx, a.cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	store := sqlstore.New(db, a.logger)
	if _, err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store, nil
}

// buildServices wires the core over store and loads persisted state.
func (a *app) buildServices(ctx context.Context, store *sqlstore.Store, calendar application.Calendar, messenger application.Messenger) (*application.Services, error) {
	digester, err := application.NewKeyDigester([]byte(a.cfg.AllowList.Secret))
	if err != nil {
		return nil, err
	}
	if calendar == nil {
		calendar = newEventCalendar(store, a.now)
	}
	services, err := application.NewServices(application.Dependencies{
		RegistryStore: newRegistryStoreAdapter(store, a.now),
		QueueStore:    newQueueStoreAdapter(store),
		Calendar:      calendar,
		Messenger:     messenger,
		Digester:      digester,
		Now:           a.now,
		Logger:        a.logger,
	}, application.Options{
		Facilities:     a.cfg.Catalogue(),
		BlockOnPending: a.cfg.Booking.BlockOnPending,
		Janitor:        a.cfg.Janitor(),
	})
	if err != nil {
		return nil, err
	}
	if err := services.Load(ctx); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	keys, err := a.cfg.SeedKeys()
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if err := services.Registry.AllowKey(ctx, key); err != nil {
			return nil, fmt.Errorf("seed allow-list: %w", err)
		}
	}
	return services, nil
}

// withServices opens the store, builds the core and runs fn. Commands other
// than serve log outbound messages instead of delivering them unless a
// webhook is configured.
func (a *app) withServices(ctx context.Context, fn func(ctx context.Context, services *application.Services) error) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			a.logger.Error("failed to close storage", "error", cerr)
		}
	}()

	messenger, err := a.messenger()
	if err != nil {
		return err
	}
	services, err := a.buildServices(ctx, store, nil, messenger)
	if err != nil {
		return err
	}
	return fn(ctx, services)
}
