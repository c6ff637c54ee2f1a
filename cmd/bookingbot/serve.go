package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/conversation"
	httptransport "github.com/example/facility-booking/internal/http"
	"github.com/example/facility-booking/internal/notify"
	"github.com/example/facility-booking/internal/telemetry"
)

const serviceName = "bookingbot"

const (
	janitorInterval = time.Minute
	sweepInterval   = time.Minute
)

func (a *app) messenger() (application.Messenger, error) {
	return notify.New(notify.Config{
		Provider: a.cfg.Notify.Provider,
		URL:      a.cfg.Notify.WebhookURL,
		Token:    a.cfg.Notify.WebhookToken,
		Timeout:  a.cfg.Notify.Timeout,
	}, a.logger)
}

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	logger := a.logger

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    a.cfg.Telemetry.OTLPEndpoint,
		Insecure:    a.cfg.Telemetry.Insecure,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	messenger, err := a.messenger()
	if err != nil {
		return err
	}
	calendar := telemetry.TraceCalendar(newEventCalendar(store, a.now), otel.GetTracerProvider())
	services, err := a.buildServices(ctx, store, calendar, messenger)
	if err != nil {
		return err
	}

	dispatcher := conversation.NewDispatcher(services, conversation.Config{
		IdleTimeout: a.cfg.Conversation.IdleTimeout,
		Now:         a.now,
		Logger:      logger,
	})

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Updates:          httptransport.NewUpdateHandler(dispatcher, logger),
		Health:           httptransport.NewHealthHandler(store, logger),
		UpdateMiddleware: []func(http.Handler) http.Handler{httptransport.RequireToken(a.cfg.HTTP.WebhookToken, logger)},
		Middleware:       []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
	server := httptransport.NewServer(fmt.Sprintf(":%d", a.cfg.HTTP.Port), serviceName, router)

	go services.Janitor.Run(ctx, janitorInterval)
	go dispatcher.Run(ctx, sweepInterval)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("booking bot listening",
		"addr", server.Addr,
		"facilities", len(services.Facilities),
		"block_on_pending", a.cfg.Booking.BlockOnPending)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
