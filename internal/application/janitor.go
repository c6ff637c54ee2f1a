package application

import (
	"context"
	"log/slog"
	"time"
)

// JanitorConfig sets request time-to-live values. Zero disables eviction.
type JanitorConfig struct {
	BookingTTL      time.Duration
	RegistrationTTL time.Duration
}

// Enabled reports whether any eviction is configured.
func (c JanitorConfig) Enabled() bool {
	return c.BookingTTL > 0 || c.RegistrationTTL > 0
}

// SweepResult counts requests evicted by one sweep.
type SweepResult struct {
	Bookings      int
	Registrations int
}

// Janitor evicts requests nobody acted on within their TTL.
type Janitor struct {
	decisions *Decisions
	registry  *Registry
	config    JanitorConfig
	now       func() time.Time
	logger    *slog.Logger
}

// NewJanitor wires the eviction sweep.
func NewJanitor(decisions *Decisions, registry *Registry, config JanitorConfig, now func() time.Time, logger *slog.Logger) *Janitor {
	if now == nil {
		now = time.Now
	}
	return &Janitor{decisions: decisions, registry: registry, config: config, now: now, logger: defaultLogger(logger)}
}

// Sweep evicts expired requests once.
func (j *Janitor) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	logger := serviceLogger(ctx, j.logger, "Janitor", "Sweep")
	now := j.now()

	if j.config.BookingTTL > 0 {
		expired, err := j.decisions.ExpirePending(ctx, now.Add(-j.config.BookingTTL))
		result.Bookings = len(expired)
		if err != nil {
			logger.ErrorContext(ctx, "failed to expire booking requests", "error", err, "error_kind", ErrorKind(err))
			return result, err
		}
	}
	if j.config.RegistrationTTL > 0 {
		expired, err := j.registry.ExpireRequestsBefore(ctx, now.Add(-j.config.RegistrationTTL))
		result.Registrations = len(expired)
		if err != nil {
			logger.ErrorContext(ctx, "failed to expire registration requests", "error", err, "error_kind", ErrorKind(err))
			return result, err
		}
	}
	if result.Bookings > 0 || result.Registrations > 0 {
		logger.InfoContext(ctx, "expired stale requests", "bookings", result.Bookings, "registrations", result.Registrations)
	}
	return result, nil
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	if !j.config.Enabled() || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = j.Sweep(ctx)
		}
	}
}
