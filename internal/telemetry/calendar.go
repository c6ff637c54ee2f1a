package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/facility-booking/internal/application"
)

const instrumentationName = "github.com/example/facility-booking/internal/telemetry"

type tracedCalendar struct {
	next   application.Calendar
	tracer trace.Tracer
}

// TraceCalendar wraps next so every call runs in its own span. A nil
// provider uses the global one.
func TraceCalendar(next application.Calendar, provider trace.TracerProvider) application.Calendar {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &tracedCalendar{next: next, tracer: provider.Tracer(instrumentationName)}
}

func (c *tracedCalendar) start(ctx context.Context, name string, facilityIndex int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.Int("facility.index", facilityIndex))
	return c.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (c *tracedCalendar) ListEvents(ctx context.Context, facilityIndex int, start, end time.Time) ([]application.Event, error) {
	ctx, span := c.start(ctx, "calendar.ListEvents", facilityIndex,
		attribute.String("window.start", start.Format(time.RFC3339)),
		attribute.String("window.end", end.Format(time.RFC3339)))
	events, err := c.next.ListEvents(ctx, facilityIndex, start, end)
	span.SetAttributes(attribute.Int("events.count", len(events)))
	finish(span, err)
	return events, err
}

func (c *tracedCalendar) InsertEvent(ctx context.Context, facilityIndex int, summary string, start, end time.Time) (string, error) {
	ctx, span := c.start(ctx, "calendar.InsertEvent", facilityIndex,
		attribute.String("window.start", start.Format(time.RFC3339)),
		attribute.String("window.end", end.Format(time.RFC3339)))
	id, err := c.next.InsertEvent(ctx, facilityIndex, summary, start, end)
	span.SetAttributes(attribute.String("event.id", id))
	finish(span, err)
	return id, err
}

func (c *tracedCalendar) DeleteEvent(ctx context.Context, facilityIndex int, eventID string) error {
	ctx, span := c.start(ctx, "calendar.DeleteEvent", facilityIndex, attribute.String("event.id", eventID))
	err := c.next.DeleteEvent(ctx, facilityIndex, eventID)
	finish(span, err)
	return err
}
