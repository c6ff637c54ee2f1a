package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/facility-booking/internal/scheduler"
)

// QueueEntry is a pending request tagged with its position at snapshot time.
type QueueEntry struct {
	Index   int
	Request BookingRequest
}

// QueueRef addresses a queue entry chosen from a snapshot. The index is tried
// first and the id confirms it, so concurrent mutations never select the wrong
// request.
type QueueRef struct {
	Index int
	ID    string
}

// Ref returns the reference for e.
func (e QueueEntry) Ref() QueueRef {
	return QueueRef{Index: e.Index, ID: e.Request.ID}
}

// Queue is the ordered set of pending booking requests. Entries change
// through a store-first write so a failed write never leaves a phantom entry.
type Queue struct {
	mu      sync.Mutex
	decide  sync.Mutex
	store   QueueStore
	entries []BookingRequest
	logger  *slog.Logger
}

// NewQueue constructs an empty queue. Call Load to restore persisted requests.
func NewQueue(store QueueStore, logger *slog.Logger) *Queue {
	return &Queue{store: store, logger: defaultLogger(logger)}
}

func (q *Queue) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, q.logger, "Queue", operation, attrs...)
}

// Load replaces the in-memory queue with the stored requests.
func (q *Queue) Load(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	requests, err := q.store.LoadPendingBookings(ctx)
	if err != nil {
		return providerError("load pending bookings", err)
	}
	q.mu.Lock()
	q.entries = append([]BookingRequest(nil), requests...)
	q.mu.Unlock()
	q.loggerWith(ctx, "Load").InfoContext(ctx, "queue loaded", "pending", len(requests))
	return nil
}

// Enqueue appends request. Enqueuing an id that is already queued returns the
// existing entry and false.
func (q *Queue) Enqueue(ctx context.Context, request BookingRequest) (BookingRequest, bool, error) {
	if request.ID == "" {
		return BookingRequest{}, false, newValidationError("id", "request id is required")
	}
	if !request.Start.Before(request.End) {
		return BookingRequest{}, false, newValidationError("end", "end time must be after start time")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, existing := range q.entries {
		if existing.ID == request.ID {
			return existing, false, nil
		}
	}
	if q.store != nil {
		if err := q.store.InsertPendingBooking(ctx, request); err != nil {
			return BookingRequest{}, false, providerError("insert pending booking", err)
		}
	}
	q.entries = append(q.entries, request)
	return request, true, nil
}

// Find returns the queued request with id.
func (q *Queue) Find(id string) (BookingRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, existing := range q.entries {
		if existing.ID == id {
			return existing, true
		}
	}
	return BookingRequest{}, false
}

// Len reports the number of pending requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot copies the queue with current indices.
func (q *Queue) Snapshot() []QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueueEntry, len(q.entries))
	for i, request := range q.entries {
		out[i] = QueueEntry{Index: i, Request: request}
	}
	return out
}

// Resolve re-validates ref against the live queue.
func (q *Queue) Resolve(ctx context.Context, ref QueueRef) (QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.resolveLocked(ctx, ref)
}

func (q *Queue) resolveLocked(ctx context.Context, ref QueueRef) (QueueEntry, error) {
	if ref.Index >= 0 && ref.Index < len(q.entries) {
		if ref.ID == "" || q.entries[ref.Index].ID == ref.ID {
			return QueueEntry{Index: ref.Index, Request: q.entries[ref.Index]}, nil
		}
	}
	if ref.ID == "" {
		return QueueEntry{}, ErrStaleReference
	}
	for i, request := range q.entries {
		if request.ID == ref.ID {
			q.loggerWith(ctx, "Resolve", "request_id", ref.ID).DebugContext(ctx, "queue index drifted",
				"presented_index", ref.Index, "current_index", i)
			return QueueEntry{Index: i, Request: request}, nil
		}
	}
	return QueueEntry{}, ErrStaleReference
}

// Overlapping returns pending requests on facility whose windows intersect
// [start, end), skipping excludeID.
func (q *Queue) Overlapping(facilityIndex int, start, end time.Time, excludeID string) []BookingRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []BookingRequest
	for _, request := range q.entries {
		if request.FacilityIndex != facilityIndex || request.ID == excludeID {
			continue
		}
		if scheduler.Overlaps(request.Start, request.End, start, end) {
			out = append(out, request)
		}
	}
	return out
}

// DecideFunc runs while the decision lock is held. Returning nil removes the
// entry from the queue; returning an error leaves it queued.
type DecideFunc func(ctx context.Context, entry QueueEntry) error

// Decide serializes decisions on queue entries. It resolves ref, runs fn and
// removes the entry when fn succeeds. ErrStaleReference is returned when the
// entry was already consumed.
func (q *Queue) Decide(ctx context.Context, ref QueueRef, fn DecideFunc) (BookingRequest, error) {
	q.decide.Lock()
	defer q.decide.Unlock()

	entry, err := q.Resolve(ctx, ref)
	if err != nil {
		return BookingRequest{}, err
	}
	if err := fn(ctx, entry); err != nil {
		return entry.Request, err
	}
	if err := q.remove(ctx, entry.Request.ID); err != nil {
		return entry.Request, err
	}
	return entry.Request, nil
}

func (q *Queue) remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.store != nil {
		if err := q.store.DeletePendingBooking(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return providerError("delete pending booking", err)
		}
	}
	for i, request := range q.entries {
		if request.ID == id {
			q.entries = append(q.entries[:i:i], q.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

// ExpireBefore removes requests submitted before cutoff and returns them.
func (q *Queue) ExpireBefore(ctx context.Context, cutoff time.Time) ([]BookingRequest, error) {
	q.decide.Lock()
	defer q.decide.Unlock()

	var expired []BookingRequest
	for _, entry := range q.Snapshot() {
		if !entry.Request.CreatedAt.Before(cutoff) {
			continue
		}
		if err := q.remove(ctx, entry.Request.ID); err != nil {
			return expired, fmt.Errorf("expire %s: %w", entry.Request.ID, err)
		}
		expired = append(expired, entry.Request)
	}
	return expired, nil
}
