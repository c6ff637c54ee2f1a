package sqlstore

import (
	"context"

	"github.com/example/facility-booking/internal/persistence"
)

var _ persistence.EventStore = (*Store)(nil)

type eventRow struct {
	ID            string `db:"id"`
	FacilityIndex int    `db:"facility_index"`
	Summary       string `db:"summary"`
	StartAt       string `db:"start_at"`
	EndAt         string `db:"end_at"`
	CreatedAt     string `db:"created_at"`
}

// ListEvents returns events on the facility that intersect the filter window,
// ordered by start.
func (s *Store) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, s.rebind(`
		SELECT id, facility_index, summary, start_at, end_at, created_at
		FROM events
		WHERE facility_index = ? AND start_at < ? AND end_at > ?
		ORDER BY start_at, id`),
		filter.FacilityIndex, formatTime(filter.StartsBefore), formatTime(filter.EndsAfter)); err != nil {
		return nil, mapError("list events", err)
	}

	events := make([]persistence.Event, 0, len(rows))
	for _, row := range rows {
		start, err := parseTime(row.StartAt)
		if err != nil {
			return nil, err
		}
		end, err := parseTime(row.EndAt)
		if err != nil {
			return nil, err
		}
		createdAt, err := parseTime(row.CreatedAt)
		if err != nil {
			return nil, err
		}
		events = append(events, persistence.Event{
			ID:            row.ID,
			FacilityIndex: row.FacilityIndex,
			Summary:       row.Summary,
			Start:         start,
			End:           end,
			CreatedAt:     createdAt,
		})
	}
	return events, nil
}

// InsertEvent stores a confirmed booking.
func (s *Store) InsertEvent(ctx context.Context, event persistence.Event) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO events (id, facility_index, summary, start_at, end_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		event.ID, event.FacilityIndex, event.Summary,
		formatTime(event.Start), formatTime(event.End), formatTime(event.CreatedAt))
	return mapError("insert event", err)
}

// DeleteEvent removes a confirmed booking from a facility.
func (s *Store) DeleteEvent(ctx context.Context, facilityIndex int, id string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM events WHERE id = ? AND facility_index = ?`), id, facilityIndex)
	if err != nil {
		return mapError("delete event", err)
	}
	return requireAffected("delete event", result)
}
