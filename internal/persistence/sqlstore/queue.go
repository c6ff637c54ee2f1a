package sqlstore

import (
	"context"

	"github.com/example/facility-booking/internal/persistence"
)

var _ persistence.QueueStore = (*Store)(nil)

type bookingRow struct {
	ID            string `db:"id"`
	RequesterID   string `db:"requester_id"`
	DisplayName   string `db:"display_name"`
	Unit          string `db:"unit"`
	FacilityIndex int    `db:"facility_index"`
	StartAt       string `db:"start_at"`
	EndAt         string `db:"end_at"`
	CreatedAt     string `db:"created_at"`
}

func (row bookingRow) record() (persistence.BookingRequest, error) {
	start, err := parseTime(row.StartAt)
	if err != nil {
		return persistence.BookingRequest{}, err
	}
	end, err := parseTime(row.EndAt)
	if err != nil {
		return persistence.BookingRequest{}, err
	}
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.BookingRequest{}, err
	}
	return persistence.BookingRequest{
		ID:            row.ID,
		RequesterID:   row.RequesterID,
		DisplayName:   row.DisplayName,
		Unit:          row.Unit,
		FacilityIndex: row.FacilityIndex,
		Start:         start,
		End:           end,
		CreatedAt:     createdAt,
	}, nil
}

// LoadPendingBookings returns the queue in insertion order.
func (s *Store) LoadPendingBookings(ctx context.Context) ([]persistence.BookingRequest, error) {
	var rows []bookingRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, requester_id, display_name, unit, facility_index, start_at, end_at, created_at
		FROM booking_requests
		ORDER BY seq`); err != nil {
		return nil, mapError("load pending bookings", err)
	}

	requests := make([]persistence.BookingRequest, 0, len(rows))
	for _, row := range rows {
		request, err := row.record()
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, nil
}

// InsertPendingBooking appends a request to the queue.
func (s *Store) InsertPendingBooking(ctx context.Context, request persistence.BookingRequest) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO booking_requests (id, requester_id, display_name, unit, facility_index, start_at, end_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		request.ID,
		request.RequesterID,
		request.DisplayName,
		request.Unit,
		request.FacilityIndex,
		formatTime(request.Start),
		formatTime(request.End),
		formatTime(request.CreatedAt),
	)
	return mapError("insert pending booking", err)
}

// DeletePendingBooking removes a request from the queue.
func (s *Store) DeletePendingBooking(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM booking_requests WHERE id = ?`), id)
	if err != nil {
		return mapError("delete pending booking", err)
	}
	return requireAffected("delete pending booking", result)
}
