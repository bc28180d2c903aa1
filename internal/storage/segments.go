package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/neexbeast/tether/internal/saved"
)

// SegmentStore persists segments shared across flights.
type SegmentStore struct {
	q Querier
}

// NewSegmentStore constructs a SegmentStore over q.
func NewSegmentStore(q Querier) *SegmentStore {
	return &SegmentStore{q: q}
}

// UpsertOrIncrement inserts the segment with ref_count 1. When the id is
// already stored only ref_count is bumped; the payload is discarded.
func (s *SegmentStore) UpsertOrIncrement(ctx context.Context, seg saved.Segment) (string, error) {
	const q = `
		INSERT INTO segments (
			segment_id, airline_code, flight_code,
			departure_airport, departure_city, arrival_airport, arrival_city,
			departure_date, departure_time, arrival_date, arrival_time,
			duration, ref_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
		ON CONFLICT (segment_id) DO UPDATE
		SET ref_count = segments.ref_count + 1
		RETURNING segment_id
	`

	var id string
	err := s.q.QueryRow(ctx, q,
		seg.ID, seg.AirlineCode, seg.FlightCode,
		seg.DepartureAirport, seg.DepartureCity, seg.ArrivalAirport, seg.ArrivalCity,
		seg.DepartureDate, seg.DepartureTime, seg.ArrivalDate, seg.ArrivalTime,
		seg.Duration,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting segment %s: %w", seg.ID, err)
	}

	return id, nil
}

// DecrementAndMaybeDelete lowers ref_count by one, never below zero, and
// deletes the row once nothing references it.
func (s *SegmentStore) DecrementAndMaybeDelete(ctx context.Context, segmentID string) (bool, error) {
	const dec = `
		UPDATE segments
		SET ref_count = GREATEST(ref_count - 1, 0)
		WHERE segment_id = $1
		RETURNING ref_count
	`

	var refCount int
	if err := s.q.QueryRow(ctx, dec, segmentID).Scan(&refCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("decrementing segment %s: %w", segmentID, saved.ErrNotFound)
		}
		return false, fmt.Errorf("decrementing segment %s: %w", segmentID, err)
	}

	if refCount > 0 {
		return false, nil
	}

	if _, err := s.q.Exec(ctx, `DELETE FROM segments WHERE segment_id = $1`, segmentID); err != nil {
		return false, fmt.Errorf("deleting segment %s: %w", segmentID, err)
	}

	return true, nil
}

// Get retrieves a segment by id. Returns nil, nil when it does not exist.
func (s *SegmentStore) Get(ctx context.Context, segmentID string) (*saved.Segment, error) {
	const q = `
		SELECT segment_id, airline_code, flight_code,
		       departure_airport, departure_city, arrival_airport, arrival_city,
		       departure_date, departure_time, arrival_date, arrival_time,
		       duration, ref_count
		FROM segments
		WHERE segment_id = $1
	`

	var seg saved.Segment
	err := s.q.QueryRow(ctx, q, segmentID).Scan(segmentFields(&seg)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying segment %s: %w", segmentID, err)
	}

	return &seg, nil
}

// segmentFields returns scan targets in segment column order.
func segmentFields(seg *saved.Segment) []any {
	return []any{
		&seg.ID, &seg.AirlineCode, &seg.FlightCode,
		&seg.DepartureAirport, &seg.DepartureCity, &seg.ArrivalAirport, &seg.ArrivalCity,
		&seg.DepartureDate, &seg.DepartureTime, &seg.ArrivalDate, &seg.ArrivalTime,
		&seg.Duration, &seg.RefCount,
	}
}
