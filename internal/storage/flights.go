package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/neexbeast/tether/internal/saved"
)

// FlightStore persists flights and their segment associations.
type FlightStore struct {
	q Querier
}

// NewFlightStore constructs a FlightStore over q.
func NewFlightStore(q Querier) *FlightStore {
	return &FlightStore{q: q}
}

// GetOrCreate inserts the flight with ref_count 1 unless the id is taken.
// The unique key on flight_id decides the single creator when two
// transactions race; the loser gets the stored row back with created=false.
func (s *FlightStore) GetOrCreate(ctx context.Context, f saved.Flight) (saved.Flight, bool, error) {
	const insert = `
		INSERT INTO flights (flight_id, total_segment_count, price_per_person, total_price, ref_count)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (flight_id) DO NOTHING
		RETURNING ref_count
	`

	var refCount int
	err := s.q.QueryRow(ctx, insert, f.ID, f.TotalSegmentCount, f.PricePerPerson, f.TotalPrice).Scan(&refCount)
	if err == nil {
		f.RefCount = refCount
		return f, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return saved.Flight{}, false, fmt.Errorf("inserting flight %s: %w", f.ID, err)
	}

	existing, err := s.get(ctx, f.ID)
	if err != nil {
		return saved.Flight{}, false, err
	}
	if existing == nil {
		// Deleted by a concurrent unsave between the insert and the read.
		return saved.Flight{}, false, fmt.Errorf("flight %s vanished during create: %w", f.ID, saved.ErrTxConflict)
	}

	return *existing, false, nil
}

// Increment bumps ref_count by one.
func (s *FlightStore) Increment(ctx context.Context, flightID string) error {
	tag, err := s.q.Exec(ctx, `UPDATE flights SET ref_count = ref_count + 1 WHERE flight_id = $1`, flightID)
	if err != nil {
		return fmt.Errorf("incrementing flight %s: %w", flightID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("incrementing flight %s: %w", flightID, saved.ErrNotFound)
	}
	return nil
}

// Decrement lowers ref_count by one, never below zero, and returns the new value.
func (s *FlightStore) Decrement(ctx context.Context, flightID string) (int, error) {
	const q = `
		UPDATE flights
		SET ref_count = GREATEST(ref_count - 1, 0)
		WHERE flight_id = $1
		RETURNING ref_count
	`

	var refCount int
	if err := s.q.QueryRow(ctx, q, flightID).Scan(&refCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("decrementing flight %s: %w", flightID, saved.ErrNotFound)
		}
		return 0, fmt.Errorf("decrementing flight %s: %w", flightID, err)
	}

	return refCount, nil
}

// Delete removes the flight row.
func (s *FlightStore) Delete(ctx context.Context, flightID string) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM flights WHERE flight_id = $1`, flightID); err != nil {
		return fmt.Errorf("deleting flight %s: %w", flightID, err)
	}
	return nil
}

// SetSegments bulk-inserts the association rows of a newly created flight
// in a single statement.
func (s *FlightStore) SetSegments(ctx context.Context, flightID string, refs []saved.SegmentRef) error {
	if len(refs) == 0 {
		return nil
	}

	ids := make([]string, len(refs))
	bounds := make([]string, len(refs))
	positions := make([]int32, len(refs))
	for i, ref := range refs {
		ids[i] = ref.SegmentID
		bounds[i] = string(ref.Bound)
		positions[i] = int32(ref.Position)
	}

	const q = `
		INSERT INTO flight_segments (flight_id, segment_id, bound, position)
		SELECT $1, t.segment_id, t.bound, t.position
		FROM unnest($2::text[], $3::text[], $4::int[]) AS t(segment_id, bound, position)
	`

	if _, err := s.q.Exec(ctx, q, flightID, ids, bounds, positions); err != nil {
		return fmt.Errorf("inserting segments of flight %s: %w", flightID, err)
	}
	return nil
}

// SegmentIDs returns the distinct segment ids the flight references.
func (s *FlightStore) SegmentIDs(ctx context.Context, flightID string) ([]string, error) {
	const q = `
		SELECT DISTINCT segment_id
		FROM flight_segments
		WHERE flight_id = $1
		ORDER BY segment_id
	`

	rows, err := s.q.Query(ctx, q, flightID)
	if err != nil {
		return nil, fmt.Errorf("querying segment ids of flight %s: %w", flightID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning segment id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating segment ids: %w", err)
	}

	return ids, nil
}

// DeleteSegments removes every association row of the flight.
func (s *FlightStore) DeleteSegments(ctx context.Context, flightID string) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM flight_segments WHERE flight_id = $1`, flightID); err != nil {
		return fmt.Errorf("deleting segments of flight %s: %w", flightID, err)
	}
	return nil
}

// GetWithSegments loads a flight and its segments split by bound, each list
// ordered by position. Returns nil, nil when the flight does not exist.
func (s *FlightStore) GetWithSegments(ctx context.Context, flightID string) (*saved.FlightView, error) {
	f, err := s.get(ctx, flightID)
	if err != nil || f == nil {
		return nil, err
	}

	const q = `
		SELECT fs.bound,
		       s.segment_id, s.airline_code, s.flight_code,
		       s.departure_airport, s.departure_city, s.arrival_airport, s.arrival_city,
		       s.departure_date, s.departure_time, s.arrival_date, s.arrival_time,
		       s.duration, s.ref_count
		FROM flight_segments fs
		JOIN segments s ON s.segment_id = fs.segment_id
		WHERE fs.flight_id = $1
		ORDER BY fs.bound DESC, fs.position ASC
	`

	rows, err := s.q.Query(ctx, q, flightID)
	if err != nil {
		return nil, fmt.Errorf("querying segments of flight %s: %w", flightID, err)
	}
	defer rows.Close()

	view := &saved.FlightView{
		Flight:   *f,
		Outbound: []saved.Segment{},
		Inbound:  []saved.Segment{},
	}
	for rows.Next() {
		var bound string
		var seg saved.Segment
		if err := rows.Scan(append([]any{&bound}, segmentFields(&seg)...)...); err != nil {
			return nil, fmt.Errorf("scanning flight segment row: %w", err)
		}

		switch saved.Bound(bound) {
		case saved.BoundOutbound:
			view.Outbound = append(view.Outbound, seg)
		case saved.BoundInbound:
			view.Inbound = append(view.Inbound, seg)
		default:
			return nil, fmt.Errorf("flight %s has segment %s with bound %q: %w", flightID, seg.ID, bound, saved.ErrDataIntegrity)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating flight segment rows: %w", err)
	}

	return view, nil
}

func (s *FlightStore) get(ctx context.Context, flightID string) (*saved.Flight, error) {
	const q = `
		SELECT flight_id, total_segment_count, price_per_person, total_price, ref_count
		FROM flights
		WHERE flight_id = $1
	`

	var f saved.Flight
	err := s.q.QueryRow(ctx, q, flightID).Scan(
		&f.ID,
		&f.TotalSegmentCount,
		&f.PricePerPerson,
		&f.TotalPrice,
		&f.RefCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying flight %s: %w", flightID, err)
	}

	return &f, nil
}
