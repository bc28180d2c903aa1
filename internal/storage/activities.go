package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/neexbeast/tether/internal/saved"
)

// ActivityStore persists itinerary activities.
type ActivityStore struct {
	q Querier
}

// NewActivityStore constructs an ActivityStore over q.
func NewActivityStore(q Querier) *ActivityStore {
	return &ActivityStore{q: q}
}

// GetOrCreate inserts the activity with ref_count 1 unless the id is taken,
// in which case the stored row is returned untouched.
func (s *ActivityStore) GetOrCreate(ctx context.Context, a saved.Activity) (saved.Activity, bool, error) {
	pictures := a.Pictures
	if pictures == nil {
		pictures = []string{}
	}
	picturesJSON, err := json.Marshal(pictures)
	if err != nil {
		return saved.Activity{}, false, fmt.Errorf("marshaling pictures of activity %s: %w", a.ID, err)
	}

	const insert = `
		INSERT INTO activities (activity_id, city, name, details, price_amount, price_currency, pictures, ref_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
		ON CONFLICT (activity_id) DO NOTHING
		RETURNING ref_count
	`

	var refCount int
	err = s.q.QueryRow(ctx, insert,
		a.ID, a.City, a.Name, a.Details, a.PriceAmount, a.PriceCurrency, picturesJSON,
	).Scan(&refCount)
	if err == nil {
		a.Pictures = pictures
		a.RefCount = refCount
		return a, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return saved.Activity{}, false, fmt.Errorf("inserting activity %s: %w", a.ID, err)
	}

	existing, err := s.Get(ctx, a.ID)
	if err != nil {
		return saved.Activity{}, false, err
	}
	if existing == nil {
		return saved.Activity{}, false, fmt.Errorf("activity %s vanished during create: %w", a.ID, saved.ErrTxConflict)
	}

	return *existing, false, nil
}

// Increment bumps ref_count by one.
func (s *ActivityStore) Increment(ctx context.Context, activityID string) error {
	tag, err := s.q.Exec(ctx, `UPDATE activities SET ref_count = ref_count + 1 WHERE activity_id = $1`, activityID)
	if err != nil {
		return fmt.Errorf("incrementing activity %s: %w", activityID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("incrementing activity %s: %w", activityID, saved.ErrNotFound)
	}
	return nil
}

// Decrement lowers ref_count by one, never below zero, and returns the new value.
func (s *ActivityStore) Decrement(ctx context.Context, activityID string) (int, error) {
	const q = `
		UPDATE activities
		SET ref_count = GREATEST(ref_count - 1, 0)
		WHERE activity_id = $1
		RETURNING ref_count
	`

	var refCount int
	if err := s.q.QueryRow(ctx, q, activityID).Scan(&refCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("decrementing activity %s: %w", activityID, saved.ErrNotFound)
		}
		return 0, fmt.Errorf("decrementing activity %s: %w", activityID, err)
	}

	return refCount, nil
}

// Delete removes the activity row.
func (s *ActivityStore) Delete(ctx context.Context, activityID string) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM activities WHERE activity_id = $1`, activityID); err != nil {
		return fmt.Errorf("deleting activity %s: %w", activityID, err)
	}
	return nil
}

// Get retrieves an activity by id. Returns nil, nil when it does not exist.
func (s *ActivityStore) Get(ctx context.Context, activityID string) (*saved.Activity, error) {
	const q = `
		SELECT activity_id, city, name, details, price_amount, price_currency, pictures, ref_count
		FROM activities
		WHERE activity_id = $1
	`

	var a saved.Activity
	var picturesJSON []byte

	err := s.q.QueryRow(ctx, q, activityID).Scan(
		&a.ID,
		&a.City,
		&a.Name,
		&a.Details,
		&a.PriceAmount,
		&a.PriceCurrency,
		&picturesJSON,
		&a.RefCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying activity %s: %w", activityID, err)
	}

	if err := json.Unmarshal(picturesJSON, &a.Pictures); err != nil {
		return nil, fmt.Errorf("unmarshaling pictures of activity %s: %w", activityID, err)
	}

	return &a, nil
}
