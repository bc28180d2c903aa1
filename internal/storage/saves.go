package storage

import (
	"context"
	"fmt"

	"github.com/neexbeast/tether/internal/saved"
)

// SaveIndex persists which user saved which resource.
type SaveIndex struct {
	q Querier
}

// NewSaveIndex constructs a SaveIndex over q.
func NewSaveIndex(q Querier) *SaveIndex {
	return &SaveIndex{q: q}
}

// Exists reports whether the user has saved the resource.
func (s *SaveIndex) Exists(ctx context.Context, userID string, kind saved.Kind, resourceID string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM saved_resources
			WHERE user_id = $1 AND resource_kind = $2 AND resource_id = $3
		)
	`

	var exists bool
	if err := s.q.QueryRow(ctx, q, userID, string(kind), resourceID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking saved %s %s for user %s: %w", kind, resourceID, userID, err)
	}
	return exists, nil
}

// Insert adds the saved row. A duplicate is rejected with saved.ErrDuplicateSave.
func (s *SaveIndex) Insert(ctx context.Context, userID string, kind saved.Kind, resourceID string) error {
	const q = `
		INSERT INTO saved_resources (user_id, resource_kind, resource_id, saved_at)
		VALUES ($1, $2, $3, NOW())
	`

	if _, err := s.q.Exec(ctx, q, userID, string(kind), resourceID); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("saving %s %s for user %s: %w", kind, resourceID, userID, saved.ErrDuplicateSave)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("saving %s %s for user %s: %w", kind, resourceID, userID, saved.ErrUnknownUser)
		}
		return fmt.Errorf("saving %s %s for user %s: %w", kind, resourceID, userID, err)
	}
	return nil
}

// Delete removes the saved row and reports whether it existed.
func (s *SaveIndex) Delete(ctx context.Context, userID string, kind saved.Kind, resourceID string) (bool, error) {
	const q = `
		DELETE FROM saved_resources
		WHERE user_id = $1 AND resource_kind = $2 AND resource_id = $3
	`

	tag, err := s.q.Exec(ctx, q, userID, string(kind), resourceID)
	if err != nil {
		return false, fmt.Errorf("unsaving %s %s for user %s: %w", kind, resourceID, userID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns the user's saves of kind, oldest first.
func (s *SaveIndex) List(ctx context.Context, userID string, kind saved.Kind) ([]saved.SavedResource, error) {
	const q = `
		SELECT resource_id, saved_at
		FROM saved_resources
		WHERE user_id = $1 AND resource_kind = $2
		ORDER BY saved_at ASC, resource_id ASC
	`

	rows, err := s.q.Query(ctx, q, userID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("listing saved %s for user %s: %w", kind, userID, err)
	}
	defer rows.Close()

	var out []saved.SavedResource
	for rows.Next() {
		r := saved.SavedResource{UserID: userID, Kind: kind}
		if err := rows.Scan(&r.ResourceID, &r.SavedAt); err != nil {
			return nil, fmt.Errorf("scanning saved resource: %w", err)
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating saved resources: %w", err)
	}

	return out, nil
}
