// Package saves coordinates the reference-counted stores so that every save
// and unsave commits as one transaction.
package saves

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/neexbeast/tether/internal/saved"
)

const defaultMaxAttempts = 3

// Service is the save/unsave orchestrator.
type Service struct {
	tx          saved.Transactor
	log         *slog.Logger
	maxAttempts int
}

// Option configures a Service.
type Option func(*Service)

// WithMaxAttempts bounds how many times an operation runs when it keeps
// losing races to concurrent transactions. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n >= 1 {
			s.maxAttempts = n
		}
	}
}

// NewService constructs a Service over the given transactor.
func NewService(tx saved.Transactor, log *slog.Logger, opts ...Option) *Service {
	s := &Service{tx: tx, log: log, maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run executes fn in a transaction, retrying the whole transaction when it
// fails with a conflict. fn must be safe to re-run from scratch.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context, st saved.Stores) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.tx.InTx(ctx, fn)
		if err == nil || !retryable(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w: %w", op, saved.ErrStorageUnavailable, ctxErr)
		}
		s.log.Warn("transaction conflict, retrying", "op", op, "attempt", attempt, "err", err)
	}

	if errors.Is(err, saved.ErrTxConflict) {
		return fmt.Errorf("%s: giving up after %d attempts: %w", op, s.maxAttempts, err)
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w: %w", op, s.maxAttempts, saved.ErrTxConflict, err)
}

// retryable reports whether err came from losing a race. A duplicate insert
// can only happen when a concurrent save slipped in after the Exists check.
func retryable(err error) bool {
	return errors.Is(err, saved.ErrTxConflict) || errors.Is(err, saved.ErrDuplicateSave)
}

// SaveFlight records that the user saved the flight. The first save creates
// the flight and its segments; later saves by other users increment the
// flight's ref_count. A user saving the same flight twice gets
// StatusAlreadySaved and nothing is written.
func (s *Service) SaveFlight(ctx context.Context, req saved.FlightSave) (saved.Result, error) {
	if err := req.Validate(); err != nil {
		return saved.Result{}, err
	}
	flightID := req.Flight.ID

	var status saved.Status
	err := s.run(ctx, "save flight", func(ctx context.Context, st saved.Stores) error {
		if err := requireUser(ctx, st, req.UserID); err != nil {
			return err
		}

		exists, err := st.Saves().Exists(ctx, req.UserID, saved.KindFlight, flightID)
		if err != nil {
			return err
		}
		if exists {
			status = saved.StatusAlreadySaved
			return nil
		}

		_, created, err := st.Flights().GetOrCreate(ctx, req.Flight)
		if err != nil {
			return err
		}

		if created {
			if err := s.createSegments(ctx, st, req); err != nil {
				return err
			}
			status = saved.StatusCreated
		} else {
			if err := st.Flights().Increment(ctx, flightID); err != nil {
				if errors.Is(err, saved.ErrNotFound) {
					// Cascade-deleted by a concurrent unsave after GetOrCreate saw it.
					return fmt.Errorf("%w: %w", saved.ErrTxConflict, err)
				}
				return err
			}
			status = saved.StatusIncremented
		}

		return st.Saves().Insert(ctx, req.UserID, saved.KindFlight, flightID)
	})
	if err != nil {
		return saved.Result{}, err
	}

	s.log.Info("flight save committed", "user_id", req.UserID, "flight_id", flightID, "status", status)
	return saved.NewResult(saved.KindFlight, req.UserID, flightID, status), nil
}

// createSegments upserts each distinct segment once and writes the flight's
// ordering. A segment that appears twice in one flight still counts that
// flight once. Segments are locked in id order, the same order the unsave
// cascade uses.
func (s *Service) createSegments(ctx context.Context, st saved.Stores, req saved.FlightSave) error {
	payloads := make(map[string]saved.Segment, len(req.Segments))
	for _, seg := range req.Segments {
		payloads[seg.ID] = seg
	}

	ids := req.DistinctSegmentIDs()
	slices.Sort(ids)
	for _, id := range ids {
		if _, err := st.Segments().UpsertOrIncrement(ctx, payloads[id]); err != nil {
			return err
		}
	}

	return st.Flights().SetSegments(ctx, req.Flight.ID, req.Ordering)
}

// UnsaveFlight removes the user's save. The last unsave deletes the flight,
// its associations, and every segment no other flight still uses.
func (s *Service) UnsaveFlight(ctx context.Context, userID, flightID string) (saved.Result, error) {
	var status saved.Status
	err := s.run(ctx, "unsave flight", func(ctx context.Context, st saved.Stores) error {
		existed, err := st.Saves().Delete(ctx, userID, saved.KindFlight, flightID)
		if err != nil {
			return err
		}
		if !existed {
			status = saved.StatusNotSaved
			return nil
		}

		refCount, err := st.Flights().Decrement(ctx, flightID)
		if err != nil {
			return integrity(err, "flight", flightID)
		}

		if refCount == 0 {
			if err := s.deleteFlight(ctx, st, flightID); err != nil {
				return err
			}
		}

		status = saved.StatusRemoved
		return nil
	})
	if err != nil {
		if errors.Is(err, saved.ErrDataIntegrity) {
			s.log.Error("unsave flight hit inconsistent state", "user_id", userID, "flight_id", flightID, "err", err)
		}
		return saved.Result{}, err
	}

	s.log.Info("flight unsave committed", "user_id", userID, "flight_id", flightID, "status", status)
	return saved.NewResult(saved.KindFlight, userID, flightID, status), nil
}

// deleteFlight cascades a flight whose ref_count reached zero. Segment ids
// are read first; associations go before the segment decrements so the
// segment foreign key never dangles.
func (s *Service) deleteFlight(ctx context.Context, st saved.Stores, flightID string) error {
	segmentIDs, err := st.Flights().SegmentIDs(ctx, flightID)
	if err != nil {
		return err
	}

	if err := st.Flights().DeleteSegments(ctx, flightID); err != nil {
		return err
	}

	for _, id := range segmentIDs {
		deleted, err := st.Segments().DecrementAndMaybeDelete(ctx, id)
		if err != nil {
			return integrity(err, "segment", id)
		}
		if deleted {
			s.log.Debug("segment deleted", "segment_id", id, "flight_id", flightID)
		}
	}

	return st.Flights().Delete(ctx, flightID)
}

// SaveActivity records that the user saved the activity.
func (s *Service) SaveActivity(ctx context.Context, req saved.ActivitySave) (saved.Result, error) {
	if err := req.Validate(); err != nil {
		return saved.Result{}, err
	}
	activityID := req.Activity.ID

	var status saved.Status
	err := s.run(ctx, "save activity", func(ctx context.Context, st saved.Stores) error {
		if err := requireUser(ctx, st, req.UserID); err != nil {
			return err
		}

		exists, err := st.Saves().Exists(ctx, req.UserID, saved.KindActivity, activityID)
		if err != nil {
			return err
		}
		if exists {
			status = saved.StatusAlreadySaved
			return nil
		}

		_, created, err := st.Activities().GetOrCreate(ctx, req.Activity)
		if err != nil {
			return err
		}

		if created {
			status = saved.StatusCreated
		} else {
			if err := st.Activities().Increment(ctx, activityID); err != nil {
				if errors.Is(err, saved.ErrNotFound) {
					return fmt.Errorf("%w: %w", saved.ErrTxConflict, err)
				}
				return err
			}
			status = saved.StatusIncremented
		}

		return st.Saves().Insert(ctx, req.UserID, saved.KindActivity, activityID)
	})
	if err != nil {
		return saved.Result{}, err
	}

	s.log.Info("activity save committed", "user_id", req.UserID, "activity_id", activityID, "status", status)
	return saved.NewResult(saved.KindActivity, req.UserID, activityID, status), nil
}

// UnsaveActivity removes the user's save and deletes the activity once no
// user references it.
func (s *Service) UnsaveActivity(ctx context.Context, userID, activityID string) (saved.Result, error) {
	var status saved.Status
	err := s.run(ctx, "unsave activity", func(ctx context.Context, st saved.Stores) error {
		existed, err := st.Saves().Delete(ctx, userID, saved.KindActivity, activityID)
		if err != nil {
			return err
		}
		if !existed {
			status = saved.StatusNotSaved
			return nil
		}

		refCount, err := st.Activities().Decrement(ctx, activityID)
		if err != nil {
			return integrity(err, "activity", activityID)
		}

		if refCount == 0 {
			if err := st.Activities().Delete(ctx, activityID); err != nil {
				return err
			}
		}

		status = saved.StatusRemoved
		return nil
	})
	if err != nil {
		if errors.Is(err, saved.ErrDataIntegrity) {
			s.log.Error("unsave activity hit inconsistent state", "user_id", userID, "activity_id", activityID, "err", err)
		}
		return saved.Result{}, err
	}

	s.log.Info("activity unsave committed", "user_id", userID, "activity_id", activityID, "status", status)
	return saved.NewResult(saved.KindActivity, userID, activityID, status), nil
}

// integrity turns a missing row under an existing reference into
// ErrDataIntegrity. The store error is kept as text only so callers never
// see ErrNotFound for it.
func integrity(err error, what, id string) error {
	if errors.Is(err, saved.ErrNotFound) {
		return fmt.Errorf("%s %s is referenced but not stored: %w (%v)", what, id, saved.ErrDataIntegrity, err)
	}
	return err
}

// requireUser fails with ErrUnknownUser unless userID is registered.
func requireUser(ctx context.Context, st saved.Stores, userID string) error {
	u, err := st.Users().Get(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("user %s: %w", userID, saved.ErrUnknownUser)
	}
	return nil
}
