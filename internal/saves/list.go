package saves

import (
	"context"
	"fmt"

	"github.com/neexbeast/tether/internal/saved"
)

// ListSavedFlights returns every flight the user saved, oldest save first.
// An unregistered user gets saved.ErrUnknownUser.
func (s *Service) ListSavedFlights(ctx context.Context, userID string) ([]saved.FlightView, error) {
	var views []saved.FlightView
	err := s.tx.InTx(ctx, func(ctx context.Context, st saved.Stores) error {
		if err := requireUser(ctx, st, userID); err != nil {
			return err
		}

		rows, err := st.Saves().List(ctx, userID, saved.KindFlight)
		if err != nil {
			return err
		}

		views = make([]saved.FlightView, 0, len(rows))
		for _, r := range rows {
			id := r.ResourceID
			view, err := st.Flights().GetWithSegments(ctx, id)
			if err != nil {
				return err
			}
			if view == nil {
				return fmt.Errorf("user %s saved flight %s which is not stored: %w", userID, id, saved.ErrDataIntegrity)
			}
			views = append(views, *view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return views, nil
}

// ListSavedActivities returns every activity the user saved, oldest save first.
func (s *Service) ListSavedActivities(ctx context.Context, userID string) ([]saved.Activity, error) {
	var activities []saved.Activity
	err := s.tx.InTx(ctx, func(ctx context.Context, st saved.Stores) error {
		if err := requireUser(ctx, st, userID); err != nil {
			return err
		}

		rows, err := st.Saves().List(ctx, userID, saved.KindActivity)
		if err != nil {
			return err
		}

		activities = make([]saved.Activity, 0, len(rows))
		for _, r := range rows {
			id := r.ResourceID
			a, err := st.Activities().Get(ctx, id)
			if err != nil {
				return err
			}
			if a == nil {
				return fmt.Errorf("user %s saved activity %s which is not stored: %w", userID, id, saved.ErrDataIntegrity)
			}
			activities = append(activities, *a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return activities, nil
}

// GetFlight returns the stored flight with its segments, or saved.ErrNotFound.
func (s *Service) GetFlight(ctx context.Context, flightID string) (*saved.FlightView, error) {
	var view *saved.FlightView
	err := s.tx.InTx(ctx, func(ctx context.Context, st saved.Stores) error {
		var err error
		view, err = st.Flights().GetWithSegments(ctx, flightID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, fmt.Errorf("flight %s: %w", flightID, saved.ErrNotFound)
	}

	return view, nil
}

// GetActivity returns the stored activity, or saved.ErrNotFound.
func (s *Service) GetActivity(ctx context.Context, activityID string) (*saved.Activity, error) {
	var a *saved.Activity
	err := s.tx.InTx(ctx, func(ctx context.Context, st saved.Stores) error {
		var err error
		a, err = st.Activities().Get(ctx, activityID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("activity %s: %w", activityID, saved.ErrNotFound)
	}

	return a, nil
}
