package saved

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FlightSave is a validated request to save a flight for a user.
type FlightSave struct {
	UserID   string       `json:"user_id" validate:"required"`
	Flight   Flight       `json:"flight"`
	Segments []Segment    `json:"segments" validate:"min=1,dive"`
	Ordering []SegmentRef `json:"ordering" validate:"min=1,dive"`
}

// NewFlightSave builds a FlightSave and validates it.
func NewFlightSave(userID string, flight Flight, segments []Segment, ordering []SegmentRef) (FlightSave, error) {
	fs := FlightSave{UserID: userID, Flight: flight, Segments: segments, Ordering: ordering}
	if err := fs.Validate(); err != nil {
		return FlightSave{}, err
	}
	return fs, nil
}

// Validate checks required fields and that Segments and Ordering describe
// the same set of segments with no two refs on the same (bound, position).
func (f FlightSave) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	payloads := make(map[string]bool, len(f.Segments))
	for _, s := range f.Segments {
		if payloads[s.ID] {
			return fmt.Errorf("%w: segment %s supplied more than once", ErrInvalidPayload, s.ID)
		}
		payloads[s.ID] = true
	}

	type slot struct {
		bound    Bound
		position int
	}
	slots := make(map[slot]bool, len(f.Ordering))
	ordered := make(map[string]bool, len(f.Ordering))
	for _, ref := range f.Ordering {
		if !payloads[ref.SegmentID] {
			return fmt.Errorf("%w: ordering references unknown segment %s", ErrInvalidPayload, ref.SegmentID)
		}
		k := slot{ref.Bound, ref.Position}
		if slots[k] {
			return fmt.Errorf("%w: duplicate %s position %d", ErrInvalidPayload, ref.Bound, ref.Position)
		}
		slots[k] = true
		ordered[ref.SegmentID] = true
	}
	for id := range payloads {
		if !ordered[id] {
			return fmt.Errorf("%w: segment %s has no position", ErrInvalidPayload, id)
		}
	}

	if f.Flight.TotalSegmentCount != len(f.Ordering) {
		return fmt.Errorf("%w: total_segment_count %d does not match %d ordered segments",
			ErrInvalidPayload, f.Flight.TotalSegmentCount, len(f.Ordering))
	}
	return nil
}

// DistinctSegmentIDs returns the ordered segment ids with duplicates removed.
func (f FlightSave) DistinctSegmentIDs() []string {
	seen := make(map[string]bool, len(f.Ordering))
	ids := make([]string, 0, len(f.Ordering))
	for _, ref := range f.Ordering {
		if seen[ref.SegmentID] {
			continue
		}
		seen[ref.SegmentID] = true
		ids = append(ids, ref.SegmentID)
	}
	return ids
}

// ToFlightSave converts the offer shape into a FlightSave. Positions are
// assigned 1..n within each bound in list order. A segment id repeated
// across the lists is sent as a single payload.
func (v FlightView) ToFlightSave(userID string) (FlightSave, error) {
	var segments []Segment
	var ordering []SegmentRef
	seen := make(map[string]bool)

	add := func(bound Bound, list []Segment) {
		for i, s := range list {
			ordering = append(ordering, SegmentRef{SegmentID: s.ID, Bound: bound, Position: i + 1})
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			s.RefCount = 0
			segments = append(segments, s)
		}
	}
	add(BoundOutbound, v.Outbound)
	add(BoundInbound, v.Inbound)

	flight := v.Flight
	flight.RefCount = 0
	return NewFlightSave(userID, flight, segments, ordering)
}

// ActivitySave is a validated request to save an activity for a user.
type ActivitySave struct {
	UserID   string   `json:"user_id" validate:"required"`
	Activity Activity `json:"activity"`
}

// NewActivitySave builds an ActivitySave and validates it.
func NewActivitySave(userID string, activity Activity) (ActivitySave, error) {
	activity.RefCount = 0
	if activity.Pictures == nil {
		activity.Pictures = []string{}
	}
	as := ActivitySave{UserID: userID, Activity: activity}
	if err := as.Validate(); err != nil {
		return ActivitySave{}, err
	}
	return as, nil
}

// Validate checks required fields and price format.
func (a ActivitySave) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// NewUser builds a User for registration and validates it.
func NewUser(id, details string) (User, error) {
	u := User{ID: strings.TrimSpace(id), Details: details}
	if err := validate.Struct(u); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return u, nil
}
