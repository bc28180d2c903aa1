package saved

import "context"

// SegmentStore holds deduplicated, reference-counted segments.
type SegmentStore interface {
	// UpsertOrIncrement inserts seg with ref_count 1, or bumps the count of
	// the existing row and discards the payload.
	UpsertOrIncrement(ctx context.Context, seg Segment) (string, error)
	// DecrementAndMaybeDelete lowers ref_count by one (floor 0) and deletes
	// the row once it reaches zero. Returns whether the row was deleted.
	DecrementAndMaybeDelete(ctx context.Context, segmentID string) (bool, error)
	// Get returns nil, nil when the segment does not exist.
	Get(ctx context.Context, segmentID string) (*Segment, error)
}

// FlightStore holds flights and their ordered segment associations.
type FlightStore interface {
	// GetOrCreate inserts f with ref_count 1 when absent. An existing row is
	// returned untouched with created=false.
	GetOrCreate(ctx context.Context, f Flight) (Flight, bool, error)
	Increment(ctx context.Context, flightID string) error
	// Decrement returns the post-decrement ref_count (floor 0).
	Decrement(ctx context.Context, flightID string) (int, error)
	Delete(ctx context.Context, flightID string) error
	// SetSegments writes the association rows of a newly created flight.
	SetSegments(ctx context.Context, flightID string, refs []SegmentRef) error
	// SegmentIDs returns the distinct segment ids associated with the flight.
	SegmentIDs(ctx context.Context, flightID string) ([]string, error)
	DeleteSegments(ctx context.Context, flightID string) error
	// GetWithSegments returns nil, nil when the flight does not exist.
	GetWithSegments(ctx context.Context, flightID string) (*FlightView, error)
}

// ActivityStore holds reference-counted activities.
type ActivityStore interface {
	GetOrCreate(ctx context.Context, a Activity) (Activity, bool, error)
	Increment(ctx context.Context, activityID string) error
	Decrement(ctx context.Context, activityID string) (int, error)
	Delete(ctx context.Context, activityID string) error
	// Get returns nil, nil when the activity does not exist.
	Get(ctx context.Context, activityID string) (*Activity, error)
}

// SaveIndex is the user to resource join, unique per (user, kind, resource).
type SaveIndex interface {
	Exists(ctx context.Context, userID string, kind Kind, resourceID string) (bool, error)
	// Insert fails with ErrDuplicateSave instead of overwriting.
	Insert(ctx context.Context, userID string, kind Kind, resourceID string) error
	// Delete reports whether a row existed.
	Delete(ctx context.Context, userID string, kind Kind, resourceID string) (bool, error)
	// List returns the user's saves of kind, oldest first.
	List(ctx context.Context, userID string, kind Kind) ([]SavedResource, error)
}

// UserStore is the registry of users that may own saves.
type UserStore interface {
	// Create fails with ErrUserExists when the id is taken.
	Create(ctx context.Context, u User) (User, error)
	// Get returns nil, nil when the user does not exist.
	Get(ctx context.Context, userID string) (*User, error)
}

// Stores groups the stores bound to one transaction.
type Stores interface {
	Segments() SegmentStore
	Flights() FlightStore
	Activities() ActivityStore
	Saves() SaveIndex
	Users() UserStore
}

// Transactor runs fn inside a single transaction. The transaction commits
// when fn returns nil and rolls back on any error or panic.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
