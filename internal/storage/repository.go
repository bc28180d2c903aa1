package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/neexbeast/tether/internal/saved"
)

// Querier abstracts the subset of pgxpool.Pool and pgx.Tx used by the stores.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Stores binds every store to the same Querier, normally one transaction.
type Stores struct {
	segments   *SegmentStore
	flights    *FlightStore
	activities *ActivityStore
	saves      *SaveIndex
	users      *UserStore
}

// NewStores constructs the full set of stores over q.
func NewStores(q Querier) *Stores {
	return &Stores{
		segments:   NewSegmentStore(q),
		flights:    NewFlightStore(q),
		activities: NewActivityStore(q),
		saves:      NewSaveIndex(q),
		users:      NewUserStore(q),
	}
}

func (s *Stores) Segments() saved.SegmentStore    { return s.segments }
func (s *Stores) Flights() saved.FlightStore      { return s.flights }
func (s *Stores) Activities() saved.ActivityStore { return s.activities }
func (s *Stores) Saves() saved.SaveIndex          { return s.saves }
func (s *Stores) Users() saved.UserStore          { return s.users }

var _ saved.Stores = (*Stores)(nil)
