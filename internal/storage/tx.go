package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/neexbeast/tether/internal/saved"
)

// SQLSTATE codes inspected by the stores and the transaction boundary.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// TxManager implements saved.Transactor on top of a pgx pool.
type TxManager struct {
	pool Beginner
}

// NewTxManager constructs a TxManager over the given pool.
func NewTxManager(pool Beginner) *TxManager {
	return &TxManager{pool: pool}
}

// InTx begins a transaction, hands fn stores bound to it, and commits when fn
// returns nil. Any error or panic rolls the transaction back. Returned errors
// are classified into the saved error taxonomy.
func (m *TxManager) InTx(ctx context.Context, fn func(ctx context.Context, s saved.Stores) error) error {
	err := pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewStores(tx))
	})
	return classify(err)
}

var _ saved.Transactor = (*TxManager)(nil)

// classify maps an error leaving a transaction onto the saved taxonomy.
// Domain errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	for _, domain := range []error{
		saved.ErrTxConflict,
		saved.ErrDuplicateSave,
		saved.ErrDataIntegrity,
		saved.ErrNotFound,
		saved.ErrInvalidPayload,
		saved.ErrUserExists,
		saved.ErrUnknownUser,
		saved.ErrStorageUnavailable,
	} {
		if errors.Is(err, domain) {
			return err
		}
	}

	if isConflict(err) {
		return fmt.Errorf("%w: %w", saved.ErrTxConflict, err)
	}
	return fmt.Errorf("%w: %w", saved.ErrStorageUnavailable, err)
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}
