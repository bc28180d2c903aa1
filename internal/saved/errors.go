package saved

import "errors"

var (
	// ErrInvalidPayload is returned when a save request fails validation.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrNotFound is returned by stores when the addressed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateSave is returned by SaveIndex.Insert when the (user, kind, resource)
	// row already exists.
	ErrDuplicateSave = errors.New("resource already saved by user")

	// ErrTxConflict marks a transaction that lost a race with a concurrent one.
	// It is safe to retry the whole operation.
	ErrTxConflict = errors.New("transaction conflict")

	// ErrDataIntegrity marks stored state that breaks a reference-count invariant,
	// such as a saved row whose resource is missing. Never retried.
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrUserExists is returned when registering a user id that is taken.
	ErrUserExists = errors.New("user already exists")

	// ErrUnknownUser is returned when saving or listing for an unregistered user.
	ErrUnknownUser = errors.New("unknown user")

	// ErrStorageUnavailable wraps connection and transaction failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
