package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrConstraintViolation is returned when a record breaks a CHECK or NOT NULL rule.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a record references a missing parent.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrConflict is returned when the store refuses a meeting that overlaps another
	// confirmed meeting in the same room.
	ErrConflict = errors.New("persistence: room already booked")
	// ErrStale is returned by conditional writes whose expected concurrency token no
	// longer matches the stored one.
	ErrStale = errors.New("persistence: stale concurrency token")
	// ErrUnknownFilter is returned when a filter names a field the entity does not expose.
	ErrUnknownFilter = errors.New("persistence: unknown filter field")
)
