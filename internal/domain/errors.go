package domain

import "errors"

var (
	// ErrTodoNotFound is the domain NotFound error raised by toggle.
	ErrTodoNotFound = errors.New("todo not found")

	// ErrRecordMissing is reported by the storage substrate when a write
	// targets a record that does not exist. Rename surfaces it unchanged.
	ErrRecordMissing = errors.New("record does not exist in store")

	// ErrInvalidID means the identifier is not a well-formed todo id.
	ErrInvalidID = errors.New("invalid todo id")
)
