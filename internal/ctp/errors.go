package ctp

import "errors"

var (
	// ErrDuplicateName is returned when an entity name is already taken.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrUnknownReference is returned when a referenced entity is not part of
	// the configuration.
	ErrUnknownReference = errors.New("unknown reference")

	// ErrInvalid is returned for structurally invalid entities.
	ErrInvalid = errors.New("invalid entity")
)
