package entity

import "errors"

var (
	// ErrNotFound is returned when a claim id is not known to the store
	ErrNotFound = errors.New("claim not found")

	// ErrInvalidState is returned when a command is not allowed in the claim's current status
	ErrInvalidState = errors.New("invalid claim state")

	// ErrInvalidArgument is returned for malformed command input
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict is returned when a concurrent transition won the optimistic lock
	ErrConflict = errors.New("claim was modified concurrently")
)
