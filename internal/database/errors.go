package database

import "errors"

var (
	// ErrNotFound is returned when an identity has no stored templates
	ErrNotFound = errors.New("no face templates stored for user")

	// ErrCorruptSnapshot is returned when a snapshot file cannot be decoded
	ErrCorruptSnapshot = errors.New("corrupt template snapshot")
)
