package models

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested snapshot or report does not
	// exist.
	ErrNotFound = errors.New("not found")
)
