// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the operation conflicts with the current lifecycle
// state (e.g. generating an agent for a user that already has one in flight).
var ErrConflict = errors.New("conflict: operation not allowed in current state")

// ErrValidation indicates malformed or missing input.
var ErrValidation = errors.New("validation failed")
