package store

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyClosed = errors.New("occupancy already closed")
)
