package domain

import "errors"

var (
	// ErrNotFound is returned when a question or choice does not exist or is not published yet.
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)
