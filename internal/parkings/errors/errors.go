package errors

import "errors"

var (
	ErrNotFound = errors.New("parking not found")

	ErrInvalidID = errors.New("invalid parking ID format")
)
