package store

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector's length disagrees
	// with the store's locked dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyVector is returned when a record carries no embedding.
	ErrEmptyVector = errors.New("empty embedding vector")

	// ErrInvalidRange is returned when importance falls outside [0, 1].
	ErrInvalidRange = errors.New("importance out of range [0, 1]")

	// ErrEmptyInput is returned when a batch write is called with no
	// records.
	ErrEmptyInput = errors.New("empty input")
)
