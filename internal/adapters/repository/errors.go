package repository

import "errors"

// Sentinel kinds for result store errors.
var (
	ErrNotFound     = errors.New("job not found")
	ErrInvalidLimit = errors.New("invalid review limit")
	ErrMissingJobID = errors.New("result has no job id")
	ErrFull         = errors.New("result store is full")
)
