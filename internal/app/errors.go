package service

import "errors"

// Sentinel errors returned by the Service.
var (
	ErrNotStarted = errors.New("service not started")
	ErrQueueFull  = errors.New("job queue is full")
)
