package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNoQueue         = errors.New("no work queue configured")
	ErrQueueEmpty      = errors.New("work queue is empty")
	ErrMalformedJob    = errors.New("malformed job envelope")
)
