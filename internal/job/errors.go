package job

import "errors"

// Common errors returned by the job package.
var (
	// ErrEmptyKeyword is returned when a job is created without a keyword.
	ErrEmptyKeyword = errors.New("keyword cannot be empty")

	// ErrInvalidTargetCount is returned when the requested count is not positive.
	ErrInvalidTargetCount = errors.New("target count must be positive")

	// ErrJobNotFound is returned when no job exists for the given id.
	ErrJobNotFound = errors.New("job not found")

	// ErrSessionNotFound is returned when a continuation names an unknown session.
	ErrSessionNotFound = errors.New("session not found")
)
