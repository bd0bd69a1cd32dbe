package fetch

import "errors"

// Common errors returned by the fetch package.
var (
	// ErrTimeout is returned when a page fetch exceeds its deadline.
	ErrTimeout = errors.New("page fetch timed out")
	// ErrBadStatus is returned when the source answers with a non-2xx status.
	ErrBadStatus = errors.New("page fetch returned bad status")
	// ErrUnavailable is returned when the source cannot be reached at all.
	ErrUnavailable = errors.New("page source unavailable")
	// ErrEmptyBody is returned when the source answers with an empty document.
	ErrEmptyBody = errors.New("page fetch returned empty body")
)
