/*
Package core holds the expiry check loop, the pause between lookups, and the
worker scheduler that runs chat commands.
*/
package core

import "errors"

// customError is an error type that includes a retryable flag.
// Callers use it to tell a transient refusal (a full queue) from a final one.
type customError struct {
	message   string
	retryable bool
}

// NewError creates a new customError with the given message and retryable status.
func NewError(msg string, retryable bool) error {
	return &customError{
		message:   msg,
		retryable: retryable,
	}
}

func (e *customError) Error() string {
	return e.message
}

// IsRetryable reports whether the error marks a transient condition.
func (e *customError) IsRetryable() bool {
	return e.retryable
}

// IsRetryable reports whether err is a retryable *customError.
// Any other error, including nil, is not retryable.
func IsRetryable(err error) bool {
	var e *customError
	if errors.As(err, &e) {
		return e.IsRetryable()
	}
	return false
}

var (
	// ErrQueueFull indicates that a worker's queue is at capacity. The job
	// may be resubmitted later.
	ErrQueueFull = NewError("queue full", true)
	// ErrSchedulerShutdown indicates the scheduler no longer accepts work.
	ErrSchedulerShutdown = NewError("scheduler shutdown", false)

	// ErrNothingToCheck is returned by Check for an empty domain list.
	ErrNothingToCheck = errors.New("no domains to check")
)
