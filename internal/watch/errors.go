package watch

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is matched by errors returned when a wait exceeds its deadline.
	ErrTimeout = errors.New("timed out")

	// ErrServerDisconnected is matched by errors returned when the server
	// closed a watch the caller still depended on.
	ErrServerDisconnected = errors.New("server disconnected unexpectedly")
)

// TimeoutError is returned by Until when the predicate did not hold in time.
type TimeoutError struct {
	Resource string
	Timeout  time.Duration
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s after %s (timeout %s)",
		e.Resource, e.Elapsed.Round(time.Millisecond), e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// DisconnectError is returned when a watch on Resource ended on the server side.
type DisconnectError struct {
	Resource string
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("%s while watching %s", ErrServerDisconnected, e.Resource)
}

func (e *DisconnectError) Unwrap() error {
	return ErrServerDisconnected
}
