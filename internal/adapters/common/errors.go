package common

import "errors"

// Class describes whether a failed call may be attempted again by the caller.
type Class int

const (
	// Fatal failures must not be retried in-process.
	Fatal Class = iota
	// Retryable failures may be attempted once more after a delay.
	Retryable
)

// String implements fmt.Stringer.
func (c Class) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "fatal"
}

// ErrRetryable and ErrFatal are sentinel errors adapters use when classifying
// failures of outbound calls.
var (
	ErrRetryable = errors.New("retryable error")
	ErrFatal     = errors.New("fatal error")
)

type classified struct {
	class Class
	err   error
}

func (c *classified) Error() string { return c.err.Error() }

func (c *classified) Unwrap() []error {
	if c.class == Retryable {
		return []error{ErrRetryable, c.err}
	}
	return []error{ErrFatal, c.err}
}

// WrapRetryable annotates an error so callers can detect retryable failures.
// The original error stays reachable through errors.Is and errors.As.
func WrapRetryable(err error) error {
	if err == nil {
		return ErrRetryable
	}
	return &classified{class: Retryable, err: err}
}

// WrapFatal annotates an error as fatal.
func WrapFatal(err error) error {
	if err == nil {
		return ErrFatal
	}
	return &classified{class: Fatal, err: err}
}

// ClassOf reports the classification of err. Unclassified errors are fatal.
func ClassOf(err error) Class {
	if err == nil {
		return Fatal
	}
	var c *classified
	if errors.As(err, &c) {
		return c.class
	}
	if errors.Is(err, ErrRetryable) {
		return Retryable
	}
	return Fatal
}
