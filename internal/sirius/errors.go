package sirius

import (
	"errors"
	"fmt"
)

// ErrUnexpectedStatusCode matches any *UnexpectedStatusError.
var ErrUnexpectedStatusCode = errors.New("unexpected status code")

// UnexpectedStatusError is returned for a non-error response other than 204.
type UnexpectedStatusError struct {
	StatusCode int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf(`Expected status "%d" but received "%d"`, expectedStatus, e.StatusCode)
}

// Is reports ErrUnexpectedStatusCode.
func (e *UnexpectedStatusError) Is(target error) bool {
	return target == ErrUnexpectedStatusCode
}

// ClientError is returned for a 4xx response.
type ClientError struct {
	StatusCode int
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("sirius: client error: http %d: %s", e.StatusCode, e.Body)
}

// ServerError is returned for a 5xx response.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("sirius: server error: http %d: %s", e.StatusCode, e.Body)
}
