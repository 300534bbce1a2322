package gateway

import (
	"context"
	"errors"
	"fmt"

	"fiscus/pkg/platform/sentinel"
)

// TransientIOError is returned once every attempt against the remote store
// has failed with a retryable error.
type TransientIOError struct {
	Op       string
	ClientID string
	Attempts int
	Err      error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%s client %s failed after %d attempts: %v", e.Op, e.ClientID, e.Attempts, e.Err)
}

func (e *TransientIOError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a TransientIOError.
func IsTransient(err error) bool {
	var te *TransientIOError
	return errors.As(err, &te)
}

// retryable classifies a store error. Absent records, rejected payloads and
// cancellation are final; everything else is treated as a network fault.
func retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, sentinel.ErrNotFound),
		errors.Is(err, sentinel.ErrRejected),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
