package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the gateway return these
// (optionally wrapped) so callers can branch with errors.Is.
//
//   - ErrNotFound: no record exists for the client in the remote store
//   - ErrUnavailable: the remote store could not be reached
//   - ErrRejected: the store refused the payload; retrying will not help
//   - ErrSelectionChanged: the caller moved to another client/year mid-flight
//   - ErrVerificationMismatch: read-back content diverged from what was written
//   - ErrWriteNotConfirmed: all write attempts failed
//   - ErrNotLoaded: an edit or save was attempted before a record was loaded
var (
	ErrNotFound             = errors.New("not found")
	ErrUnavailable          = errors.New("unavailable")
	ErrRejected             = errors.New("rejected by store")
	ErrSelectionChanged     = errors.New("selection changed")
	ErrVerificationMismatch = errors.New("verification mismatch")
	ErrWriteNotConfirmed    = errors.New("write not confirmed")
	ErrNotLoaded            = errors.New("no record loaded")
)
