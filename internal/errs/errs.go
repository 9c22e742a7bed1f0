// Package errs holds the error taxonomy shared by every wallet component.
// Callers compare with errors.Is / errors.As; components wrap with github.com/pkg/errors.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrPathNotValid        = errors.New("path not valid")
	ErrNotFound            = errors.New("account not found")
	ErrDeviceRejected      = errors.New("rejected on device")
	ErrSigningFailed       = errors.New("signing failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotImplemented      = errors.New("not implemented for this coin")
)

// BackendError is a failure talking to a chain indexer: transport error,
// non-2xx status or a body that could not be decoded. Body is kept verbatim.
type BackendError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *BackendError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("backend %s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("backend %s %s: %v", e.Op, e.URL, e.Err)
	default:
		return fmt.Sprintf("backend %s %s: status %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
	}
}

func (e *BackendError) Unwrap() error { return e.Err }

// SigningError is the terminal outcome of a failed signing run. State is the
// state the machine was in when the failure happened.
type SigningError struct {
	State string
	Err   error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing failed in state %s: %v", e.State, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// Is makes every SigningError match ErrSigningFailed while still exposing
// its cause through Unwrap.
func (e *SigningError) Is(target error) bool {
	return target == ErrSigningFailed
}
