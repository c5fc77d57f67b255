package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Only ErrInvalidInput is fatal to a request; the rest degrade
// to partial results plus an entry in the response's errors list.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrAdapterFailure = errors.New("adapter failure")
	ErrGeocode        = errors.New("geocode failed")
	ErrPersistence    = errors.New("persistence failure")
	ErrUpstreamConfig = errors.New("missing upstream credentials")
)

// AdapterError attributes a failure to the source that produced it.
type AdapterError struct {
	Source Source
	Err    error
}

// NewAdapterError wraps err for source. A nil err yields nil.
func NewAdapterError(source Source, err error) error {
	if err == nil {
		return nil
	}
	return &AdapterError{Source: source, Err: err}
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Is makes every AdapterError match ErrAdapterFailure in addition to its cause.
func (e *AdapterError) Is(target error) bool {
	return target == ErrAdapterFailure
}

// IsInvalidInput reports whether err is fatal to the request.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// PersistenceError tags a store failure with a coarse reason used for
// metrics: connection, constraint, timeout or other.
type PersistenceError struct {
	Reason string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence (%s): %v", e.Reason, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is makes every PersistenceError match ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// PersistenceReason returns the reason carried by err, or "other".
func PersistenceReason(err error) string {
	var pe *PersistenceError
	if errors.As(err, &pe) && pe.Reason != "" {
		return pe.Reason
	}
	return "other"
}
