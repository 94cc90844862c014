package core

import (
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrMissingURL     = errors.New("harvester: job has no URL")
	ErrEmptyHierarchy = errors.New("harvester: topic hierarchy is empty")
	ErrAlreadyRunning = errors.New("harvester: a run is already in progress")
)

// ContentRejectedError marks a failure that retrying cannot fix: the video
// is too long, unavailable, or access-restricted. Workers convert it to an
// immediate permanent failure.
type ContentRejectedError struct {
	Err error
}

func (e *ContentRejectedError) Error() string {
	return fmt.Sprintf("content rejected: %v", e.Err)
}

func (e *ContentRejectedError) Unwrap() error {
	return e.Err
}

// Reject wraps an error to indicate the job must not be retried.
func Reject(err error) error {
	return &ContentRejectedError{Err: err}
}

// IsRejected reports whether err carries a ContentRejectedError anywhere
// in its chain.
func IsRejected(err error) bool {
	var rejected *ContentRejectedError
	return errors.As(err, &rejected)
}

// StorageError marks an unrecoverable persistence failure. Unlike job
// failures it propagates to the run controller, which halts the run.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %v", e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Fatal wraps an error as an unrecoverable storage failure.
func Fatal(err error) error {
	return &StorageError{Err: err}
}

// IsFatal reports whether err carries a StorageError anywhere in its chain.
func IsFatal(err error) bool {
	var fatal *StorageError
	return errors.As(err, &fatal)
}
