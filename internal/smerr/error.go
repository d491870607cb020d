// Package smerr defines error types shared between submerge workflows.
package smerr

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoCommonAncestor is returned when two commit histories share no
// contiguous run of commits.
var ErrNoCommonAncestor = errors.New("no common ancestor found")

// ErrBranchExists is returned before any destructive action when a branch
// that a workflow wants to create already exists.
var ErrBranchExists = errors.New("branch already exists")

type RetryableError struct {
	// Err is the wrapped original error
	Err error
	// After is the earliest point in time that the operation can be retried
	After time.Time
}

func NewRetryableError(originalErr error, retryAfter time.Time) *RetryableError {
	return &RetryableError{
		Err:   originalErr,
		After: retryAfter,
	}
}

func NewRetryableAnytimeError(originalErr error) *RetryableError {
	return &RetryableError{
		Err: originalErr,
	}
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

func (e *RetryableError) Error() string {
	if e.After.IsZero() {
		return fmt.Sprintf("retryable error: %s", e.Err)
	}

	return fmt.Sprintf("retryable error (after %s): %s", e.After, e.Err)
}
