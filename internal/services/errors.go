package services

import "errors"

var (
	// ErrNoUser is returned by operations that need a signed-in user.
	ErrNoUser = errors.New("no user is signed in")
	// ErrNotFound marks a missing record; callers treat it as "absent", not as a failure.
	ErrNotFound = errors.New("not found")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }
