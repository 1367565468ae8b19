package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
//
// ErrNotFoundOrExpired deliberately conflates "never existed" and "expired"
// for ephemeral records, so a caller cannot tell whether an email has a
// pending code. ErrNotFound is for durable resources (activities, staff
// accounts) where a 404 is the honest answer.
var (
	ErrValidation        = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrNotFoundOrExpired = errors.New("not found or expired")
	ErrCollision         = errors.New("key already holds a live record")
	ErrAttemptsExhausted = errors.New("attempts exhausted")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrDependency        = errors.New("dependency failure")
)

// RateLimitError carries the wait hint alongside ErrRateLimited so handlers
// can emit a Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
