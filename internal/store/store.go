// Package store defines the keyed ephemeral record contract shared by all
// credential stores: TTL-keyed records with single-use and attempt-limited
// variants. Implementations: DynamoDB (production) or in-memory (local dev
// and tests).
package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Record wraps a payload with the lifecycle metadata every ephemeral
// credential shares. A record is live while now < ExpiresAt and, when
// MaxAttempts > 0, while Attempts < MaxAttempts.
type Record[P any] struct {
	Key         string    `json:"key" dynamodbav:"record_key"`
	Payload     P         `json:"payload" dynamodbav:"payload"`
	IssuedAt    time.Time `json:"issued_at" dynamodbav:"issued_at,unixtime"`
	ExpiresAt   time.Time `json:"expires_at" dynamodbav:"-"`
	SingleUse   bool      `json:"single_use" dynamodbav:"single_use"`
	Attempts    int       `json:"attempts" dynamodbav:"attempts"`
	MaxAttempts int       `json:"max_attempts" dynamodbav:"max_attempts"`
	LastUsedAt  time.Time `json:"last_used_at" dynamodbav:"last_used_at,unixtime"`
}

// IssueOptions controls record creation.
type IssueOptions struct {
	// Key is the explicit record key. Empty means generate a random one.
	Key string
	// TTL is the record lifetime. Required.
	TTL time.Duration
	// SingleUse marks the record for consumption by Consume.
	SingleUse bool
	// MaxAttempts bounds Fail calls; 0 means unlimited.
	MaxAttempts int
	// Replace overwrites any live record under an explicit key instead of
	// failing with ErrCollision.
	Replace bool
	// ReissueAfter is the minimum age a live record must reach before
	// Replace may overwrite it. A younger record makes Issue fail with a
	// domain.RateLimitError. The check runs under the same serialization as
	// the write, so two racing issuers cannot both pass it. Zero disables
	// the guard.
	ReissueAfter time.Duration
}

// Store is the concurrency contract all credential managers rely on: every
// operation on a given key is serialized with respect to other operations on
// that same key, so attempt counters are never lost and single-use records
// are never double-consumed.
type Store[P any] interface {
	// Issue creates a record and returns its key. With an explicit key and
	// Replace unset it fails with domain.ErrCollision when the key already
	// holds a live record.
	Issue(ctx context.Context, opts IssueOptions, payload P) (string, error)

	// Get returns the live record under key, or domain.ErrNotFoundOrExpired.
	Get(ctx context.Context, key string) (*Record[P], error)

	// Touch updates LastUsedAt monotonically without altering the TTL.
	Touch(ctx context.Context, key string) error

	// Consume atomically reads and deletes the record. Across all concurrent
	// callers at most one observes success for a given key; every other call
	// returns domain.ErrNotFoundOrExpired.
	Consume(ctx context.Context, key string) (*Record[P], error)

	// Fail records a failed use attempt and returns the remaining attempts.
	// The call that reaches MaxAttempts deletes the record and returns
	// domain.ErrAttemptsExhausted.
	Fail(ctx context.Context, key string) (remaining int, err error)

	// Sweep removes all expired records and returns how many were dropped.
	Sweep(ctx context.Context) (int, error)
}

// Sweeper is the subset of Store the background sweep loop needs, so stores
// of different payload types can share one ticker.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// NewKey generates a random 32-character hex record key.
func NewKey() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
