package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lab-access-api/internal/domain"
)

// Memory is a mutex-guarded in-memory Store. One lock per store satisfies
// the per-key serialization contract at the expected load.
type Memory[P any] struct {
	mu      sync.Mutex
	records map[string]*Record[P]
	now     func() time.Time
}

// NewMemory creates an in-memory store. now may be nil, in which case
// time.Now is used; tests inject a fake clock through it.
func NewMemory[P any](now func() time.Time) *Memory[P] {
	if now == nil {
		now = time.Now
	}
	return &Memory[P]{
		records: make(map[string]*Record[P]),
		now:     now,
	}
}

func (m *Memory[P]) Issue(_ context.Context, opts IssueOptions, payload P) (string, error) {
	if opts.TTL <= 0 {
		return "", fmt.Errorf("ttl required: %w", domain.ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := opts.Key
	now := m.now()
	if key == "" {
		key = NewKey()
	} else if rec, ok := m.records[key]; ok && m.live(rec) {
		if !opts.Replace {
			return "", fmt.Errorf("issue %q: %w", key, domain.ErrCollision)
		}
		if age := now.Sub(rec.IssuedAt); opts.ReissueAfter > 0 && age < opts.ReissueAfter {
			return "", fmt.Errorf("issue %q: %w", key, &domain.RateLimitError{
				RetryAfter: opts.ReissueAfter - age,
			})
		}
	}
	m.records[key] = &Record[P]{
		Key:         key,
		Payload:     payload,
		IssuedAt:    now,
		ExpiresAt:   now.Add(opts.TTL),
		SingleUse:   opts.SingleUse,
		MaxAttempts: opts.MaxAttempts,
		LastUsedAt:  now,
	}
	return key, nil
}

func (m *Memory[P]) Get(_ context.Context, key string) (*Record[P], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, domain.ErrNotFoundOrExpired
	}
	if !m.live(rec) {
		delete(m.records, key)
		return nil, domain.ErrNotFoundOrExpired
	}
	cp := *rec
	return &cp, nil
}

func (m *Memory[P]) Touch(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok || !m.live(rec) {
		return domain.ErrNotFoundOrExpired
	}
	if now := m.now(); now.After(rec.LastUsedAt) {
		rec.LastUsedAt = now
	}
	return nil
}

func (m *Memory[P]) Consume(_ context.Context, key string) (*Record[P], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, domain.ErrNotFoundOrExpired
	}
	delete(m.records, key)
	if !m.live(rec) {
		return nil, domain.ErrNotFoundOrExpired
	}
	return rec, nil
}

func (m *Memory[P]) Fail(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok || !m.live(rec) {
		delete(m.records, key)
		return 0, domain.ErrNotFoundOrExpired
	}
	rec.Attempts++
	if rec.MaxAttempts > 0 && rec.Attempts >= rec.MaxAttempts {
		delete(m.records, key)
		return 0, domain.ErrAttemptsExhausted
	}
	if rec.MaxAttempts == 0 {
		return 0, nil
	}
	return rec.MaxAttempts - rec.Attempts, nil
}

func (m *Memory[P]) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := 0
	for key, rec := range m.records {
		if !m.live(rec) {
			delete(m.records, key)
			dropped++
		}
	}
	return dropped, nil
}

// live must be called with m.mu held.
func (m *Memory[P]) live(rec *Record[P]) bool {
	if m.now().After(rec.ExpiresAt) {
		return false
	}
	if rec.MaxAttempts > 0 && rec.Attempts >= rec.MaxAttempts {
		return false
	}
	return true
}
