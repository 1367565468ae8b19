package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lab-access-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a mutable clock for simulated-time tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestIssueAndGet(t *testing.T) {
	clk := newFakeClock()
	s := NewMemory[string](clk.Now)

	key, err := s.Issue(context.Background(), IssueOptions{TTL: time.Minute}, "hello")
	require.NoError(t, err)
	require.NotEmpty(t, key)

	rec, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "hello", rec.Payload)
	assert.Equal(t, clk.Now(), rec.IssuedAt)
	assert.Equal(t, clk.Now().Add(time.Minute), rec.ExpiresAt)
}

func TestIssue_ExplicitKeyCollision(t *testing.T) {
	s := NewMemory[string](nil)

	_, err := s.Issue(context.Background(), IssueOptions{Key: "k", TTL: time.Minute}, "a")
	require.NoError(t, err)

	_, err = s.Issue(context.Background(), IssueOptions{Key: "k", TTL: time.Minute}, "b")
	assert.ErrorIs(t, err, domain.ErrCollision)
}

func TestIssue_ReplaceOverwritesLiveRecord(t *testing.T) {
	s := NewMemory[string](nil)

	_, err := s.Issue(context.Background(), IssueOptions{Key: "k", TTL: time.Minute}, "a")
	require.NoError(t, err)
	_, err = s.Issue(context.Background(), IssueOptions{Key: "k", TTL: time.Minute, Replace: true}, "b")
	require.NoError(t, err)

	rec, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "b", rec.Payload)
	assert.Zero(t, rec.Attempts)
}

func TestIssue_ReissueGuardBlocksYoungRecord(t *testing.T) {
	clk := newFakeClock()
	s := NewMemory[string](clk.Now)
	opts := IssueOptions{Key: "k", TTL: 20 * time.Minute, Replace: true, ReissueAfter: time.Minute}

	_, err := s.Issue(context.Background(), opts, "a")
	require.NoError(t, err)

	clk.Advance(30 * time.Second)
	_, err = s.Issue(context.Background(), opts, "b")
	require.ErrorIs(t, err, domain.ErrRateLimited)

	var rl *domain.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 30*time.Second, rl.RetryAfter)

	// The blocked overwrite left the original record untouched.
	rec, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "a", rec.Payload)

	clk.Advance(31 * time.Second)
	_, err = s.Issue(context.Background(), opts, "b")
	require.NoError(t, err)
}

func TestIssue_ReissueGuardIgnoresExpiredRecord(t *testing.T) {
	clk := newFakeClock()
	s := NewMemory[string](clk.Now)

	_, err := s.Issue(context.Background(), IssueOptions{Key: "k", TTL: time.Minute}, "a")
	require.NoError(t, err)
	clk.Advance(2 * time.Minute)

	_, err = s.Issue(context.Background(), IssueOptions{
		Key: "k", TTL: time.Minute, Replace: true, ReissueAfter: time.Hour,
	}, "b")
	assert.NoError(t, err)
}

func TestIssue_ZeroReissueWindowReplacesImmediately(t *testing.T) {
	s := NewMemory[string](nil)
	opts := IssueOptions{Key: "k", TTL: time.Minute, Replace: true}

	_, err := s.Issue(context.Background(), opts, "a")
	require.NoError(t, err)
	_, err = s.Issue(context.Background(), opts, "b")
	require.NoError(t, err)

	rec, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "b", rec.Payload)
}

func TestIssue_ExpiredRecordDoesNotCollide(t *testing.T) {
	clk := newFakeClock()
	s := NewMemory[string](clk.Now)

	_, err := s.Issue(context.Background(), IssueOptions{Key: "k", TTL: time.Minute}, "a")
	require.NoError(t, err)
	clk.Advance(2 * time.Minute)

	_, err = s.Issue(context.Background(), IssueOptions{Key: "k", TTL: time.Minute}, "b")
	require.NoError(t, err)
}

func TestGet_ExpiredRecordIsRemoved(t *testing.T) {
	clk := newFakeClock()
	s := NewMemory[string](clk.Now)

	_, err := s.Issue(context.Background(), IssueOptions{Key: "k", TTL: 300 * time.Second}, "a")
	require.NoError(t, err)

	clk.Advance(301 * time.Second)
	_, err = s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrExpired)

	// The record is gone, so the key is free again.
	_, err = s.Issue(context.Background(), IssueOptions{Key: "k", TTL: time.Minute}, "b")
	require.NoError(t, err)
}

func TestConsume_ExactlyOnce(t *testing.T) {
	s := NewMemory[string](nil)
	_, err := s.Issue(context.Background(), IssueOptions{Key: "k", TTL: time.Minute, SingleUse: true}, "a")
	require.NoError(t, err)

	rec, err := s.Consume(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "a", rec.Payload)

	_, err = s.Consume(context.Background(), "k")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrExpired)
}

func TestConsume_ConcurrentCallers_AtMostOneSuccess(t *testing.T) {
	s := NewMemory[int](nil)
	_, err := s.Issue(context.Background(), IssueOptions{Key: "k", TTL: time.Minute, SingleUse: true}, 42)
	require.NoError(t, err)

	const callers = 64
	var wg sync.WaitGroup
	successes := make(chan int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Consume(context.Background(), "k"); err == nil {
				successes <- 1
			}
		}()
	}
	wg.Wait()
	close(successes)

	total := 0
	for n := range successes {
		total += n
	}
	assert.Equal(t, 1, total)
}

func TestConsume_Expired(t *testing.T) {
	clk := newFakeClock()
	s := NewMemory[string](clk.Now)
	_, err := s.Issue(context.Background(), IssueOptions{Key: "k", TTL: time.Minute, SingleUse: true}, "a")
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = s.Consume(context.Background(), "k")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrExpired)
}

func TestTouch_MonotonicAndDoesNotExtendTTL(t *testing.T) {
	clk := newFakeClock()
	s := NewMemory[string](clk.Now)
	_, err := s.Issue(context.Background(), IssueOptions{Key: "k", TTL: time.Minute}, "a")
	require.NoError(t, err)

	before, err := s.Get(context.Background(), "k")
	require.NoError(t, err)

	clk.Advance(10 * time.Second)
	require.NoError(t, s.Touch(context.Background(), "k"))

	after, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, after.LastUsedAt.After(before.LastUsedAt))
	assert.Equal(t, before.ExpiresAt, after.ExpiresAt)
}

func TestFail_CountsDownAndLocks(t *testing.T) {
	s := NewMemory[string](nil)
	_, err := s.Issue(context.Background(), IssueOptions{Key: "k", TTL: time.Minute, MaxAttempts: 5}, "a")
	require.NoError(t, err)

	for want := 4; want >= 1; want-- {
		remaining, err := s.Fail(context.Background(), "k")
		require.NoError(t, err)
		assert.Equal(t, want, remaining)
	}

	remaining, err := s.Fail(context.Background(), "k")
	assert.ErrorIs(t, err, domain.ErrAttemptsExhausted)
	assert.Zero(t, remaining)

	// The lock deleted the record: a later consume with the "correct" key fails.
	_, err = s.Consume(context.Background(), "k")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrExpired)
}

func TestFail_ConcurrentCallers_NeverExceedsMax(t *testing.T) {
	s := NewMemory[string](nil)
	_, err := s.Issue(context.Background(), IssueOptions{Key: "k", TTL: time.Minute, MaxAttempts: 5}, "a")
	require.NoError(t, err)

	const callers = 32
	var wg sync.WaitGroup
	exhausted := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Fail(context.Background(), "k"); errors.Is(err, domain.ErrAttemptsExhausted) {
				exhausted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(exhausted)

	// Exactly one caller observes the transition to exhausted.
	assert.Len(t, exhausted, 1)
	_, err = s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrExpired)
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	clk := newFakeClock()
	s := NewMemory[string](clk.Now)

	_, err := s.Issue(context.Background(), IssueOptions{Key: "short", TTL: time.Minute}, "a")
	require.NoError(t, err)
	_, err = s.Issue(context.Background(), IssueOptions{Key: "long", TTL: time.Hour}, "b")
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	dropped, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)

	_, err = s.Get(context.Background(), "long")
	assert.NoError(t, err)
}
