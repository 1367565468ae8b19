package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lab-access-api/internal/domain"
	"github.com/lab-access-api/internal/store"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockLimiter struct{ mock.Mock }

func (m *mockLimiter) Allow(action, clientID string) (bool, time.Duration) {
	args := m.Called(action, clientID)
	return args.Bool(0), args.Get(1).(time.Duration)
}

func (m *mockLimiter) Reset(action, clientID string) {
	m.Called(action, clientID)
}

// --- clock ---

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

// --- fixture ---

const clientIP = "10.0.0.9"

type fixture struct {
	clock   *fakeClock
	users   *mockUserStore
	limiter *mockLimiter
	svc     Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:   newFakeClock(),
		users:   &mockUserStore{},
		limiter: &mockLimiter{},
	}
	f.svc = NewService(ServiceDeps{
		Sessions:   store.NewMemory[domain.Session](f.clock.Now),
		Users:      f.users,
		Limiter:    f.limiter,
		SessionTTL: 2 * time.Hour,
		Now:        f.clock.Now,
	})
	return f
}

func staffUser(t *testing.T, role domain.Role, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		UserID:       "usr-1",
		Email:        "prof@uni.edu",
		Name:         "Prof",
		PasswordHash: string(hash),
		Role:         role,
		Enable:       true,
	}
}

// --- LoginStaff ---

func TestLoginStaff_Success(t *testing.T) {
	f := newFixture(t)
	f.limiter.On("Allow", RateAction, clientIP).Return(true, time.Duration(0))
	f.limiter.On("Reset", RateAction, clientIP).Return()
	f.users.On("GetByEmail", mock.Anything, "prof@uni.edu").
		Return(staffUser(t, domain.RoleProfessor, "s3cret"), nil)

	sess, err := f.svc.LoginStaff(context.Background(), LoginRequest{
		Email:    "prof@uni.edu",
		Password: "s3cret",
	}, clientIP)

	require.NoError(t, err)
	assert.NotEmpty(t, sess.SessionID)
	assert.Equal(t, domain.RoleProfessor, sess.Role)
	assert.Equal(t, "usr-1", sess.SubjectID)
	f.limiter.AssertCalled(t, "Reset", RateAction, clientIP)

	got, err := f.svc.Get(context.Background(), sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, sess.SessionID, got.SessionID)
}

func TestLoginStaff_WrongPassword(t *testing.T) {
	f := newFixture(t)
	f.limiter.On("Allow", RateAction, clientIP).Return(true, time.Duration(0))
	f.users.On("GetByEmail", mock.Anything, "prof@uni.edu").
		Return(staffUser(t, domain.RoleProfessor, "s3cret"), nil)

	_, err := f.svc.LoginStaff(context.Background(), LoginRequest{
		Email:    "prof@uni.edu",
		Password: "nope",
	}, clientIP)

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	f.limiter.AssertNotCalled(t, "Reset", mock.Anything, mock.Anything)
}

func TestLoginStaff_UnknownEmail(t *testing.T) {
	f := newFixture(t)
	f.limiter.On("Allow", RateAction, clientIP).Return(true, time.Duration(0))
	f.users.On("GetByEmail", mock.Anything, "ghost@uni.edu").Return(nil, domain.ErrNotFound)

	_, err := f.svc.LoginStaff(context.Background(), LoginRequest{
		Email:    "ghost@uni.edu",
		Password: "whatever",
	}, clientIP)

	// Unknown email and wrong password are indistinguishable to the caller.
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLoginStaff_DisabledAccount(t *testing.T) {
	f := newFixture(t)
	u := staffUser(t, domain.RoleProfessor, "s3cret")
	u.Enable = false
	f.limiter.On("Allow", RateAction, clientIP).Return(true, time.Duration(0))
	f.users.On("GetByEmail", mock.Anything, "prof@uni.edu").Return(u, nil)

	_, err := f.svc.LoginStaff(context.Background(), LoginRequest{
		Email:    "prof@uni.edu",
		Password: "s3cret",
	}, clientIP)

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLoginStaff_StudentRoleRejected(t *testing.T) {
	f := newFixture(t)
	f.limiter.On("Allow", RateAction, clientIP).Return(true, time.Duration(0))
	f.users.On("GetByEmail", mock.Anything, "prof@uni.edu").
		Return(staffUser(t, domain.RoleStudent, "s3cret"), nil)

	_, err := f.svc.LoginStaff(context.Background(), LoginRequest{
		Email:    "prof@uni.edu",
		Password: "s3cret",
	}, clientIP)

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestLoginStaff_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.limiter.On("Allow", RateAction, clientIP).Return(false, 10*time.Minute)

	_, err := f.svc.LoginStaff(context.Background(), LoginRequest{
		Email:    "prof@uni.edu",
		Password: "s3cret",
	}, clientIP)

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	f.users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

// --- CreateStudent ---

func TestCreateStudent_RegeneratesSessionID(t *testing.T) {
	f := newFixture(t)

	a, err := f.svc.CreateStudent(context.Background(), "ana@uni.edu", "ana@uni.edu", "act-1")
	require.NoError(t, err)
	b, err := f.svc.CreateStudent(context.Background(), "ana@uni.edu", "ana@uni.edu", "act-1")
	require.NoError(t, err)

	assert.NotEmpty(t, a.SessionID)
	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.Equal(t, domain.RoleStudent, a.Role)
	assert.Equal(t, "act-1", a.ActivityID)
}

// --- Get / Destroy ---

func TestGet_AbsoluteTimeout(t *testing.T) {
	f := newFixture(t)
	sess, err := f.svc.CreateStudent(context.Background(), "ana@uni.edu", "ana@uni.edu", "act-1")
	require.NoError(t, err)

	// Activity inside the window does not extend the lifetime.
	f.clock.Advance(time.Hour)
	_, err = f.svc.Get(context.Background(), sess.SessionID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour + time.Second)
	_, err = f.svc.Get(context.Background(), sess.SessionID)
	assert.ErrorIs(t, err, domain.ErrNotFoundOrExpired)
}

func TestDestroy_RemovesSession(t *testing.T) {
	f := newFixture(t)
	sess, err := f.svc.CreateStudent(context.Background(), "ana@uni.edu", "ana@uni.edu", "act-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Destroy(context.Background(), sess.SessionID))
	_, err = f.svc.Get(context.Background(), sess.SessionID)
	assert.ErrorIs(t, err, domain.ErrNotFoundOrExpired)
}
