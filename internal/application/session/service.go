package session

import (
	"context"
	"fmt"
	"time"

	"github.com/lab-access-api/internal/domain"
	"github.com/lab-access-api/internal/pkg/id"
	"github.com/lab-access-api/internal/pkg/validate"
	"github.com/lab-access-api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// RateAction is the limiter action key for staff logins; a successful login
// resets the counter for that client.
const RateAction = "staff-login"

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserStore looks up staff credentials.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// LoginLimiter is the failed-login budget per client.
type LoginLimiter interface {
	Allow(action, clientID string) (bool, time.Duration)
	Reset(action, clientID string)
}

type Service interface {
	// CreateStudent opens a student session after a verified code. The
	// session id is always freshly generated here, never taken from the
	// caller.
	CreateStudent(ctx context.Context, email, rut, activityID string) (*domain.Session, error)

	// LoginStaff checks staff credentials and opens an admin or professor
	// session. clientID feeds the failed-login limiter.
	LoginStaff(ctx context.Context, req LoginRequest, clientID string) (*domain.Session, error)

	// Get returns the session when it is still inside its absolute lifetime.
	// An expired session has already been destroyed server-side; callers
	// treat the error as unauthenticated.
	Get(ctx context.Context, sessionID string) (*domain.Session, error)

	// Destroy removes the session server-side.
	Destroy(ctx context.Context, sessionID string) error

	// TTL exposes the configured absolute session lifetime.
	TTL() time.Duration
}

type ServiceDeps struct {
	Sessions   store.Store[domain.Session]
	Users      UserStore
	Limiter    LoginLimiter
	SessionTTL time.Duration
	Now        func() time.Time // nil means time.Now
}

type service struct {
	sessions   store.Store[domain.Session]
	users      UserStore
	limiter    LoginLimiter
	sessionTTL time.Duration
	now        func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		sessions:   deps.Sessions,
		users:      deps.Users,
		limiter:    deps.Limiter,
		sessionTTL: deps.SessionTTL,
		now:        now,
	}
}

func (s *service) CreateStudent(ctx context.Context, email, rut, activityID string) (*domain.Session, error) {
	return s.create(ctx, domain.Session{
		Role:         domain.RoleStudent,
		SubjectID:    rut,
		SubjectEmail: email,
		ActivityID:   activityID,
	})
}

func (s *service) LoginStaff(ctx context.Context, req LoginRequest, clientID string) (*domain.Session, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err, domain.ErrValidation)
	}
	if ok, retryAfter := s.limiter.Allow(RateAction, clientID); !ok {
		return nil, fmt.Errorf("too many login attempts: %w", &domain.RateLimitError{RetryAfter: retryAfter})
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if !u.Enable {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if u.Role != domain.RoleAdmin && u.Role != domain.RoleProfessor {
		return nil, fmt.Errorf("role %q cannot log in with a password: %w", u.Role, domain.ErrForbidden)
	}
	// Successful privileged action: the client's failed-login budget resets.
	s.limiter.Reset(RateAction, clientID)

	return s.create(ctx, domain.Session{
		Role:         u.Role,
		SubjectID:    u.UserID,
		SubjectEmail: u.Email,
	})
}

func (s *service) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	rec, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// The store's ttl already encodes the absolute timeout (it is never
	// extended), but the explicit re-check keeps the invariant local.
	if s.now().Sub(rec.Payload.LoginAt) > s.sessionTTL {
		_, _ = s.sessions.Consume(ctx, sessionID)
		return nil, domain.ErrNotFoundOrExpired
	}
	return &rec.Payload, nil
}

func (s *service) Destroy(ctx context.Context, sessionID string) error {
	_, err := s.sessions.Consume(ctx, sessionID)
	return err
}

func (s *service) TTL() time.Duration { return s.sessionTTL }

// create regenerates the session identifier before attaching role and
// subject data.
func (s *service) create(ctx context.Context, sess domain.Session) (*domain.Session, error) {
	if !sess.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", sess.Role, domain.ErrValidation)
	}
	sess.SessionID = id.New()
	sess.LoginAt = s.now().UTC()
	_, err := s.sessions.Issue(ctx, store.IssueOptions{
		Key: sess.SessionID,
		TTL: s.sessionTTL,
	}, sess)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}
