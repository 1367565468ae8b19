package apptoken

import (
	"context"
	"fmt"
	"time"

	"github.com/lab-access-api/internal/domain"
	"github.com/lab-access-api/internal/pkg/token"
	"github.com/lab-access-api/internal/store"
)

// SessionGetter loads an active session; an expired one comes back as an error.
type SessionGetter interface {
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
}

// ActivityDirectory resolves the activity whose close time gates validation.
type ActivityDirectory interface {
	Get(ctx context.Context, activityID string) (*domain.Activity, error)
}

type Issued struct {
	Token     string        `json:"token"`
	ExpiresIn time.Duration `json:"-"`
}

type Validated struct {
	Payload       *domain.AppToken `json:"payload"`
	TimeRemaining time.Duration    `json:"-"`
}

type Service interface {
	// Issue derives a token from an active student session.
	Issue(ctx context.Context, sessionID string) (*Issued, error)

	// Validate checks the token's own ttl AND the referenced activity's
	// close time: a token can be individually unexpired yet rejected once
	// its activity has closed. Success bumps lastUsedAt monotonically and
	// never extends the ttl.
	Validate(ctx context.Context, tok string) (*Validated, error)
}

type ServiceDeps struct {
	Tokens     store.Store[domain.AppToken]
	Sessions   SessionGetter
	Activities ActivityDirectory
	TokenTTL   time.Duration
	Now        func() time.Time // nil means time.Now
}

type service struct {
	tokens     store.Store[domain.AppToken]
	sessions   SessionGetter
	activities ActivityDirectory
	tokenTTL   time.Duration
	now        func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tokens:     deps.Tokens,
		sessions:   deps.Sessions,
		activities: deps.Activities,
		tokenTTL:   deps.TokenTTL,
		now:        now,
	}
}

func (s *service) Issue(ctx context.Context, sessionID string) (*Issued, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("no active session: %w", domain.ErrUnauthorized)
	}
	if sess.Role != domain.RoleStudent {
		return nil, fmt.Errorf("app tokens are for student sessions: %w", domain.ErrForbidden)
	}
	tok, err := token.NewAppToken()
	if err != nil {
		return nil, err
	}
	_, err = s.tokens.Issue(ctx, store.IssueOptions{
		Key: tok,
		TTL: s.tokenTTL,
	}, domain.AppToken{
		SessionID:    sess.SessionID,
		SubjectEmail: sess.SubjectEmail,
		ActivityID:   sess.ActivityID,
	})
	if err != nil {
		return nil, err
	}
	return &Issued{Token: tok, ExpiresIn: s.tokenTTL}, nil
}

func (s *service) Validate(ctx context.Context, tok string) (*Validated, error) {
	rec, err := s.tokens.Get(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)
	}
	act, err := s.activities.Get(ctx, rec.Payload.ActivityID)
	if err != nil {
		return nil, err
	}
	if act.Closed(s.now()) {
		return nil, fmt.Errorf("activity %q has closed: %w", act.ActivityID, domain.ErrForbidden)
	}
	if err := s.tokens.Touch(ctx, tok); err != nil {
		return nil, err
	}
	return &Validated{
		Payload:       &rec.Payload,
		TimeRemaining: rec.ExpiresAt.Sub(s.now()),
	}, nil
}
