package desktoptoken

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lab-access-api/internal/domain"
	"github.com/lab-access-api/internal/pkg/token"
	"github.com/lab-access-api/internal/store"
)

// SessionGetter loads an active session.
type SessionGetter interface {
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
}

type Issued struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service interface {
	// Issue creates a fresh token for the session's subject and points the
	// subject index at it, displacing any predecessor.
	Issue(ctx context.Context, sessionID string) (*Issued, error)

	// Validate resolves the token to its subject and bumps lastUsedAt. The
	// subject index is authoritative: a token record is accepted only while
	// the index still points at it, so at most one token per subject is
	// ever concurrently valid even when two Issue calls race. Displaced
	// records are deleted here as a side effect.
	Validate(ctx context.Context, tok string) (*domain.DesktopToken, error)
}

type ServiceDeps struct {
	// Tokens holds the token records keyed by token string; Index maps a
	// subject id to its one live token. The index write in Issue is the
	// linearization point for single-liveness.
	Tokens   store.Store[domain.DesktopToken]
	Index    store.Store[string]
	Sessions SessionGetter
	TokenTTL time.Duration
}

type service struct {
	tokens   store.Store[domain.DesktopToken]
	index    store.Store[string]
	sessions SessionGetter
	tokenTTL time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		tokens:   deps.Tokens,
		index:    deps.Index,
		sessions: deps.Sessions,
		tokenTTL: deps.TokenTTL,
	}
}

func (s *service) Issue(ctx context.Context, sessionID string) (*Issued, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("no active session: %w", domain.ErrUnauthorized)
	}
	if sess.Role != domain.RoleStudent {
		return nil, fmt.Errorf("desktop tokens are for student sessions: %w", domain.ErrForbidden)
	}

	tok, err := token.NewDesktopToken()
	if err != nil {
		return nil, err
	}
	_, err = s.tokens.Issue(ctx, store.IssueOptions{
		Key: tok,
		TTL: s.tokenTTL,
	}, domain.DesktopToken{
		SubjectID: sess.SubjectID,
		Role:      sess.Role,
	})
	if err != nil {
		return nil, err
	}

	// Drop the predecessor's record. Validity does not depend on this
	// cleanup: Validate rejects any record the index no longer points at.
	if prev, err := s.index.Consume(ctx, sess.SubjectID); err == nil {
		if _, err := s.tokens.Consume(ctx, prev.Payload); err != nil && !errors.Is(err, domain.ErrNotFoundOrExpired) {
			slog.Warn("failed to drop displaced desktop token", "subject", sess.SubjectID, "err", err)
		}
	} else if !errors.Is(err, domain.ErrNotFoundOrExpired) {
		s.rollback(ctx, sess.SubjectID, tok)
		return nil, err
	}

	if _, err := s.index.Issue(ctx, store.IssueOptions{
		Key:     sess.SubjectID,
		TTL:     s.tokenTTL,
		Replace: true,
	}, tok); err != nil {
		s.rollback(ctx, sess.SubjectID, tok)
		return nil, err
	}

	return &Issued{Token: tok, ExpiresAt: time.Now().UTC().Add(s.tokenTTL)}, nil
}

func (s *service) Validate(ctx context.Context, tok string) (*domain.DesktopToken, error) {
	rec, err := s.tokens.Get(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)
	}
	idx, err := s.index.Get(ctx, rec.Payload.SubjectID)
	if err != nil || idx.Payload != tok {
		// Displaced by a later Issue (or the index record raced away).
		// The orphaned record only wastes space now; delete it.
		if _, derr := s.tokens.Consume(ctx, tok); derr != nil && !errors.Is(derr, domain.ErrNotFoundOrExpired) {
			slog.Warn("failed to drop displaced desktop token", "err", derr)
		}
		return nil, fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)
	}
	if err := s.tokens.Touch(ctx, tok); err != nil {
		return nil, err
	}
	return &rec.Payload, nil
}

// rollback removes a token record that never made it into the index; without
// an index entry it could never validate, only linger until its ttl.
func (s *service) rollback(ctx context.Context, subjectID, tok string) {
	if _, err := s.tokens.Consume(ctx, tok); err != nil && !errors.Is(err, domain.ErrNotFoundOrExpired) {
		slog.Warn("failed to roll back desktop token", "subject", subjectID, "err", err)
	}
}
