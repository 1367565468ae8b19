package verification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lab-access-api/internal/domain"
	jwtinfra "github.com/lab-access-api/internal/infrastructure/jwt"
	"github.com/lab-access-api/internal/pkg/token"
	"github.com/lab-access-api/internal/pkg/validate"
	"github.com/lab-access-api/internal/store"
)

type RequestCodeInput struct {
	ActivityToken string `json:"activityToken" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Resend        bool   `json:"resend"`
}

type VerifyCodeInput struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// WrongCodeError reports a failed verification attempt together with how
// many attempts remain before the record locks.
type WrongCodeError struct {
	Remaining int
}

func (e *WrongCodeError) Error() string {
	return fmt.Sprintf("wrong code, %d attempts remaining", e.Remaining)
}

func (e *WrongCodeError) Unwrap() error { return domain.ErrUnauthorized }

// ActivityDirectory resolves activities; the lab platform owns the data.
type ActivityDirectory interface {
	Get(ctx context.Context, activityID string) (*domain.Activity, error)
}

// Notifier delivers the code email.
type Notifier interface {
	SendEmail(to, subject, htmlBody string) error
}

// TokenVerifier checks activity token signatures.
type TokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

type Service interface {
	// Request issues a 6-digit code for the email and mails it. A live code
	// younger than the resend window blocks re-issuance unless resend is set.
	Request(ctx context.Context, req RequestCodeInput) (expiresIn time.Duration, err error)

	// Verify consumes the code and returns its payload. A wrong code returns
	// *WrongCodeError until the attempt limit locks and deletes the record;
	// afterwards even the correct code gets domain.ErrNotFoundOrExpired.
	Verify(ctx context.Context, req VerifyCodeInput) (*domain.VerificationCode, error)
}

// ServiceDeps bundles the collaborators for NewService.
type ServiceDeps struct {
	Codes        store.Store[domain.VerificationCode]
	Activities   ActivityDirectory
	Notifier     Notifier
	Tokens       TokenVerifier
	CodeTTL      time.Duration
	ResendWindow time.Duration
	MaxAttempts  int
	Now          func() time.Time // nil means time.Now
}

type service struct {
	codes        store.Store[domain.VerificationCode]
	activities   ActivityDirectory
	notifier     Notifier
	tokens       TokenVerifier
	codeTTL      time.Duration
	resendWindow time.Duration
	maxAttempts  int
	now          func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		codes:        deps.Codes,
		activities:   deps.Activities,
		notifier:     deps.Notifier,
		tokens:       deps.Tokens,
		codeTTL:      deps.CodeTTL,
		resendWindow: deps.ResendWindow,
		maxAttempts:  deps.MaxAttempts,
		now:          now,
	}
}

func (s *service) Request(ctx context.Context, req RequestCodeInput) (time.Duration, error) {
	if err := validate.Struct(req); err != nil {
		return 0, fmt.Errorf("%s: %w", err, domain.ErrValidation)
	}
	claims, err := s.tokens.Verify(req.ActivityToken)
	if err != nil {
		return 0, fmt.Errorf("invalid activity token: %w", domain.ErrValidation)
	}
	act, err := s.activities.Get(ctx, claims.ActivityID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	if act.Closed(now) {
		return 0, fmt.Errorf("activity %q is closed: %w", act.ActivityID, domain.ErrForbidden)
	}
	if !act.Admits(req.Email) {
		return 0, fmt.Errorf("email not admitted to activity: %w", domain.ErrForbidden)
	}

	code, err := token.NewCode()
	if err != nil {
		return 0, err
	}
	payload := domain.VerificationCode{
		Email:         req.Email,
		Code:          code,
		ActivityID:    act.ActivityID,
		ActivityToken: req.ActivityToken,
	}
	// The resend throttle is the store's reissue guard: a live code younger
	// than the window blocks the overwrite under the store's own
	// serialization, so racing requests cannot both slip past it. An
	// explicit resend disables the guard.
	window := s.resendWindow
	if req.Resend {
		window = 0
	}
	_, err = s.codes.Issue(ctx, store.IssueOptions{
		Key:          req.Email,
		TTL:          s.codeTTL,
		SingleUse:    true,
		MaxAttempts:  s.maxAttempts,
		Replace:      true,
		ReissueAfter: window,
	}, payload)
	if err != nil {
		return 0, err
	}

	body := fmt.Sprintf(
		"<p>Your access code for <b>%s</b> is:</p><h2>%s</h2><p>It expires in %d minutes.</p>",
		act.Name, code, int(s.codeTTL.Minutes()),
	)
	if err := s.notifier.SendEmail(req.Email, "Lab access code", body); err != nil {
		// A code nobody received is not an issuance. Drop it so the client
		// can retry without waiting out the resend window.
		if _, cerr := s.codes.Consume(ctx, req.Email); cerr != nil {
			slog.Warn("failed to drop undelivered code", "email", req.Email, "err", cerr)
		}
		return 0, fmt.Errorf("code delivery failed: %w", domain.ErrDependency)
	}
	return s.codeTTL, nil
}

func (s *service) Verify(ctx context.Context, req VerifyCodeInput) (*domain.VerificationCode, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err, domain.ErrValidation)
	}
	rec, err := s.codes.Get(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if rec.Payload.Code != req.Code {
		remaining, err := s.codes.Fail(ctx, req.Email)
		if err != nil {
			return nil, err
		}
		return nil, &WrongCodeError{Remaining: remaining}
	}
	// Consume settles the race between concurrent correct submissions:
	// at most one wins.
	consumed, err := s.codes.Consume(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	return &consumed.Payload, nil
}
