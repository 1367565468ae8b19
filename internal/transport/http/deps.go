package http

import (
	"context"
	"io"

	"github.com/lab-access-api/internal/application/verification"
	"github.com/lab-access-api/internal/domain"
	"github.com/lab-access-api/internal/infrastructure/smtp"
	"github.com/lab-access-api/internal/store"
)

// ActivityDirectory is the minimal interface the router requires from the
// activity catalog.
type ActivityDirectory interface {
	Get(ctx context.Context, activityID string) (*domain.Activity, error)
}

// UserStore is the minimal interface the router requires from the staff
// credential store.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// UploadSink is the minimal interface the router requires from the object
// storage backend.
type UploadSink interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

// Deps holds all infrastructure dependencies for the router. The stores may
// be DynamoDB-backed or in-memory; the router does not care which.
type Deps struct {
	Sessions      store.Store[domain.Session]
	Codes         store.Store[domain.VerificationCode]
	Reservations  store.Store[domain.Reservation]
	AppTokens     store.Store[domain.AppToken]
	DesktopTokens store.Store[domain.DesktopToken]
	DesktopIndex  store.Store[string]

	Activities ActivityDirectory
	Users      UserStore
	Sink       UploadSink
	Mailer     smtp.Mailer
	Tokens     verification.TokenVerifier
}
