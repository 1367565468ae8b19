package reservation

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/lab-access-api/internal/domain"
	"github.com/lab-access-api/internal/pkg/token"
	"github.com/lab-access-api/internal/store"
)

// UploadFile is one submitted file. The sink owns what happens to the bytes.
type UploadFile struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// UploadSink receives the bytes of a consumed reservation.
type UploadSink interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

type Issued struct {
	UploadID  string    `json:"upload_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service interface {
	// Issue pre-allocates an upload id for the pair. Repeated calls for the
	// same pair produce independent reservations: a retry after a failed
	// upload must not be blocked by an earlier still-live reservation.
	Issue(ctx context.Context, activityID, studentRut string) (*Issued, error)

	// Consume redeems the reservation exactly once and stores the files
	// under the reserved id.
	Consume(ctx context.Context, uploadID string, files []UploadFile) (*domain.Reservation, error)
}

type ServiceDeps struct {
	Reservations store.Store[domain.Reservation]
	Sink         UploadSink
	TTL          time.Duration
	Now          func() time.Time // nil means time.Now
}

type service struct {
	reservations store.Store[domain.Reservation]
	sink         UploadSink
	ttl          time.Duration
	now          func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		reservations: deps.Reservations,
		sink:         deps.Sink,
		ttl:          deps.TTL,
		now:          now,
	}
}

func (s *service) Issue(ctx context.Context, activityID, studentRut string) (*Issued, error) {
	if activityID == "" || studentRut == "" {
		return nil, fmt.Errorf("activity id and student rut required: %w", domain.ErrValidation)
	}
	uploadID := token.NewUploadID(activityID, studentRut)
	_, err := s.reservations.Issue(ctx, store.IssueOptions{
		Key:       uploadID,
		TTL:       s.ttl,
		SingleUse: true,
	}, domain.Reservation{
		UploadID:   uploadID,
		ActivityID: activityID,
		StudentRut: studentRut,
	})
	if err != nil {
		return nil, err
	}
	return &Issued{UploadID: uploadID, ExpiresAt: s.now().Add(s.ttl)}, nil
}

func (s *service) Consume(ctx context.Context, uploadID string, files []UploadFile) (*domain.Reservation, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("at least one file required: %w", domain.ErrValidation)
	}
	rec, err := s.reservations.Consume(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		key := fmt.Sprintf("uploads/%s/%s", uploadID, f.Name)
		if _, err := s.sink.Upload(ctx, key, f.Body, f.ContentType); err != nil {
			// The reservation stays consumed; the client re-issues and
			// retries with the new upload id.
			return nil, fmt.Errorf("store %s: %w", f.Name, domain.ErrDependency)
		}
	}
	return &rec.Payload, nil
}
