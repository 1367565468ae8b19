package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lab-access-api/internal/domain"
	"github.com/lab-access-api/internal/transport/http/middleware"
)

func TestLogin_SetsSessionCookie(t *testing.T) {
	sessions := &mockSessionSvc{}
	sessions.On("LoginStaff", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.Session{
			SessionID: "sess-7",
			Role:      domain.RoleProfessor,
			SubjectID: "usr-1",
		}, nil)
	sessions.On("TTL").Return(2 * time.Hour)

	h := NewSessionHandler(sessions)
	rr := postJSON(t, h.Login, map[string]any{
		"email":    "prof@uni.edu",
		"password": "s3cret",
	})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "sess-7", decode(t, rr)["session_id"])

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.CookieName, cookies[0].Name)
	assert.Equal(t, "sess-7", cookies[0].Value)
}

func TestLogin_RateLimitedAnswersRetryAfter(t *testing.T) {
	sessions := &mockSessionSvc{}
	sessions.On("LoginStaff", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("too many login attempts: %w", &domain.RateLimitError{
			RetryAfter: 10 * time.Minute,
		}))

	h := NewSessionHandler(sessions)
	rr := postJSON(t, h.Login, map[string]any{
		"email":    "prof@uni.edu",
		"password": "s3cret",
	})

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "600", rr.Header().Get("Retry-After"))
}

func TestLogin_BadCredentials(t *testing.T) {
	sessions := &mockSessionSvc{}
	sessions.On("LoginStaff", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrUnauthorized)

	h := NewSessionHandler(sessions)
	rr := postJSON(t, h.Login, map[string]any{
		"email":    "prof@uni.edu",
		"password": "wrong",
	})

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
