package domain

import "time"

// Session is the server-side session record bound to the session cookie.
// The session id is regenerated on every successful credential check, before
// role and subject data are attached. Expiry is absolute: LoginAt plus the
// configured session TTL, never renewed by activity.
type Session struct {
	SessionID    string    `json:"id" dynamodbav:"session_id"`
	Role         Role      `json:"role" dynamodbav:"role"`
	SubjectID    string    `json:"subject_id" dynamodbav:"subject_id"`
	SubjectEmail string    `json:"subject_email,omitempty" dynamodbav:"subject_email"`
	ActivityID   string    `json:"activity_id,omitempty" dynamodbav:"activity_id"`
	LoginAt      time.Time `json:"login_at" dynamodbav:"login_at"`
}
