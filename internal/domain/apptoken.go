package domain

// AppToken is the medium-lived token a polling desktop client derives from
// an active student session. Keyed by the opaque token string.
type AppToken struct {
	SessionID    string `json:"session_id" dynamodbav:"session_id"`
	SubjectEmail string `json:"subject_email" dynamodbav:"subject_email"`
	ActivityID   string `json:"activity_id" dynamodbav:"activity_id"`
}
