package domain

// VerificationCode is the payload of a pending email verification, keyed by
// the email address. Attempt counting, TTL and single-use consumption live
// on the surrounding ephemeral record.
type VerificationCode struct {
	Email         string `json:"email" dynamodbav:"email"`
	Code          string `json:"-" dynamodbav:"code"` // 6 digits
	ActivityID    string `json:"activity_id" dynamodbav:"activity_id"`
	ActivityToken string `json:"-" dynamodbav:"activity_token"`
}
