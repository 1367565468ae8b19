package domain

// DesktopToken is the long-lived, directly-requested token tied to one
// subject. At most one is ever concurrently valid per subject; issuing a
// new one revokes the previous. The token string is short alphanumeric,
// which is why its validation endpoint is rate limited.
type DesktopToken struct {
	SubjectID string `json:"subject_id" dynamodbav:"subject_id"`
	Role      Role   `json:"role" dynamodbav:"role"`
}
