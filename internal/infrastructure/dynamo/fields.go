package dynamo

// DynamoDB attribute names used in expressions across the package.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldRecordKey   = "record_key"
	fieldExpiresAt   = "expires_at"
	fieldAttempts    = "attempts"
	fieldMaxAttempts = "max_attempts"
	fieldLastUsedAt  = "last_used_at"
)
