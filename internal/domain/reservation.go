package domain

// Reservation pre-allocates an upload id ahead of a student submission.
// Keyed by the upload id; single-use, consumed exactly once by a successful
// upload or swept on expiry. Repeated reservations for the same
// (activity, rut) pair are allowed: a retry after a failed upload must not
// be blocked by an earlier still-live reservation.
type Reservation struct {
	UploadID   string `json:"upload_id" dynamodbav:"upload_id"`
	ActivityID string `json:"activity_id" dynamodbav:"activity_id"`
	StudentRut string `json:"student_rut" dynamodbav:"student_rut"`
}
