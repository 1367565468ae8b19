package domain

import "time"

// Activity is the read-only slice of an activity this service needs:
// its time window and access rules. Activity CRUD lives elsewhere.
type Activity struct {
	ActivityID  string    `json:"id" dynamodbav:"activity_id"`
	Name        string    `json:"name" dynamodbav:"name"`
	CloseAt     time.Time `json:"close_at" dynamodbav:"close_at"`
	EmailDomain string    `json:"email_domain,omitempty" dynamodbav:"email_domain"` // empty = any domain
	Enrolled    []string  `json:"-" dynamodbav:"enrolled"`                          // enrolled emails; empty = open enrolment
}

// Closed reports whether the activity's time window has passed at now.
func (a *Activity) Closed(now time.Time) bool {
	return !a.CloseAt.IsZero() && now.After(a.CloseAt)
}

// Admits reports whether email may request access to the activity.
func (a *Activity) Admits(email string) bool {
	if a.EmailDomain != "" {
		at := len(email) - len(a.EmailDomain) - 1
		if at < 1 || email[at] != '@' || email[at+1:] != a.EmailDomain {
			return false
		}
	}
	if len(a.Enrolled) == 0 {
		return true
	}
	for _, e := range a.Enrolled {
		if e == email {
			return true
		}
	}
	return false
}
