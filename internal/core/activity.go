package core

import (
	"strings"
	"time"
)

// Activity action types recorded in the audit trail.
const (
	ActionApproved  = "approved"
	ActionUploaded  = "uploaded"
	ActionFlagged   = "flagged"
	ActionRejected  = "rejected"
	ActionGenerated = "generated"
	ActionEdited    = "edited"
	ActionReturned  = "returned"
)

// ActivityRecord is one audit-trail entry as returned by GET /activity-logs.
type ActivityRecord struct {
	ID         int64  `json:"id"`
	User       string `json:"user"`
	Action     string `json:"action"`
	ActionType string `json:"actionType"`
	Details    string `json:"details"`
	IPAddress  string `json:"ipAddress,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// Kind returns the lowercased, trimmed action type.
func (a ActivityRecord) Kind() string {
	return strings.ToLower(strings.TrimSpace(a.ActionType))
}

// Matches reports whether query occurs in the user, action or details,
// ignoring case. An empty query matches everything.
func (a ActivityRecord) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, field := range []string{a.User, a.Action, a.Details} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Time parses Timestamp.
func (a ActivityRecord) Time() (time.Time, bool) {
	return ParseTimestamp(a.Timestamp)
}
