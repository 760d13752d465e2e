package auth

import "time"

// SessionRecord mirrors the sessions table used for login auditing.
type SessionRecord struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
	IP        string
	UserAgent string
}
