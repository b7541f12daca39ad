package domain

import "time"

// DefaultSessionTTL is how long a login session stays valid
const DefaultSessionTTL = 24 * time.Hour

// Session is an authenticated login session
type Session struct {
	ID        string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session is no longer valid at now
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
