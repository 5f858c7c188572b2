package models

import "time"

// Session is the server-side record behind a bearer token.
type Session struct {
	ID          string // jti
	Token       string // set on the login response only
	TokenDigest [32]byte
	UserID      string
	IssuedAt    time.Time
	ExpiresAt   time.Time

	// User is the identity as of login. It stands in for the stored user
	// only while the credential store is unreachable.
	User User
}

func (s *Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }
