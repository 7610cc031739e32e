package model

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User identifies the budget owner as known to the remote store.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// AuthSession is the authenticated identity plus its opaque bearer token.
type AuthSession struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// IsAuthenticated is derived: a session needs both an owner and a token.
func (s AuthSession) IsAuthenticated() bool {
	return s.Token != "" && s.User != nil
}

// OwnerID returns the owner identity, or "" when signed out.
func (s AuthSession) OwnerID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// Expired reports whether the bearer token is a JWT whose exp claim is at or
// before now. The signature is not checked: the client only needs the claim
// to drop sessions the remote store would reject anyway. Opaque tokens never
// expire from the client's point of view.
func (s AuthSession) Expired(now time.Time) bool {
	if s.Token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}
