package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is a signed-in user as seen by the identity provider.
type Principal struct {
	UID          string
	Email        string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

func (p *Principal) clone() *Principal {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// Claims is the subset of ID token claims the client relies on.
type Claims struct {
	jwt.RegisteredClaims
	Email  string `json:"email,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// PrincipalFromToken reads uid, email and expiry out of an ID token without
// verifying its signature. The issuer already did that.
func PrincipalFromToken(idToken, refreshToken string) (*Principal, error) {
	if idToken == "" {
		return nil, errors.New("empty id token")
	}
	var c Claims
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, &c); err != nil {
		return nil, fmt.Errorf("parse id token: %w", err)
	}
	uid := c.Subject
	if uid == "" {
		uid = c.UserID
	}
	if uid == "" {
		return nil, errors.New("id token has no subject")
	}
	p := &Principal{UID: uid, Email: c.Email, IDToken: idToken, RefreshToken: refreshToken}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p, nil
}
