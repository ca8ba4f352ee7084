// Package auth derives the local user's identity from the bearer token.
package auth

import (
	"errors"
	"fmt"
	"time"

	jw "github.com/golang-jwt/jwt/v5"

	"github.com/matheus3301/pulse/internal/chat"
)

var ErrNoToken = errors.New("no access token configured")

// Claims is what the client reads from an access token.
type Claims struct {
	Identity  chat.Identity
	TokenType string
	ExpiresAt time.Time
}

// Expired reports whether the token expired before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// ParseToken reads the claims of an access token without verifying its
// signature. The server verifies the token on every request; the client only
// needs to know who it is.
func ParseToken(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrNoToken
	}
	t, _, err := jw.NewParser().ParseUnverified(token, jw.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}
	mc, ok := t.Claims.(jw.MapClaims)
	if !ok {
		return Claims{}, errors.New("parse token: bad claims")
	}

	var c Claims
	c.Identity.ID = claimString(mc, "sub", "user_id", "id")
	c.Identity.Username = claimString(mc, "username", "preferred_username", "name")
	c.Identity.Email = claimString(mc, "email")
	c.TokenType = claimString(mc, "type", "token_type")
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if c.Identity.ID == "" {
		return Claims{}, errors.New("parse token: no subject")
	}
	return c, nil
}

// Identity resolves the local user. Explicit values from configuration fill
// anything the token does not carry; a missing or unreadable token yields
// the configured identity alone.
func Identity(token string, configured chat.Identity) chat.Identity {
	c, err := ParseToken(token)
	if err != nil {
		return configured
	}
	id := c.Identity
	if id.Username == "" {
		id.Username = configured.Username
	}
	if id.Email == "" {
		id.Email = configured.Email
	}
	return id
}

func claimString(mc jw.MapClaims, keys ...string) string {
	for _, k := range keys {
		switch v := mc[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
