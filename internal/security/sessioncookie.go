package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookieName is the browser cookie carrying the signed session claims.
const SessionCookieName = "dir_session"

// SessionClaims is the key/value payload of the signed session cookie.
// Regular logins set UserID; admin console logins set AdminUserID plus the
// AdminToken marker. AdminToken is a presence marker for the admin branch
// of the middleware, not a credential in its own right.
type SessionClaims struct {
	SessionID   string `json:"sid,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	AdminUserID string `json:"admin_user_id,omitempty"`
	AdminToken  string `json:"admin_token,omitempty"`
	jwt.RegisteredClaims
}

// SessionCodec signs and verifies browser session cookies with HS256.
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewSessionCodec(secret string, ttl time.Duration) *SessionCodec {
	return &SessionCodec{secret: []byte(secret), ttl: ttl}
}

func (c *SessionCodec) Encode(claims SessionClaims) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *SessionCodec) Decode(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode session cookie: %w", err)
	}
	if !tok.Valid {
		return nil, errors.New("invalid session cookie")
	}
	return claims, nil
}
