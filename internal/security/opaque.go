package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

// OpaqueTokens produces the bearer token strings stored in the tokens
// table and handed to API clients. The wire form is a deterministic MAC
// over fresh random material: the same raw value always maps to the same
// stored string, so lookup stays exact-match, while the secret keeps the
// mapping unforgeable.
type OpaqueTokens struct {
	secret []byte
}

func NewOpaqueTokens(secret string) *OpaqueTokens {
	return &OpaqueTokens{secret: []byte(secret)}
}

// NewRawToken returns 64 hex characters of fresh random material.
func NewRawToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// Encode maps a raw value to its stored wire form: HMAC-SHA256 keyed by
// the token secret, base64 raw-URL encoded. The result is 43 characters,
// header and URL safe, and fixed-length.
func (o *OpaqueTokens) Encode(raw string) string {
	mac := hmac.New(sha256.New, o.secret)
	mac.Write([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Issue returns the wire form of a freshly generated raw value.
func (o *OpaqueTokens) Issue() string {
	return o.Encode(NewRawToken())
}
