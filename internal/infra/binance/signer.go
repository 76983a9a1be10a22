package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer produces request signatures for the exchange's signed endpoints.
// The secret is held here and used only as HMAC key material; it must
// never be written to a log or error message.
type Signer struct {
	secretKey string
}

// NewSigner creates a new Signer instance
func NewSigner(secretKey string) *Signer {
	return &Signer{secretKey: secretKey}
}

// Sign computes the lowercase-hex HMAC-SHA256 of the canonical query
// string. The input must already contain timestamp and recvWindow and
// must not contain a signature parameter; identical input always yields
// an identical signature.
func (s *Signer) Sign(canonical string) string {
	return computeHmacSha256(canonical, s.secretKey)
}

func computeHmacSha256(message string, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
