package clientip

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Hasher produces a keyed one-way hash of a client address so events can be
// correlated without storing the raw address. The secret is site-local; the
// same address hashes identically within one deployment only.
type Hasher struct {
	secret []byte
}

// NewHasher creates a Hasher with the given site-local secret.
func NewHasher(secret string) *Hasher {
	return &Hasher{secret: []byte(secret)}
}

// Hash returns the hex-encoded HMAC-SHA256 of the address.
func (h *Hasher) Hash(addr string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(addr))
	return hex.EncodeToString(mac.Sum(nil))
}
