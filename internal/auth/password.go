package auth

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// SaltRounds is the bcrypt work factor for every stored digest.
const SaltRounds = 10

// BcryptHasher produces salted one-way digests for passwords and refresh
// tokens.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: SaltRounds}
}

// Hash returns a salted digest of plaintext. Two calls with the same input
// return different digests.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches digest. A mismatch or a malformed
// digest yields false.
func (h *BcryptHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// HashToken digests a bearer token. bcrypt reads at most 72 bytes and signed
// tokens share a long common prefix, so the token is condensed with SHA-256
// first.
func (h *BcryptHasher) HashToken(token string) (string, error) {
	return h.Hash(tokenDigest(token))
}

// VerifyToken is the counterpart of HashToken.
func (h *BcryptHasher) VerifyToken(token, digest string) bool {
	return h.Verify(tokenDigest(token), digest)
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawStdEncoding.EncodeToString(sum[:])
}
