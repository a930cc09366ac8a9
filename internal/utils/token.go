package utils // package utils provides helper functions for token generation and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 hashing for reset tokens at rest
	"encoding/hex"  // hex encoding of random bytes and digests
)

// ResetTokenBytes is the amount of entropy behind a password reset
// token.  32 random bytes hex-encode to a 64 character plaintext token.
const ResetTokenBytes = 32

// NewResetToken returns a cryptographically secure random token as the
// hex plaintext the user receives by mail.  Only the SHA-256 hash of
// this value may ever reach the database.
func NewResetToken() (string, error) {
	return randomHex(ResetTokenBytes)
}

// NewVerificationToken returns a random token stored on the user row at
// signup and embedded in the verification link.
func NewVerificationToken() (string, error) {
	return randomHex(ResetTokenBytes)
}

// HashTokenRaw returns the SHA-256 digest of a plaintext token as a hex
// string.  Storing only the hash means a leaked token table cannot be
// replayed against the reset endpoint.
func HashTokenRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.  If the random number generator
// fails, an error is returned and no token must be issued.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
