// Package session implements the stateless signed session token: a
// base64url-encoded JSON payload joined by "." with the hex HMAC-SHA256
// of that encoded segment.  The signature covers exactly the encoded
// payload bytes, so any mutation of the first segment invalidates it.
// There is no server-side session store; a token is valid until the
// expiry embedded in its own claims, and rotating the signing secret
// invalidates every outstanding token at once.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrInvalidSession is the single failure mode of Decode.  Bad
// signature, malformed payload and expired token all collapse into it
// so a caller (or an attacker observing a caller) cannot distinguish
// which check failed.
var ErrInvalidSession = errors.New("invalid session")

// Payload is the claim set embedded in a session token.  It is never
// persisted and never updated in place; changing anything means issuing
// a new token.
type Payload struct {
	UserID    uint64 `json:"sub"`   // account identifier
	Email     string `json:"email"` // account email at issue time
	Role      string `json:"role"`  // platform role at issue time
	IssuedAt  int64  `json:"iat"`   // unix seconds
	ExpiresAt int64  `json:"exp"`   // unix seconds, must be > iat
}

// Issued pairs a serialized token with its expiry so handlers can set
// cookie Max-Age without re-parsing what they just produced.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

// Codec signs and verifies session tokens with a process-wide secret.
// The secret is injected at construction; nothing in this package reads
// the environment.  Both methods are pure and safe for concurrent use.
type Codec struct {
	secret []byte
}

// NewCodec returns a Codec bound to the given signing secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode serializes and signs a payload.  It refuses payloads whose
// expiry does not lie strictly after the issue time.
func (c *Codec) Encode(p Payload) (string, error) {
	if p.ExpiresAt <= p.IssuedAt {
		return "", errors.New("session: expiry must be after issue time")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	seg := base64.RawURLEncoding.EncodeToString(body)
	return seg + "." + hex.EncodeToString(c.sign(seg)), nil
}

// Issue builds a payload for the given account valid for ttl from now
// and encodes it.
func (c *Codec) Issue(userID uint64, email, role string, ttl time.Duration) (Issued, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	token, err := c.Encode(Payload{
		UserID:    userID,
		Email:     email,
		Role:      role,
		IssuedAt:  now.Unix(),
		ExpiresAt: exp.Unix(),
	})
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: token, ExpiresAt: exp}, nil
}

// Decode verifies a token and returns its payload.  Every failure —
// missing delimiter, undecodable signature, signature mismatch,
// unparseable payload, absent or past expiry — returns ErrInvalidSession
// and nothing else.  The signature is checked before the payload is
// even base64-decoded, and the comparison runs in constant time over
// the full MAC length regardless of where a mismatch occurs.
func (c *Codec) Decode(token string) (Payload, error) {
	// Split on the last dot.  The encoded payload cannot contain one,
	// but splitting from the right keeps a crafted payload segment from
	// shifting the signature boundary.
	i := strings.LastIndex(token, ".")
	if i < 0 {
		return Payload{}, ErrInvalidSession
	}
	seg, sigHex := token[:i], token[i+1:]

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return Payload{}, ErrInvalidSession
	}
	if !hmac.Equal(sig, c.sign(seg)) {
		return Payload{}, ErrInvalidSession
	}

	body, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return Payload{}, ErrInvalidSession
	}
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, ErrInvalidSession
	}
	if p.ExpiresAt <= 0 || p.ExpiresAt < time.Now().UTC().Unix() {
		return Payload{}, ErrInvalidSession
	}
	return p, nil
}

func (c *Codec) sign(seg string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(seg))
	return mac.Sum(nil)
}
