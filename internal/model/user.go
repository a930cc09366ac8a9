package model

import "time"

// User represents an account record as stored in the `users` table.
// Accounts are created at signup with no credential: the password is
// chosen when the verification link is followed, so PasswordHash stays
// NULL until then.  The email verification token is stored in plaintext
// directly on the row.  This is a known asymmetry with the reset flow
// (which stores only a SHA-256 hash); it is kept because the token is
// issued exactly once at account creation and cleared in the same
// statement that applies the credential, so a leaked row exposes only a
// token for an account that has never held a password.
//
// Fields:
//  ID                     – primary key identifier of the user.
//  Email                  – unique, lower-cased email address.
//  PasswordHash           – bcrypt hash, nil while signup is incomplete.
//  Role                   – platform role (CANDIDATE or EMPLOYER).
//  EmailVerifiedAt        – when the account was verified (null before).
//  EmailVerificationToken – plaintext verification token, null once used.
//  CreatedAt              – timestamp of creation.
//  UpdatedAt              – timestamp of last update.
type User struct {
	ID                     uint64     // users.id
	Email                  string     // users.email
	PasswordHash           *string    // users.password_hash (nullable)
	Role                   string     // users.role
	EmailVerifiedAt        *time.Time // users.email_verified_at (nullable)
	EmailVerificationToken *string    // users.email_verification_token (nullable)
	CreatedAt              time.Time  // users.created_at
	UpdatedAt              time.Time  // users.updated_at
}

// Verified reports whether the account completed email verification.
func (u User) Verified() bool { return u.EmailVerifiedAt != nil }

// HasPassword reports whether a credential has been set.  Accounts that
// are still mid-signup have none and must be treated as non-existent by
// the password reset flow.
func (u User) HasPassword() bool { return u.PasswordHash != nil && *u.PasswordHash != "" }

// PasswordResetToken models an entry in the `password_reset_tokens`
// table.  The plaintext token mailed to the user is never persisted;
// only its SHA-256 hex digest.  UsedAt is terminal: once set, the row
// can never become usable again, whether it was consumed directly or
// invalidated as the sibling of a consumed token.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the plaintext token.
//  CreatedAt – timestamp of creation, drives the request throttle.
//  ExpiresAt – expiration timestamp (creation + 15 minutes).
//  UsedAt    – when the token was consumed or invalidated (null if still usable).
type PasswordResetToken struct {
	ID        uint64     // password_reset_tokens.id
	UserID    uint64     // password_reset_tokens.user_id
	TokenHash string     // password_reset_tokens.token_hash
	CreatedAt time.Time  // password_reset_tokens.created_at
	ExpiresAt time.Time  // password_reset_tokens.expires_at
	UsedAt    *time.Time // password_reset_tokens.used_at (nullable)
}

// Usable reports whether the token can still be consumed at the given
// instant: never used and not yet expired.
func (t PasswordResetToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
