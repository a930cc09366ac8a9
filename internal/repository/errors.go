// Package repository defines sentinel errors reused across the
// repositories. Higher layers match on these with errors.Is to decide
// HTTP responses; anything else coming out of a repository is an
// infrastructure failure and maps to a generic 500.
package repository

import "errors"

// ErrEmailExists is returned by UserRepo.Create when the unique email
// constraint rejects the insert. Handlers translate this into an HTTP
// 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrTokenConsumed is returned when the atomic consume transaction
// finds the reset token already marked used. It means a concurrent
// consume won the race; callers must present it exactly like a token
// that never existed.
var ErrTokenConsumed = errors.New("reset token already consumed")
