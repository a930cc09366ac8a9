// Package service orchestrates the password reset and email
// verification token lifecycles. Services depend on narrow interfaces
// over the repositories, the credential hasher and the mail publisher
// so the flows can be exercised without a database or a broker.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/flextalent-auth/internal/model"
	"github.com/iliyamo/flextalent-auth/internal/queue"
	"github.com/iliyamo/flextalent-auth/internal/repository"
	"github.com/iliyamo/flextalent-auth/internal/utils"
)

const (
	// ResetTokenTTL is how long a reset link stays valid.
	ResetTokenTTL = 15 * time.Minute
	// ResetThrottle is the minimum gap between issued tokens per user.
	// Bounds mail-bombing and duplicate tokens from rapid double-submits.
	ResetThrottle = 2 * time.Minute
	// MinPasswordLen is the minimum accepted credential length.
	MinPasswordLen = 8
)

// NeutralResetMessage is the only body forgot-password ever returns.
// Identical for existing, missing, credential-less and throttled
// accounts so the endpoint cannot be used to probe account existence.
const NeutralResetMessage = "If an account exists for that email, a reset link has been sent."

// ErrInvalidResetToken covers every consume failure the caller may see:
// token never existed, expired, already used, or lost a concurrent
// race. One message for all of them, by contract.
var ErrInvalidResetToken = errors.New("invalid or expired token")

// ErrWeakPassword rejects credentials below the minimum length.
var ErrWeakPassword = errors.New("password must be at least 8 characters")

// ResetTokenStore is the persistence surface the reset flow needs.
// *repository.ResetTokenRepo implements it.
type ResetTokenStore interface {
	Create(ctx context.Context, userID uint64, tokenHash string, ttl time.Duration) (model.PasswordResetToken, error)
	FindUsableByHash(ctx context.Context, tokenHash string) (model.PasswordResetToken, error)
	MostRecentForUser(ctx context.Context, userID uint64) (model.PasswordResetToken, error)
	DeleteExpiredOrUsedForUser(ctx context.Context, userID uint64) error
	ConsumeWithPassword(ctx context.Context, tokenID, userID uint64, passwordHash string) error
}

// UserDirectory is the account surface the flows need.
// *repository.UserRepo implements it.
type UserDirectory interface {
	Create(ctx context.Context, email, role, verificationToken string) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByVerificationToken(ctx context.Context, token string) (model.User, error)
	CompleteVerification(ctx context.Context, userID uint64, token, passwordHash string) error
}

// Hasher abstracts the credential hasher; the concrete choice of
// algorithm is not this package's business.
type Hasher interface {
	Hash(plain string) (string, error)
}

// MailPublisher hands a mail request to the outbound queue. Dispatch is
// fire-and-forget relative to the HTTP response; failures are logged
// and never surfaced to the caller.
type MailPublisher interface {
	PublishMailRequested(ctx context.Context, ev queue.MailRequestedEvent) error
}

// ResetFlowService drives the reset token state machine:
// NoToken → Issued → Consumed | Expired | SupersededByNewToken.
type ResetFlowService struct {
	users   UserDirectory
	tokens  ResetTokenStore
	hasher  Hasher
	mail    MailPublisher
	baseURL string
}

func NewResetFlowService(users UserDirectory, tokens ResetTokenStore, hasher Hasher, mail MailPublisher, baseURL string) *ResetFlowService {
	return &ResetFlowService{users: users, tokens: tokens, hasher: hasher, mail: mail, baseURL: strings.TrimRight(baseURL, "/")}
}

// RequestReset issues a reset token for the account behind email, or
// deliberately does nothing distinguishable when it cannot. A nil
// return always means "answer with the neutral message"; a non-nil
// return is an internal failure and maps to a generic 500.
func (s *ResetFlowService) RequestReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	// Generate the token before looking anything up so the work done on
	// the missing-account path matches the real one.
	plain, err := utils.NewResetToken()
	if err != nil {
		return err
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	eligible := err == nil && u.HasPassword()

	// The neutral paths (unknown email, mid-signup account) run the
	// same throttle and cleanup round-trips against a user id no row
	// can hold, so an account's existence is not visible as a shorter
	// request.
	uid := uint64(0)
	if eligible {
		uid = u.ID
	}

	// Throttle: skip creation when a token was issued within the window.
	// Read-then-write, so two concurrent requests inside the window can
	// both pass; accepted as best-effort, the consume path's sibling
	// invalidation caps the damage at one extra mail.
	last, err := s.tokens.MostRecentForUser(ctx, uid)
	throttled := err == nil && time.Since(last.CreatedAt) < ResetThrottle
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	// Housekeeping before inserting. Non-fatal: a failed delete must
	// never abort the request, but it is logged rather than swallowed.
	if err := s.tokens.DeleteExpiredOrUsedForUser(ctx, uid); err != nil {
		log.Printf("reset-flow: cleanup for user %d failed: %v", uid, err)
	}

	if !eligible || throttled {
		return nil // neutral: nothing issued, nothing revealed
	}

	if _, err := s.tokens.Create(ctx, u.ID, utils.HashTokenRaw(plain), ResetTokenTTL); err != nil {
		return err
	}

	s.dispatch(queue.MailRequestedEvent{
		ID:          uuid.NewString(),
		To:          u.Email,
		Template:    queue.TemplatePasswordReset,
		ActionURL:   s.baseURL + "/reset-password?token=" + plain,
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

// ConsumeReset exchanges a plaintext token and a new password for a
// credential update. Exactly one concurrent call per token can succeed;
// all other callers get ErrInvalidResetToken.
func (s *ResetFlowService) ConsumeReset(ctx context.Context, tokenPlain, newPassword string) error {
	tokenPlain = strings.TrimSpace(tokenPlain)
	if tokenPlain == "" {
		return ErrInvalidResetToken
	}
	if len(newPassword) < MinPasswordLen {
		return ErrWeakPassword
	}

	rec, err := s.tokens.FindUsableByHash(ctx, utils.HashTokenRaw(tokenPlain))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidResetToken
		}
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	// Credential update, mark-used and sibling invalidation commit or
	// roll back together inside the store.
	if err := s.tokens.ConsumeWithPassword(ctx, rec.ID, rec.UserID, hash); err != nil {
		if errors.Is(err, repository.ErrTokenConsumed) {
			return ErrInvalidResetToken
		}
		return err
	}
	return nil
}

// dispatch publishes a mail request without tying its outcome to the
// caller. The HTTP response goes out whether or not the broker is up.
func (s *ResetFlowService) dispatch(ev queue.MailRequestedEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.mail.PublishMailRequested(ctx, ev); err != nil {
			log.Printf("reset-flow: mail dispatch to %s failed: %v", ev.To, err)
		}
	}()
}
