package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/flextalent-auth/internal/queue"
	"github.com/iliyamo/flextalent-auth/internal/utils"
)

// ErrInvalidVerificationToken deliberately reads the same as the reset
// variant: a missing, consumed and never-issued token are one outcome.
var ErrInvalidVerificationToken = errors.New("invalid or expired token")

// CheckoutStarter begins external checkout for paid plans. It is a
// downstream collaborator; a nil CheckoutStarter means every plan gets
// the plain success response.
type CheckoutStarter interface {
	CheckoutURL(ctx context.Context, userID uint64, plan string) (string, error)
}

// VerificationResult is what a successful verification hands back to
// the transport layer so it can sign the user in and, for paid plans,
// point them at checkout.
type VerificationResult struct {
	UserID   uint64
	Email    string
	Role     string
	Redirect string // non-empty when a paid plan requires checkout
}

// VerificationFlowService is the single-token sibling of the reset
// flow: one verification token per account, generated at signup,
// stored on the user row, cleared in the same statement that marks the
// account verified and applies the chosen password. No throttle, since
// issuance happens exactly once at account creation.
type VerificationFlowService struct {
	users    UserDirectory
	hasher   Hasher
	mail     MailPublisher
	checkout CheckoutStarter
	baseURL  string
}

func NewVerificationFlowService(users UserDirectory, hasher Hasher, mail MailPublisher, checkout CheckoutStarter, baseURL string) *VerificationFlowService {
	return &VerificationFlowService{users: users, hasher: hasher, mail: mail, checkout: checkout, baseURL: strings.TrimRight(baseURL, "/")}
}

// Register creates an unverified, credential-less account and mails its
// verification link. repository.ErrEmailExists passes through untouched
// so the handler can answer 409.
func (s *VerificationFlowService) Register(ctx context.Context, email, role string) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	token, err := utils.NewVerificationToken()
	if err != nil {
		return 0, err
	}
	uid, err := s.users.Create(ctx, email, role, token)
	if err != nil {
		return 0, err
	}
	s.dispatch(queue.MailRequestedEvent{
		ID:          uuid.NewString(),
		To:          email,
		Template:    queue.TemplateVerifyEmail,
		ActionURL:   s.baseURL + "/verify-email?token=" + token,
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	})
	return uid, nil
}

// ConsumeVerification applies the chosen credential and marks the
// account verified, consuming the token. The token-matching UPDATE in
// the store is the atomicity boundary: a raced second consume affects
// zero rows and surfaces here as the generic invalid-token error.
func (s *VerificationFlowService) ConsumeVerification(ctx context.Context, token, password, plan string) (VerificationResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return VerificationResult{}, ErrInvalidVerificationToken
	}
	if len(password) < MinPasswordLen {
		return VerificationResult{}, ErrWeakPassword
	}

	u, err := s.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return VerificationResult{}, ErrInvalidVerificationToken
		}
		return VerificationResult{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return VerificationResult{}, err
	}
	if err := s.users.CompleteVerification(ctx, u.ID, token, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return VerificationResult{}, ErrInvalidVerificationToken
		}
		return VerificationResult{}, err
	}

	res := VerificationResult{UserID: u.ID, Email: u.Email, Role: u.Role}
	if s.checkout != nil && plan != "" && plan != "free" {
		url, err := s.checkout.CheckoutURL(ctx, u.ID, plan)
		if err != nil {
			// Verification already committed; a checkout hiccup must not
			// undo it. The user can retry payment from their dashboard.
			log.Printf("verification-flow: checkout for user %d plan %q failed: %v", u.ID, plan, err)
		} else {
			res.Redirect = url
		}
	}
	return res, nil
}

func (s *VerificationFlowService) dispatch(ev queue.MailRequestedEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.mail.PublishMailRequested(ctx, ev); err != nil {
			log.Printf("verification-flow: mail dispatch to %s failed: %v", ev.To, err)
		}
	}()
}

// BcryptHasher adapts the bcrypt helpers to the Hasher interface with a
// configured cost.
type BcryptHasher struct{ Cost int }

func (h BcryptHasher) Hash(plain string) (string, error) {
	return utils.HashPassword(plain, h.Cost)
}
