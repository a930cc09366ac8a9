package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/iliyamo/flextalent-auth/internal/model"
	"github.com/iliyamo/flextalent-auth/internal/queue"
	"github.com/iliyamo/flextalent-auth/internal/repository"
)

// fakeHasher makes credential hashes recognizable in assertions.
type fakeHasher struct{}

func (fakeHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

// capturePublisher records published mail events. Dispatch happens on a
// goroutine, so tests receive from the channel with a timeout.
type capturePublisher struct {
	events chan queue.MailRequestedEvent
	err    error
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{events: make(chan queue.MailRequestedEvent, 8)}
}

func (p *capturePublisher) PublishMailRequested(_ context.Context, ev queue.MailRequestedEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events <- ev
	return nil
}

func (p *capturePublisher) wait(timeout time.Duration) (queue.MailRequestedEvent, bool) {
	select {
	case ev := <-p.events:
		return ev, true
	case <-time.After(timeout):
		return queue.MailRequestedEvent{}, false
	}
}

// fakeUserDirectory is an in-memory UserDirectory.
type fakeUserDirectory struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]*model.User
}

func newFakeUserDirectory() *fakeUserDirectory {
	return &fakeUserDirectory{users: map[uint64]*model.User{}}
}

func (d *fakeUserDirectory) add(u model.User) *model.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	u.ID = d.nextID
	d.users[u.ID] = &u
	return &u
}

func (d *fakeUserDirectory) Create(_ context.Context, email, role, verificationToken string) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	d.nextID++
	tok := verificationToken
	d.users[d.nextID] = &model.User{ID: d.nextID, Email: email, Role: role, EmailVerificationToken: &tok}
	return d.nextID, nil
}

func (d *fakeUserDirectory) GetByEmail(_ context.Context, email string) (model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Email == email {
			return *u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (d *fakeUserDirectory) GetByVerificationToken(_ context.Context, token string) (model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.EmailVerificationToken != nil && *u.EmailVerificationToken == token {
			return *u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (d *fakeUserDirectory) CompleteVerification(_ context.Context, userID uint64, token, passwordHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok || u.EmailVerificationToken == nil || *u.EmailVerificationToken != token {
		return sql.ErrNoRows
	}
	now := time.Now().UTC()
	u.PasswordHash = &passwordHash
	u.EmailVerifiedAt = &now
	u.EmailVerificationToken = nil
	return nil
}

// fakeResetTokenStore mirrors the SQL semantics of ResetTokenRepo:
// usable means unused and unexpired, consume is all-or-nothing with a
// single winner.
type fakeResetTokenStore struct {
	mu         sync.Mutex
	nextID     uint64
	rows       map[uint64]*model.PasswordResetToken
	passwords  map[uint64]string // userID -> hash applied by consume
	cleanupErr error
	createErr  error

	mostRecentCalls int
	cleanupCalls    int
}

func newFakeResetTokenStore() *fakeResetTokenStore {
	return &fakeResetTokenStore{
		rows:      map[uint64]*model.PasswordResetToken{},
		passwords: map[uint64]string{},
	}
}

func (s *fakeResetTokenStore) seed(rec model.PasswordResetToken) model.PasswordResetToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	s.rows[rec.ID] = &rec
	return rec
}

func (s *fakeResetTokenStore) countRows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *fakeResetTokenStore) Create(_ context.Context, userID uint64, tokenHash string, ttl time.Duration) (model.PasswordResetToken, error) {
	if s.createErr != nil {
		return model.PasswordResetToken{}, s.createErr
	}
	now := time.Now().UTC()
	return s.seed(model.PasswordResetToken{
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}), nil
}

func (s *fakeResetTokenStore) FindUsableByHash(_ context.Context, tokenHash string) (model.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.TokenHash == tokenHash && r.Usable(time.Now().UTC()) {
			return *r, nil
		}
	}
	return model.PasswordResetToken{}, sql.ErrNoRows
}

func (s *fakeResetTokenStore) MostRecentForUser(_ context.Context, userID uint64) (model.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mostRecentCalls++
	var latest *model.PasswordResetToken
	for _, r := range s.rows {
		if r.UserID != userID {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return model.PasswordResetToken{}, sql.ErrNoRows
	}
	return *latest, nil
}

func (s *fakeResetTokenStore) DeleteExpiredOrUsedForUser(_ context.Context, userID uint64) error {
	s.mu.Lock()
	s.cleanupCalls++
	s.mu.Unlock()
	if s.cleanupErr != nil {
		return s.cleanupErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for id, r := range s.rows {
		if r.UserID == userID && !r.Usable(now) {
			delete(s.rows, id)
		}
	}
	return nil
}

func (s *fakeResetTokenStore) ConsumeWithPassword(_ context.Context, tokenID, userID uint64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[tokenID]
	if !ok || row.UsedAt != nil {
		return repository.ErrTokenConsumed
	}
	now := time.Now().UTC()
	row.UsedAt = &now
	for _, r := range s.rows {
		if r.UserID == userID && r.ID != tokenID && r.Usable(now) {
			used := now
			r.UsedAt = &used
		}
	}
	s.passwords[userID] = passwordHash
	return nil
}

// fakeCheckout returns a canned URL or error.
type fakeCheckout struct {
	url string
	err error
}

func (f fakeCheckout) CheckoutURL(context.Context, uint64, string) (string, error) {
	return f.url, f.err
}
