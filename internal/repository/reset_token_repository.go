package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/flextalent-auth/internal/model"
)

// ResetTokenRepo persists password reset tokens. Only the SHA-256 hex
// hash of a token ever reaches this layer; the plaintext stays between
// the service and the outbound mail. This repository is the only
// component that mutates token rows.
type ResetTokenRepo struct {
	db    *sql.DB
	users *UserRepo
}

func NewResetTokenRepo(db *sql.DB) *ResetTokenRepo {
	return &ResetTokenRepo{db: db, users: NewUserRepo(db)}
}

const resetColumns = "id,user_id,token_hash,created_at,expires_at,used_at"

// Create inserts a new token row expiring ttl from now and returns the
// stored record.
func (r *ResetTokenRepo) Create(ctx context.Context, userID uint64, tokenHash string, ttl time.Duration) (model.PasswordResetToken, error) {
	now := time.Now().UTC()
	rec := model.PasswordResetToken{
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO password_reset_tokens (user_id, token_hash, created_at, expires_at) VALUES (?,?,?,?)",
		rec.UserID, rec.TokenHash, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return model.PasswordResetToken{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.PasswordResetToken{}, err
	}
	rec.ID = uint64(id)
	return rec, nil
}

// FindUsableByHash returns the row for a token hash only while it is
// unused and unexpired. Used and expired rows report sql.ErrNoRows so
// callers cannot tell them apart from rows that never existed.
func (r *ResetTokenRepo) FindUsableByHash(ctx context.Context, tokenHash string) (model.PasswordResetToken, error) {
	rec, err := r.scanToken(r.db.QueryRowContext(ctx,
		"SELECT "+resetColumns+" FROM password_reset_tokens WHERE token_hash=? LIMIT 1", tokenHash))
	if err != nil {
		return model.PasswordResetToken{}, err
	}
	if !rec.Usable(time.Now().UTC()) {
		return model.PasswordResetToken{}, sql.ErrNoRows
	}
	return rec, nil
}

// MostRecentForUser returns the newest token row for a user regardless
// of state. It exists only to drive the request throttle.
func (r *ResetTokenRepo) MostRecentForUser(ctx context.Context, userID uint64) (model.PasswordResetToken, error) {
	return r.scanToken(r.db.QueryRowContext(ctx,
		"SELECT "+resetColumns+" FROM password_reset_tokens WHERE user_id=? ORDER BY created_at DESC LIMIT 1", userID))
}

// DeleteExpiredOrUsedForUser removes dead rows for a user. Housekeeping
// only; callers treat failure as non-fatal and keep going.
func (r *ResetTokenRepo) DeleteExpiredOrUsedForUser(ctx context.Context, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM password_reset_tokens WHERE user_id=? AND (used_at IS NOT NULL OR expires_at <= UTC_TIMESTAMP())",
		userID)
	return err
}

// MarkUsedTx sets used_at within an existing transaction. It reports
// whether this call was the one that consumed the row: the used_at IS
// NULL guard makes a second call affect zero rows instead of erroring,
// which is how concurrent consumes are reduced to exactly one winner.
func (r *ResetTokenRepo) MarkUsedTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE password_reset_tokens SET used_at=UTC_TIMESTAMP() WHERE id=? AND used_at IS NULL", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InvalidateOthersForUserTx marks every other still-usable row for the
// user as used, so a stale link cannot remain valid after a newer one
// succeeded.
func (r *ResetTokenRepo) InvalidateOthersForUserTx(ctx context.Context, tx *sql.Tx, userID, exceptID uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE password_reset_tokens SET used_at=UTC_TIMESTAMP()
		  WHERE user_id=? AND id<>? AND used_at IS NULL AND expires_at > UTC_TIMESTAMP()`,
		userID, exceptID)
	return err
}

// ConsumeWithPassword performs the reset consumption as one atomic
// transaction: apply the new credential hash, mark the consumed row
// used, invalidate its siblings. Either all three land or none do.
// Returns ErrTokenConsumed when a concurrent consume already claimed
// the row, in which case the credential update is rolled back too.
func (r *ResetTokenRepo) ConsumeWithPassword(ctx context.Context, tokenID, userID uint64, passwordHash string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := r.users.UpdatePasswordTx(ctx, tx, userID, passwordHash); err != nil {
		return err
	}
	won, err := r.MarkUsedTx(ctx, tx, tokenID)
	if err != nil {
		return err
	}
	if !won {
		return ErrTokenConsumed
	}
	if err := r.InvalidateOthersForUserTx(ctx, tx, userID, tokenID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *ResetTokenRepo) scanToken(row *sql.Row) (model.PasswordResetToken, error) {
	var (
		rec  model.PasswordResetToken
		used sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.TokenHash, &rec.CreatedAt, &rec.ExpiresAt, &used)
	if err != nil {
		return model.PasswordResetToken{}, err
	}
	if used.Valid {
		rec.UsedAt = &used.Time
	}
	return rec, nil
}
