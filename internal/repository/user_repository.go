package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/flextalent-auth/internal/model"
)

// UserRepo provides access to the 'users' table. Accounts are inserted
// without a credential; the password hash is applied when the email
// verification completes.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = "id,email,password_hash,role,email_verified_at,email_verification_token,created_at,updated_at"

// Create inserts an unverified user with no password and the plaintext
// verification token, returning the new ID.
func (r *UserRepo) Create(ctx context.Context, email, role, verificationToken string) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (email, role, email_verification_token) VALUES (?,?,?)",
		email, role, verificationToken)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByVerificationToken fetches the unverified user holding the given
// plaintext verification token. Verified accounts have the column
// cleared, so a consumed token behaves as not-found.
func (r *UserRepo) GetByVerificationToken(ctx context.Context, token string) (model.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email_verification_token=? LIMIT 1", token))
}

// CompleteVerification applies the chosen credential, marks the account
// verified and clears the verification token in one statement. The
// token match in the WHERE clause makes the operation single-use: a
// second call affects zero rows and reports sql.ErrNoRows.
func (r *UserRepo) CompleteVerification(ctx context.Context, userID uint64, token, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		    SET password_hash=?, email_verified_at=UTC_TIMESTAMP(), email_verification_token=NULL,
		        updated_at=UTC_TIMESTAMP()
		  WHERE id=? AND email_verification_token=?`,
		passwordHash, userID, token)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdatePasswordTx replaces the credential hash within the scope of an
// existing transaction. The caller must commit or rollback.
func (r *UserRepo) UpdatePasswordTx(ctx context.Context, tx *sql.Tx, userID uint64, passwordHash string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=UTC_TIMESTAMP() WHERE id=?",
		passwordHash, userID)
	return err
}

func (r *UserRepo) scanUser(row *sql.Row) (model.User, error) {
	var (
		u       model.User
		pw, tok sql.NullString
		ver     sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &pw, &u.Role, &ver, &tok, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if pw.Valid {
		u.PasswordHash = &pw.String
	}
	if tok.Valid {
		u.EmailVerificationToken = &tok.String
	}
	if ver.Valid {
		u.EmailVerifiedAt = &ver.Time
	}
	return u, nil
}
