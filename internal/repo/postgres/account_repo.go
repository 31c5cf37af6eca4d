package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	authsvc "github.com/thecompanyunltd/nightvibe/internal/services/auth"
)

const uniqueViolation = "23505"

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func (r *AccountRepo) CreateAccount(ctx context.Context, account authsvc.Account) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(account.UserID) == "" || strings.TrimSpace(account.Email) == "" {
		return authsvc.ErrInvalidInput
	}

	_, err := r.pool.Exec(ctx, `
INSERT INTO accounts (user_id, email, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
`, account.UserID, account.Email, account.PasswordHash, account.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return authsvc.ErrUsernameTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepo) AccountByEmail(ctx context.Context, email string) (authsvc.Account, error) {
	return r.findOne(ctx, `
SELECT user_id, email, password_hash, created_at
FROM accounts
WHERE email = $1
`, strings.ToLower(strings.TrimSpace(email)))
}

func (r *AccountRepo) AccountByUserID(ctx context.Context, userID string) (authsvc.Account, error) {
	return r.findOne(ctx, `
SELECT user_id, email, password_hash, created_at
FROM accounts
WHERE user_id = $1
`, userID)
}

func (r *AccountRepo) findOne(ctx context.Context, query string, arg string) (authsvc.Account, error) {
	if r.pool == nil {
		return authsvc.Account{}, fmt.Errorf("postgres pool is nil")
	}

	var a authsvc.Account
	err := r.pool.QueryRow(ctx, query, arg).Scan(&a.UserID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authsvc.Account{}, authsvc.ErrUserNotFound
		}
		return authsvc.Account{}, fmt.Errorf("find account: %w", err)
	}
	return a, nil
}

func (r *AccountRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE accounts
SET password_hash = $2, updated_at = NOW()
WHERE user_id = $1
`, userID, hash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authsvc.ErrUserNotFound
	}
	return nil
}

// DeleteAccount is idempotent: a missing account is not an error.
func (r *AccountRepo) DeleteAccount(ctx context.Context, userID string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
