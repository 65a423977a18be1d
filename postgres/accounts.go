// Package postgres provides pgx-backed implementations of the host-side
// persistence ports: the account store and the native credential check.
//
// Expected schema:
//
//	CREATE TABLE accounts (
//	    id                UUID PRIMARY KEY,
//	    email             TEXT NOT NULL UNIQUE,
//	    username          TEXT NOT NULL UNIQUE,
//	    display_name      TEXT NOT NULL DEFAULT '',
//	    first_name        TEXT NOT NULL DEFAULT '',
//	    last_name         TEXT NOT NULL DEFAULT '',
//	    google_id         TEXT UNIQUE,
//	    picture_url       TEXT NOT NULL DEFAULT '',
//	    password_hash     TEXT NOT NULL,
//	    last_login_method TEXT NOT NULL DEFAULT '',
//	    last_login_at     TIMESTAMPTZ,
//	    created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/loginkit/auth"
)

const uniqueViolation = "23505"

const accountColumns = `id, email, username, display_name, first_name, last_name,
	COALESCE(google_id, ''), picture_url, last_login_method, last_login_at, created_at`

// AccountStore implements auth.AccountStore on a pgx pool.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates an account store.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

func (s *AccountStore) FindByID(ctx context.Context, id uuid.UUID) (*auth.Account, error) {
	return s.findBy(ctx, "id = $1", id)
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return s.findBy(ctx, "email = $1", email)
}

func (s *AccountStore) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	return s.findBy(ctx, "username = $1", username)
}

func (s *AccountStore) findBy(ctx context.Context, where string, arg any) (*auth.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE %s`, accountColumns, where)
	account, err := scanAccount(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("postgres: find account: %w", err)
	}
	return account, nil
}

// Create persists a new account. The credential is hashed here; the
// plaintext never reaches the database.
func (s *AccountStore) Create(ctx context.Context, account *auth.Account, credential string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("postgres: hash credential: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, email, username, display_name, first_name, last_name,
			google_id, picture_url, password_hash, last_login_method,
			last_login_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12)`,
		account.ID, account.Email, account.Username, account.DisplayName,
		account.FirstName, account.LastName, account.GoogleID, account.PictureURL,
		string(hash), account.LastLoginMethod, nullableTime(account.LastLoginAt),
		account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return auth.ErrAccountExists
		}
		return fmt.Errorf("postgres: create account: %w", err)
	}
	return nil
}

func (s *AccountStore) Update(ctx context.Context, account *auth.Account) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET
			email = $2, username = $3, display_name = $4, first_name = $5,
			last_name = $6, google_id = NULLIF($7, ''), picture_url = $8,
			last_login_method = $9, last_login_at = $10
		WHERE id = $1`,
		account.ID, account.Email, account.Username, account.DisplayName,
		account.FirstName, account.LastName, account.GoogleID, account.PictureURL,
		account.LastLoginMethod, nullableTime(account.LastLoginAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		account     auth.Account
		lastLoginAt *time.Time
	)
	err := row.Scan(
		&account.ID, &account.Email, &account.Username, &account.DisplayName,
		&account.FirstName, &account.LastName, &account.GoogleID,
		&account.PictureURL, &account.LastLoginMethod, &lastLoginAt,
		&account.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastLoginAt != nil {
		account.LastLoginAt = *lastLoginAt
	}
	return &account, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
