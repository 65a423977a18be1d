package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/loginkit/auth"
)

// CredentialVerifier implements auth.CredentialVerifier against the
// accounts table. The login identifier may be a username or an email.
type CredentialVerifier struct {
	pool *pgxpool.Pool
}

// NewCredentialVerifier creates a credential verifier.
func NewCredentialVerifier(pool *pgxpool.Pool) *CredentialVerifier {
	return &CredentialVerifier{pool: pool}
}

// Verify checks login and password. The error does not reveal whether the
// login exists or the password was wrong.
func (v *CredentialVerifier) Verify(ctx context.Context, login, password string) (*auth.Account, error) {
	query := fmt.Sprintf(
		`SELECT %s, password_hash FROM accounts WHERE username = $1 OR email = $1`,
		accountColumns,
	)

	var (
		account     auth.Account
		lastLoginAt *time.Time
		hash        string
	)
	err := v.pool.QueryRow(ctx, query, login).Scan(
		&account.ID, &account.Email, &account.Username, &account.DisplayName,
		&account.FirstName, &account.LastName, &account.GoogleID,
		&account.PictureURL, &account.LastLoginMethod, &lastLoginAt,
		&account.CreatedAt, &hash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("postgres: look up credentials: %w", err)
	}
	if lastLoginAt != nil {
		account.LastLoginAt = *lastLoginAt
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, auth.ErrInvalidCredentials
	}
	return &account, nil
}
