package auth

import (
	"context"

	"github.com/google/uuid"
)

// CredentialVerifier is the host's native credential check. Verify returns
// the matched account, or ErrInvalidCredentials when the login or password
// is wrong. Implementations must not reveal which of the two failed.
type CredentialVerifier interface {
	Verify(ctx context.Context, login, password string) (*Account, error)
}

// SessionManager establishes an authenticated session for an account.
// Cookie mechanics and session fixation hygiene stay on the host side.
type SessionManager interface {
	Establish(ctx context.Context, accountID uuid.UUID) error
}

// ResetInitiator starts a password reset for the given login identifier.
// Whether the login exists must not be observable from the error.
type ResetInitiator interface {
	InitiateReset(ctx context.Context, login string) error
}

// ResetFinalizer validates a reset key and applies the new password.
// Returns ErrInvalidResetKey for unknown or expired keys.
type ResetFinalizer interface {
	FinalizeReset(ctx context.Context, login, resetKey, newPassword string) error
}

// Notifier delivers the one-time new-account notification. Implementations
// live in the notify package; delivery failures never fail the flow.
type Notifier interface {
	AccountCreated(ctx context.Context, account *Account) error
}
