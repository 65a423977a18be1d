package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Login method values recorded on successful authentication.
const (
	MethodPassword = "password"
	MethodGoogle   = "google"
)

// Account is the local identity managed by the login flows.
type Account struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	DisplayName     string    `json:"display_name"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	GoogleID        string    `json:"google_id,omitempty"`
	PictureURL      string    `json:"picture_url,omitempty"`
	LastLoginMethod string    `json:"last_login_method,omitempty"`
	LastLoginAt     time.Time `json:"last_login_at,omitzero"`
	CreatedAt       time.Time `json:"created_at"`

	// NewAccount marks an account provisioned during the current
	// reconciliation. Transient, never persisted.
	NewAccount bool `json:"-"`
}

// AccountStore is the host-provided persistence for accounts. Lookups
// return ErrAccountNotFound when no row matches.
type AccountStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByUsername(ctx context.Context, username string) (*Account, error)
	// Create persists a new account with its initial credential. The
	// store owns credential hashing.
	Create(ctx context.Context, account *Account, credential string) error
	Update(ctx context.Context, account *Account) error
}
