package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/loginkit/pkg/googleid"
	"github.com/dmitrymomot/loginkit/pkg/logger"
	"github.com/dmitrymomot/loginkit/pkg/sanitizer"
	"github.com/dmitrymomot/loginkit/pkg/securitylog"
)

// ReconcilerConfig controls account provisioning policy.
type ReconcilerConfig struct {
	RegistrationEnabled bool `env:"REGISTRATION_ENABLED" envDefault:"true"`
}

// Reconciler maps a verified federated assertion onto a local account:
// matching by email, binding the federated subject on first use, or
// provisioning a new account when registration allows it.
//
// Every branch, success or failure, emits exactly one audit event before
// returning.
type Reconciler struct {
	store AccountStore
	audit *securitylog.Recorder
	cfg   ReconcilerConfig
	log   *slog.Logger
	now   func() time.Time
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReconcilerLogger sets the logger. Defaults to a discard logger.
func WithReconcilerLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.log = l }
}

// NewReconciler builds a Reconciler.
func NewReconciler(store AccountStore, audit *securitylog.Recorder, cfg ReconcilerConfig, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store: store,
		audit: audit,
		cfg:   cfg,
		log:   logger.Noop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile resolves assertion to a local account. The returned account has
// NewAccount set when it was provisioned during this call.
func (r *Reconciler) Reconcile(ctx context.Context, assertion *googleid.Assertion) (*Account, error) {
	if !assertion.EmailVerified {
		r.fail(ctx, "unverified email on federated assertion", map[string]any{
			"reason": "email_unverified",
		})
		return nil, ErrEmailUnverified
	}

	email := sanitizer.NormalizeEmail(assertion.Email)
	account, err := r.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return r.link(ctx, account, assertion)
	case errors.Is(err, ErrAccountNotFound):
		return r.provision(ctx, email, assertion)
	default:
		r.fail(ctx, "account lookup failed", map[string]any{
			"reason": "store_error",
		})
		return nil, fmt.Errorf("auth: find account by email: %w", err)
	}
}

// link binds the federated subject to an existing account. A different
// already-linked subject is a conflict and leaves the account untouched.
func (r *Reconciler) link(ctx context.Context, account *Account, assertion *googleid.Assertion) (*Account, error) {
	if account.GoogleID != "" && account.GoogleID != assertion.Subject {
		r.fail(ctx, "federated subject conflicts with linked identity", map[string]any{
			"reason":     "identity_conflict",
			"account_id": account.ID.String(),
		})
		return nil, ErrIdentityConflict
	}

	account.GoogleID = assertion.Subject
	if assertion.PictureURL != "" {
		account.PictureURL = assertion.PictureURL
	}
	account.LastLoginMethod = MethodGoogle
	account.LastLoginAt = r.now()

	if err := r.store.Update(ctx, account); err != nil {
		r.fail(ctx, "account update failed", map[string]any{
			"reason":     "store_error",
			"account_id": account.ID.String(),
		})
		return nil, fmt.Errorf("auth: update account: %w", err)
	}

	r.audit.Record(ctx, securitylog.EventGoogleLoginSuccess, "federated login", map[string]any{
		"account_id": account.ID.String(),
		"is_new":     false,
	})
	return account, nil
}

// provision creates a fresh account for an unknown email, subject to the
// registration policy.
func (r *Reconciler) provision(ctx context.Context, email string, assertion *googleid.Assertion) (*Account, error) {
	if !r.cfg.RegistrationEnabled {
		r.fail(ctx, "registration disabled", map[string]any{
			"reason": "registration_disabled",
		})
		return nil, ErrRegistrationDisabled
	}

	username, err := uniqueUsername(ctx, r.store, email)
	if err != nil {
		r.fail(ctx, "username provisioning failed", map[string]any{
			"reason": "provisioning_error",
		})
		return nil, err
	}
	credential, err := generateCredential()
	if err != nil {
		r.fail(ctx, "credential provisioning failed", map[string]any{
			"reason": "provisioning_error",
		})
		return nil, err
	}

	displayName := assertion.Name
	if displayName == "" {
		displayName = username
	}
	account := &Account{
		ID:              uuid.New(),
		Email:           email,
		Username:        username,
		DisplayName:     displayName,
		FirstName:       assertion.GivenName,
		LastName:        assertion.FamilyName,
		GoogleID:        assertion.Subject,
		PictureURL:      assertion.PictureURL,
		LastLoginMethod: MethodGoogle,
		LastLoginAt:     r.now(),
		CreatedAt:       r.now(),
		NewAccount:      true,
	}

	if err := r.store.Create(ctx, account, credential); err != nil {
		r.fail(ctx, "account creation failed", map[string]any{
			"reason": "store_error",
		})
		return nil, fmt.Errorf("auth: create account: %w", err)
	}

	r.log.InfoContext(ctx, "provisioned account from federated identity",
		logger.Component("auth"), logger.AccountID(account.ID.String()))
	r.audit.Record(ctx, securitylog.EventGoogleLoginSuccess, "federated login", map[string]any{
		"account_id": account.ID.String(),
		"is_new":     true,
	})
	return account, nil
}

func (r *Reconciler) fail(ctx context.Context, message string, eventCtx map[string]any) {
	r.audit.Record(ctx, securitylog.EventGoogleLoginFailed, message, eventCtx)
}
