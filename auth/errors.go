package auth

import "errors"

var (
	// ErrAccountNotFound is returned by AccountStore lookups with no match.
	ErrAccountNotFound = errors.New("auth: account not found")
	// ErrAccountExists means an account with the same email already exists.
	ErrAccountExists = errors.New("auth: account already exists")
	// ErrInvalidCredentials is returned by CredentialVerifier on a failed
	// password check.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrEmailUnverified rejects a federated assertion whose email the
	// provider has not verified.
	ErrEmailUnverified = errors.New("auth: email not verified by provider")
	// ErrIdentityConflict means the matched account is already linked to a
	// different federated subject.
	ErrIdentityConflict = errors.New("auth: account linked to a different identity")
	// ErrRegistrationDisabled rejects provisioning while registration is
	// administratively off.
	ErrRegistrationDisabled = errors.New("auth: registration disabled")
	// ErrInvalidResetKey is returned by ResetFinalizer for an unknown or
	// expired reset key.
	ErrInvalidResetKey = errors.New("auth: invalid or expired reset key")
)
