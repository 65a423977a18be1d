package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/dmitrymomot/loginkit/pkg/sanitizer"
)

const (
	credentialLength  = 24
	credentialCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"

	maxUsernameProbes = 100
)

// generateCredential returns a high-entropy random password for provisioned
// accounts. The owner authenticates federated and never types it.
func generateCredential() (string, error) {
	buf := make([]byte, credentialLength)
	max := big.NewInt(int64(len(credentialCharset)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("auth: generate credential: %w", err)
		}
		buf[i] = credentialCharset[n.Int64()]
	}
	return string(buf), nil
}

// uniqueUsername derives a username from the email local part and appends a
// numeric suffix until it no longer collides with an existing account.
func uniqueUsername(ctx context.Context, store AccountStore, email string) (string, error) {
	base := sanitizer.Username(sanitizer.EmailLocalPart(email))
	if base == "" {
		base = "user"
	}

	candidate := base
	for i := 1; i <= maxUsernameProbes; i++ {
		_, err := store.FindByUsername(ctx, candidate)
		if errors.Is(err, ErrAccountNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("auth: probe username %q: %w", candidate, err)
		}
		candidate = base + strconv.Itoa(i)
	}
	return "", fmt.Errorf("auth: no free username derived from %q", base)
}
