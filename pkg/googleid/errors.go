package googleid

import (
	"errors"
	"fmt"
)

// ErrTokenRejected is the base rejection sentinel: every failed verification
// wraps it so callers can treat all rejections uniformly.
var ErrTokenRejected = errors.New("googleid: token rejected")

// Specific rejection reasons, all wrapping ErrTokenRejected.
var (
	ErrMalformedToken   = fmt.Errorf("%w: malformed token", ErrTokenRejected)
	ErrBadSignature     = fmt.Errorf("%w: signature verification failed", ErrTokenRejected)
	ErrAudienceMismatch = fmt.Errorf("%w: audience mismatch", ErrTokenRejected)
	ErrUnknownIssuer    = fmt.Errorf("%w: unknown issuer", ErrTokenRejected)
	ErrExpired          = fmt.Errorf("%w: token expired", ErrTokenRejected)
	ErrIntrospection    = fmt.Errorf("%w: introspection call failed", ErrTokenRejected)
)
