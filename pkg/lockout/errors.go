package lockout

import "errors"

var (
	// ErrInvalidConfig indicates the tracker configuration is unusable.
	ErrInvalidConfig = errors.New("lockout: invalid config")
)
