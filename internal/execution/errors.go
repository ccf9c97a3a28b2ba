package execution

import "errors"

// Configuration faults abort before any vendor call and surface
// directly to the caller; they never produce a vendor-call record.
var (
	ErrAppNotFound     = errors.New("app not found")
	ErrAppNotActive    = errors.New("app is not active")
	ErrNoActiveVersion = errors.New("no active prompt version for app")
	ErrVersionNotFound = errors.New("prompt version not found")
)

// IsConfigError reports whether err belongs to the caller-input class
// of failures (misconfigured or unknown app), as opposed to runtime
// vendor faults which are always recorded.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrAppNotFound) ||
		errors.Is(err, ErrAppNotActive) ||
		errors.Is(err, ErrNoActiveVersion) ||
		errors.Is(err, ErrVersionNotFound)
}
