package lattice

import "errors"

// Sentinel errors returned by the lattice store. Callers are expected to
// match them with errors.Is; storage errors additionally wrap the driver
// error for inspection.
var (
	// ErrInvalidPose marks a pose with non-finite coordinates or a
	// malformed joint payload. Nothing is written when it is returned.
	ErrInvalidPose = errors.New("invalid pose")

	// ErrInvalidDirection marks a direction outside the fixed 12-entry
	// vocabulary. It is raised before any mutation is attempted.
	ErrInvalidDirection = errors.New("invalid direction")

	// ErrStorageUnavailable wraps failures of the backing store
	// (connection loss, failed commit). The call in progress is lost;
	// re-invoking it is safe because all mutations are idempotent at
	// chunk granularity.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNodeNotFound is returned by lookups for a pose or id that has
	// no stored node.
	ErrNodeNotFound = errors.New("node not found")
)
