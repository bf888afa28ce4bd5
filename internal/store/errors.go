package store

import "errors"

// Programmatic error kinds for the HTTP layer to translate into OAuth2
// protocol responses. Lookups that find nothing return a nil record and a
// nil error instead; callers decide whether absence is an error.
var (
	// ErrInvalidRequest reports malformed input to a creation operation or
	// a state transition on a request that is no longer pending.
	ErrInvalidRequest = errors.New("invalid_request")

	// ErrInvalidGrant reports redemption of an authorization code that is
	// spent, revoked, expired, lost its client, or lost the redemption race.
	ErrInvalidGrant = errors.New("invalid_grant")

	// ErrStoreUnavailable reports that no backing database was configured.
	ErrStoreUnavailable = errors.New("store unavailable: no database configured")
)
