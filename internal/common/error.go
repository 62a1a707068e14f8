// Package common defines shared constants and sentinel errors used across
// the HomeMoney sync client layers. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Sync-cycle errors.
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrCycleDeadline      = errors.New("sync cycle deadline exceeded")

	// Validation / item-specific errors.
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrMissingServerID   = errors.New("record has no server id")
)

// AuthHeaderName is the HTTP header used to carry the bearer token on
// outbound requests.
const AuthHeaderName = "Authorization"
