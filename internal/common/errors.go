// Package common defines shared constants, sentinel errors and small helpers
// used across CareConnect packages. Callers should use errors.Is to match
// the error values.
package common

import "errors"

var (
	// Repository-level errors. NotFound also covers "no access" so callers
	// never learn whether a record they cannot see exists.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the caller can see a record but its
	// role does not allow the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when a unique value (an email) is taken.
	ErrConflict = errors.New("already exists")
	// ErrUnavailable marks an optional collaborator (AI) that is disabled
	// or failing.
	ErrUnavailable = errors.New("service unavailable")

	// ErrValidation marks malformed input (bad rule, missing field, bad range).
	ErrValidation = errors.New("validation error")

	// ErrIntegrity is returned when AES-GCM tag verification fails.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrConfig marks configuration that must abort startup.
	ErrConfig = errors.New("configuration error")

	// ErrTransientDelivery marks a notification that may succeed on retry.
	ErrTransientDelivery = errors.New("transient delivery error")

	// ErrCycleInProgress is returned when a notifier poll is requested while
	// another one is still running.
	ErrCycleInProgress = errors.New("poll cycle already in progress")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
