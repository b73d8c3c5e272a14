// Package common defines shared constants and sentinel errors used across
// the dares client layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Configuration errors: missing or invalid provider credentials.
	// Fatal to the session and never retried.
	ErrConfiguration = errors.New("configuration error")

	// Authentication errors: bad credentials, duplicate registration.
	// The user may retry immediately.
	ErrAuthentication = errors.New("authentication error")

	// Session state.
	ErrNotSignedIn = errors.New("no authenticated user found")

	// Domain write errors.
	ErrValidation = errors.New("validation error")
	ErrForbidden  = errors.New("forbidden")
	ErrorNotFound = errors.New("not found")
)
