// Package identity holds the signed-in principal and talks to an identity
// Provider on its behalf.
//
// Client is the single source of truth for "who is signed in". It issues
// bearer tokens (optionally force-refreshed), persists enough of the
// session to resume it after a restart, and notifies subscribers on every
// state change. Subscribers registered with OnStateChange receive the
// current state immediately, then every later transition.
//
// Providers:
//
//   - firebase: Google Identity Toolkit and Secure Token REST endpoints
//   - local:    in-process HS256 issuer for development and tests
package identity
