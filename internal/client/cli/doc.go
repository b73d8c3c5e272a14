// Package cli provides the interactive dares command-line client.
//
// NewApp wires configuration, the persisted session, the identity provider,
// the datastore backend and the domain services. App.Run restores a saved
// session and then serves a REPL until the user exits.
//
// Key features:
//   - Register / Login / Logout, whoami and profile editing
//   - Create, edit, delete and list challenges
//   - Submit completions with an optional proof file; review completions
//   - Leaderboard and the friends map (share / unshare / map)
//   - refresh and status for inspecting the session and configuration
//
// See App and runREPL for details.
package cli
