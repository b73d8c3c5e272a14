// Package session keeps the datastore credential in step with the identity
// provider.
//
// Bridge subscribes to identity state changes. On sign-in it force-refreshes
// the ID token, installs a datastore client built with it, and runs the
// profile synchronizer; while signed in it owns two background tasks, a
// token refresh and a liveness ping. On sign-out or a provider
// configuration error it falls back to an unauthenticated client.
//
// Domain services depend on datastore.Accessor, which Bridge implements.
// They call Current() per operation and so always observe the most recently
// installed client; a request already holding an older client finishes with
// it.
package session
