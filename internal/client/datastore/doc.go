// Package datastore is the contract between domain services and the
// relational datastore.
//
// A Client is bound to one bearer token at construction time and never
// changes it; a new token means a new Client (see Factory). Operations are
// table-style: Select with filters, Insert, Update, Upsert keyed by a
// unique column, and Delete. Each returns the affected rows or an *Error
// carrying a machine-readable code.
//
// Implementations live in subpackages:
//
//   - postgrest: PostgREST / Supabase REST over HTTP
//   - sqlstore:  database/sql over SQLite (modernc) or Postgres (pgx)
//
// Services never hold on to a Client. They ask an Accessor for the current
// one on every operation so that a token refresh is picked up by the next
// request.
package datastore
