package datastore

import (
	"context"
	"regexp"
)

// Client performs table operations under a fixed bearer credential.
type Client interface {
	Select(ctx context.Context, table string, q Query) (Rows, error)
	Insert(ctx context.Context, table string, row Row) (Rows, error)
	Update(ctx context.Context, table string, values Row, filters ...Filter) (Rows, error)
	Upsert(ctx context.Context, table string, row Row, onConflict string) (Rows, error)
	Delete(ctx context.Context, table string, filters ...Filter) (Rows, error)
	// Token returns the bearer this client presents; empty when
	// unauthenticated.
	Token() string
}

// Factory builds a Client for token. An empty token yields an
// unauthenticated client.
type Factory func(token string) (Client, error)

// Accessor hands out the most recently installed Client.
type Accessor interface {
	Current() Client
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether s is usable as a table or column name.
func ValidIdentifier(s string) bool {
	return identRe.MatchString(s)
}
