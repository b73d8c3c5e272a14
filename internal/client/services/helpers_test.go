package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/dares/internal/client/datastore"
	"github.com/dmitrijs2005/dares/internal/client/datastore/sqlstore"
	"github.com/dmitrijs2005/dares/internal/client/identity"
	"github.com/dmitrijs2005/dares/internal/client/session"
	"github.com/stretchr/testify/require"
)

// ---- helpers ----

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t *time.Time) clock {
	return func() time.Time { return *t }
}

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.Open(context.Background(), sqlstore.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func anonClient(t *testing.T, s *sqlstore.Store) datastore.Client {
	t.Helper()
	c, err := s.Client("")
	require.NoError(t, err)
	return c
}

// ---- fakes ----

// fakeSession hands out one client and a scripted refresh result.
type fakeSession struct {
	client    datastore.Client
	Res       session.RefreshResult
	Refreshes int
}

func (f *fakeSession) Current() datastore.Client { return f.client }

func (f *fakeSession) Refresh(ctx context.Context) session.RefreshResult {
	f.Refreshes++
	return f.Res
}

func okSession(c datastore.Client) *fakeSession {
	return &fakeSession{client: c, Res: session.RefreshResult{Token: "fresh"}}
}

type fakeUsers struct {
	p *identity.Principal
}

func (f *fakeUsers) Current() *identity.Principal { return f.p }

func (f *fakeUsers) as(uid string) *fakeUsers {
	if uid == "" {
		f.p = nil
		return f
	}
	f.p = &identity.Principal{UID: uid, Email: uid + "@example.com", IDToken: "tok-" + uid}
	return f
}

func user(uid string) *fakeUsers { return (&fakeUsers{}).as(uid) }

// scriptedClient is a datastore.Client with canned answers. Calls without
// a script fail the test.
type scriptedClient struct {
	t  *testing.T
	mu sync.Mutex

	SelectFn func(table string, q datastore.Query) (datastore.Rows, error)
	UpsertFn func(table string, row datastore.Row, onConflict string) (datastore.Rows, error)
	UpdateFn func(table string, values datastore.Row, filters []datastore.Filter) (datastore.Rows, error)

	LastUpsert datastore.Row
	LastUpdate datastore.Row
	Calls      int
}

func (c *scriptedClient) call() {
	c.mu.Lock()
	c.Calls++
	c.mu.Unlock()
}

func (c *scriptedClient) Select(ctx context.Context, table string, q datastore.Query) (datastore.Rows, error) {
	c.call()
	if c.SelectFn == nil {
		c.t.Fatalf("unexpected Select on %s", table)
	}
	return c.SelectFn(table, q)
}

func (c *scriptedClient) Insert(ctx context.Context, table string, row datastore.Row) (datastore.Rows, error) {
	c.call()
	c.t.Fatalf("unexpected Insert on %s", table)
	return nil, nil
}

func (c *scriptedClient) Update(ctx context.Context, table string, values datastore.Row, filters ...datastore.Filter) (datastore.Rows, error) {
	c.call()
	c.LastUpdate = values
	if c.UpdateFn == nil {
		c.t.Fatalf("unexpected Update on %s", table)
	}
	return c.UpdateFn(table, values, filters)
}

func (c *scriptedClient) Upsert(ctx context.Context, table string, row datastore.Row, onConflict string) (datastore.Rows, error) {
	c.call()
	c.LastUpsert = row
	if c.UpsertFn == nil {
		c.t.Fatalf("unexpected Upsert on %s", table)
	}
	return c.UpsertFn(table, row, onConflict)
}

func (c *scriptedClient) Delete(ctx context.Context, table string, filters ...datastore.Filter) (datastore.Rows, error) {
	c.call()
	c.t.Fatalf("unexpected Delete on %s", table)
	return nil, nil
}

func (c *scriptedClient) Token() string { return "" }
