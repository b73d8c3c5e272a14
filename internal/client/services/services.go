// Package services contains the application services behind the CLI:
// authentication, profile sync, challenges, completions, the leaderboard
// and location sharing. Every datastore call goes through the handle the
// session currently holds.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/dares/internal/client/datastore"
	"github.com/dmitrijs2005/dares/internal/client/identity"
	"github.com/dmitrijs2005/dares/internal/client/session"
	"github.com/dmitrijs2005/dares/internal/common"
)

// Session is the part of session.Bridge the domain services need.
type Session interface {
	datastore.Accessor
	Refresh(ctx context.Context) session.RefreshResult
}

// Principals exposes the signed-in user.
type Principals interface {
	Current() *identity.Principal
}

// clock is swapped in tests.
type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

func currentUID(p Principals) (string, error) {
	cur := p.Current()
	if cur == nil || cur.UID == "" {
		return "", common.ErrNotSignedIn
	}
	return cur.UID, nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// nullable maps "" to a SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
