package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dares/internal/client/session"
	"github.com/dmitrijs2005/dares/internal/common"
)

// Refresh forces a token refresh and reinstalls the datastore client.
func (a *App) Refresh(ctx context.Context) error {
	r := a.session.Refresh(ctx)
	if r.Err != nil {
		return r.Err
	}
	if !r.OK() {
		return common.ErrNotSignedIn
	}
	fmt.Fprintln(a.out, "Token refreshed")
	return nil
}

// Status prints the session state, a round trip to the datastore with the
// installed credential, and the configuration report.
func (a *App) Status(ctx context.Context) error {
	if a.session != nil {
		st := a.session.Status()
		fmt.Fprintf(a.out, "Session: %s\n", st)
		if err := a.session.AuthError(); err != nil {
			fmt.Fprintf(a.out, "Identity provider error: %v\n", err)
		}
		a.checkDatastore(ctx, st)
	}
	if a.config != nil {
		fmt.Fprintln(a.out)
		fmt.Fprint(a.out, a.config.StatusReport())
		if err := a.config.Validate(); err != nil {
			fmt.Fprintln(a.out)
			fmt.Fprintln(a.out, err)
		}
	}
	return nil
}

func (a *App) checkDatastore(ctx context.Context, st session.Status) {
	if st != session.Authenticated || a.profiles == nil {
		fmt.Fprintln(a.out, "Datastore check: skipped, not signed in")
		return
	}
	p, err := a.profiles.Current(ctx)
	if err != nil {
		a.logger.Warn(ctx, "datastore check failed", "error", err)
		fmt.Fprintf(a.out, "Datastore check: failed: %v\n", err)
		return
	}
	fmt.Fprintf(a.out, "Datastore check: ok, profile %s\n", p.DisplayName())
}
