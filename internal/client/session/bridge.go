package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/dares/internal/client/datastore"
	"github.com/dmitrijs2005/dares/internal/client/identity"
	"github.com/dmitrijs2005/dares/internal/client/schedule"
	"github.com/dmitrijs2005/dares/internal/common"
	"github.com/dmitrijs2005/dares/internal/logging"
)

// Identity is the part of identity.Client the bridge consumes.
type Identity interface {
	OnStateChange(ctx context.Context, fn identity.Listener) func()
	Token(ctx context.Context, force bool) (string, error)
	Current() *identity.Principal
	SignOut(ctx context.Context) error
}

// ProfileSyncer keeps the signed-in user's profile row current.
type ProfileSyncer interface {
	SyncProfile(ctx context.Context) error
	TouchLastSeen(ctx context.Context) error
}

// Status is the bridge's view of the auth state machine.
type Status int

const (
	Unauthenticated Status = iota
	Authenticating
	Authenticated
	Failed
)

func (s Status) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "error"
	default:
		return "unauthenticated"
	}
}

// RefreshResult is the outcome of a token refresh. Token is empty when
// nobody is signed in or the refresh failed.
type RefreshResult struct {
	Token string
	Err   error
}

// OK reports whether a new token was installed.
func (r RefreshResult) OK() bool { return r.Token != "" }

// Options tune the background schedule.
type Options struct {
	RefreshInterval  time.Duration
	LivenessInterval time.Duration
	// TickTimeout bounds each background run; zero disables the bound.
	TickTimeout time.Duration
	Logger      logging.Logger
}

type slot struct {
	client datastore.Client
}

// Bridge implements datastore.Accessor.
type Bridge struct {
	ident   Identity
	factory datastore.Factory
	opts    Options
	logger  logging.Logger

	handle         atomic.Pointer[slot]
	authenticating atomic.Int32

	mu      sync.Mutex
	baseCtx context.Context
	syncer  ProfileSyncer
	tasks   []*schedule.Task
	authErr error
	unsub   func()
	closed  bool
}

var _ datastore.Accessor = (*Bridge)(nil)

// New builds a bridge holding an unauthenticated client.
func New(ident Identity, factory datastore.Factory, opts Options) (*Bridge, error) {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = common.DefaultRefreshInterval
	}
	if opts.LivenessInterval <= 0 {
		opts.LivenessInterval = common.DefaultLivenessInterval
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	b := &Bridge{ident: ident, factory: factory, opts: opts, logger: opts.Logger.With("component", "session")}

	anon, err := factory("")
	if err != nil {
		return nil, fmt.Errorf("unauthenticated datastore client: %w", err)
	}
	b.handle.Store(&slot{client: anon})
	return b, nil
}

// Start subscribes to identity changes. ctx is the lifetime of background
// tasks; syncer may be nil.
func (b *Bridge) Start(ctx context.Context, syncer ProfileSyncer) {
	b.mu.Lock()
	b.baseCtx = ctx
	b.syncer = syncer
	b.mu.Unlock()

	unsub := b.ident.OnStateChange(ctx, b.onIdentity)

	b.mu.Lock()
	b.unsub = unsub
	b.mu.Unlock()
}

// Current returns the most recently installed datastore client.
func (b *Bridge) Current() datastore.Client {
	return b.handle.Load().client
}

// Token is the bearer of the current client; empty when unauthenticated.
func (b *Bridge) Token() string {
	return b.Current().Token()
}

// AuthError is the terminal provider configuration error, if any.
func (b *Bridge) AuthError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.authErr
}

// Status reports where the auth state machine is.
func (b *Bridge) Status() Status {
	if b.AuthError() != nil {
		return Failed
	}
	if b.authenticating.Load() > 0 {
		return Authenticating
	}
	if b.Token() != "" {
		return Authenticated
	}
	return Unauthenticated
}

// Authenticate runs a sign-in or sign-up attempt, reporting Authenticating
// meanwhile, and returns the token installed as a result.
func (b *Bridge) Authenticate(ctx context.Context, attempt func(ctx context.Context) error) (string, error) {
	if err := b.AuthError(); err != nil {
		return "", err
	}
	b.authenticating.Add(1)
	defer b.authenticating.Add(-1)

	if err := attempt(ctx); err != nil {
		return "", err
	}
	if err := b.AuthError(); err != nil {
		return "", err
	}
	return b.Token(), nil
}

// Refresh force-refreshes the ID token and installs a new client.
func (b *Bridge) Refresh(ctx context.Context) RefreshResult {
	if b.ident.Current() == nil {
		return RefreshResult{}
	}
	token, err := b.ident.Token(ctx, true)
	if err != nil {
		return RefreshResult{Err: fmt.Errorf("token refresh: %w", err)}
	}
	if err := b.install(token); err != nil {
		return RefreshResult{Err: fmt.Errorf("datastore client rebuild: %w", err)}
	}
	b.logger.Debug(ctx, "token refreshed")
	return RefreshResult{Token: token}
}

// SignOut drops the datastore credential first, then signs out of the
// identity provider.
func (b *Bridge) SignOut(ctx context.Context) error {
	b.stopTasks(true)
	b.reset()
	return b.ident.SignOut(ctx)
}

// Close unsubscribes and waits for background tasks to finish.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	unsub := b.unsub
	b.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	b.stopTasks(true)
}

func (b *Bridge) onIdentity(ctx context.Context, ev identity.Event) {
	switch ev.State {
	case identity.StateSignedIn:
		b.signedIn(ctx, ev.Principal)
	case identity.StateSignedOut:
		b.stopTasks(true)
		b.reset()
	case identity.StateError:
		b.mu.Lock()
		b.authErr = ev.Err
		b.mu.Unlock()
		b.logger.Error(ctx, "identity provider unusable", "error", ev.Err)
		// may run on a refresh task's goroutine; do not wait on it
		b.stopTasks(false)
		b.reset()
	}
}

func (b *Bridge) signedIn(ctx context.Context, p *identity.Principal) {
	if err := b.AuthError(); err != nil {
		b.logger.Warn(ctx, "ignoring sign-in after configuration error", "error", err)
		return
	}

	token, err := b.ident.Token(ctx, true)
	if err != nil {
		if errors.Is(err, common.ErrConfiguration) || b.AuthError() != nil {
			b.logger.Error(ctx, "sign-in abandoned, identity provider misconfigured", "error", err)
			return
		}
		b.logger.Warn(ctx, "initial token refresh failed", "error", err)
		if p != nil {
			token = p.IDToken
		}
	}
	if token != "" {
		if err := b.install(token); err != nil {
			b.logger.Warn(ctx, "datastore client setup failed", "error", err)
		}
	}

	b.mu.Lock()
	syncer := b.syncer
	b.mu.Unlock()
	if syncer != nil {
		if err := syncer.SyncProfile(ctx); err != nil {
			b.logger.Warn(ctx, "profile sync failed", "error", err)
		}
	}

	b.startTasks()
	if p != nil {
		b.logger.Info(ctx, "signed in", "uid", p.UID)
	}
}

func (b *Bridge) install(token string) error {
	c, err := b.factory(token)
	if err != nil {
		return err
	}
	b.handle.Store(&slot{client: c})
	return nil
}

func (b *Bridge) reset() {
	c, err := b.factory("")
	if err != nil {
		// factories only fail on configuration, which New already checked
		b.logger.Error(context.Background(), "unauthenticated datastore client", "error", err)
		return
	}
	b.handle.Store(&slot{client: c})
}

func (b *Bridge) startTasks() {
	b.stopTasks(true)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	ctx := b.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	refresh := schedule.Every(ctx, "token-refresh", b.opts.RefreshInterval, b.opts.TickTimeout, b.refreshTick, b.logger)
	liveness := schedule.Every(ctx, "liveness", b.opts.LivenessInterval, b.opts.TickTimeout, b.livenessTick, b.logger)
	b.tasks = append(b.tasks, refresh, liveness)
}

func (b *Bridge) stopTasks(wait bool) {
	b.mu.Lock()
	tasks := b.tasks
	if wait {
		b.tasks = nil
	}
	b.mu.Unlock()

	for _, t := range tasks {
		if wait {
			t.Stop()
		} else {
			t.Cancel()
		}
	}
}

func (b *Bridge) refreshTick(ctx context.Context) error {
	return b.Refresh(ctx).Err
}

func (b *Bridge) livenessTick(ctx context.Context) error {
	b.mu.Lock()
	syncer := b.syncer
	b.mu.Unlock()
	if syncer == nil {
		return nil
	}
	if err := syncer.TouchLastSeen(ctx); err != nil && !errors.Is(err, common.ErrNotSignedIn) {
		return err
	}
	return nil
}
