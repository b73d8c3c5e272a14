package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/dares/internal/common"
	"github.com/dmitrijs2005/dares/internal/logging"
)

// State is the identity client's coarse state.
type State int

const (
	StateSignedOut State = iota
	StateSignedIn
	StateError
)

func (s State) String() string {
	switch s {
	case StateSignedIn:
		return "signed-in"
	case StateError:
		return "error"
	default:
		return "signed-out"
	}
}

// Event is delivered to state-change subscribers. Principal is set for
// StateSignedIn, Err for StateError.
type Event struct {
	State     State
	Principal *Principal
	Err       error
}

// Listener receives identity events. It runs on the goroutine that caused
// the transition and must not block for long.
type Listener func(ctx context.Context, ev Event)

// Session is the persisted part of a principal.
type Session struct {
	UID          string
	Email        string
	RefreshToken string
}

// SessionStore persists the session between runs.
type SessionStore interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// expirySkew makes a non-forced Token refresh slightly before expiry.
const expirySkew = time.Minute

// Client tracks the signed-in principal.
type Client struct {
	provider Provider
	store    SessionStore
	logger   logging.Logger

	mu        sync.Mutex
	current   *Principal
	last      Event
	listeners map[int]Listener
	nextID    int
}

// NewClient creates a signed-out client. store may be nil.
func NewClient(provider Provider, store SessionStore, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		provider:  provider,
		store:     store,
		logger:    logger,
		last:      Event{State: StateSignedOut},
		listeners: make(map[int]Listener),
	}
}

// OnStateChange subscribes fn and immediately delivers the current state.
// The returned func unsubscribes.
func (c *Client) OnStateChange(ctx context.Context, fn Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	ev := c.snapshotLocked()
	c.mu.Unlock()

	fn(ctx, ev)

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) snapshotLocked() Event {
	ev := c.last
	ev.Principal = ev.Principal.clone()
	return ev
}

// Current returns a copy of the signed-in principal, or nil.
func (c *Client) Current() *Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.clone()
}

// State reports the most recent event state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.State
}

// SignIn authenticates with email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Principal, error) {
	p, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, c.fail(ctx, err)
	}
	c.signedIn(ctx, p)
	return p.clone(), nil
}

// SignUp registers a new account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Principal, error) {
	p, err := c.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, c.fail(ctx, err)
	}
	c.signedIn(ctx, p)
	return p.clone(), nil
}

// SignOut ends the session at the provider and wipes the persisted copy.
// Subscribers are notified even when the provider call fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	p := c.current
	c.current = nil
	c.mu.Unlock()

	var errs []error
	if p != nil {
		if err := c.provider.SignOut(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("provider sign-out: %w", err))
		}
	}
	if c.store != nil {
		if err := c.store.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear session: %w", err))
		}
	}
	c.emit(ctx, Event{State: StateSignedOut})
	return errors.Join(errs...)
}

// Restore resumes a persisted session. It returns (nil, nil) when there is
// nothing to restore.
func (c *Client) Restore(ctx context.Context) (*Principal, error) {
	if c.store == nil {
		return nil, nil
	}
	s, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s == nil || s.RefreshToken == "" {
		return nil, nil
	}

	p, err := c.provider.Refresh(ctx, s.RefreshToken)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Revoked() {
			if cerr := c.store.Clear(ctx); cerr != nil {
				c.logger.Warn(ctx, "failed to clear stale session", "error", cerr)
			}
		}
		return nil, c.fail(ctx, err)
	}
	if p.UID == "" {
		p.UID = s.UID
	}
	if p.Email == "" {
		p.Email = s.Email
	}
	c.signedIn(ctx, p)
	return p.clone(), nil
}

// Token returns the current ID token. With force, or when the token is
// about to expire, a new one is fetched from the provider first.
func (c *Client) Token(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	p := c.current.clone()
	c.mu.Unlock()

	if p == nil {
		return "", common.ErrNotSignedIn
	}
	if !force && p.IDToken != "" && (p.ExpiresAt.IsZero() || time.Now().Add(expirySkew).Before(p.ExpiresAt)) {
		return p.IDToken, nil
	}

	fresh, err := c.provider.Refresh(ctx, p.RefreshToken)
	if err != nil {
		return "", c.fail(ctx, err)
	}
	if fresh.UID == "" {
		fresh.UID = p.UID
	}
	if fresh.Email == "" {
		fresh.Email = p.Email
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = p.RefreshToken
	}

	c.mu.Lock()
	// a sign-out or a different sign-in raced us; do not resurrect
	if c.current == nil || c.current.UID != p.UID {
		c.mu.Unlock()
		return "", common.ErrNotSignedIn
	}
	c.current = fresh
	if c.last.State == StateSignedIn {
		c.last.Principal = fresh.clone()
	}
	c.mu.Unlock()

	if fresh.RefreshToken != p.RefreshToken {
		c.persist(ctx, fresh)
	}
	return fresh.IDToken, nil
}

func (c *Client) signedIn(ctx context.Context, p *Principal) {
	c.mu.Lock()
	c.current = p.clone()
	c.mu.Unlock()

	c.persist(ctx, p)
	c.emit(ctx, Event{State: StateSignedIn, Principal: p.clone()})
}

func (c *Client) persist(ctx context.Context, p *Principal) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, Session{UID: p.UID, Email: p.Email, RefreshToken: p.RefreshToken}); err != nil {
		c.logger.Warn(ctx, "failed to persist session", "uid", p.UID, "error", err)
	}
}

// fail broadcasts configuration errors; other errors are only returned.
func (c *Client) fail(ctx context.Context, err error) error {
	if errors.Is(err, common.ErrConfiguration) {
		c.logger.Error(ctx, "identity provider misconfigured", "error", err)
		c.emit(ctx, Event{State: StateError, Err: err})
	}
	return err
}

func (c *Client) emit(ctx context.Context, ev Event) {
	c.mu.Lock()
	c.last = ev
	c.last.Principal = ev.Principal.clone()
	ls := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	c.mu.Unlock()

	for _, l := range ls {
		l(ctx, ev)
	}
}
