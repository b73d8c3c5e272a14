package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/dares/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider records calls and returns canned principals.
type fakeProvider struct {
	mu sync.Mutex

	SignInErr  error
	SignUpErr  error
	RefreshErr error
	SignOutErr error

	Expires time.Time

	SignInCalls  int
	RefreshCalls int
	SignOutCalls int

	LastRefreshToken string
	LastSignOut      *Principal
}

func (f *fakeProvider) principal(uid, email string) *Principal {
	return &Principal{UID: uid, Email: email, IDToken: "id-" + uid, RefreshToken: "rt-" + uid, ExpiresAt: f.Expires}
}

func (f *fakeProvider) SignIn(ctx context.Context, email, password string) (*Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SignInCalls++
	if f.SignInErr != nil {
		return nil, f.SignInErr
	}
	return f.principal("uid-"+email, email), nil
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password string) (*Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SignUpErr != nil {
		return nil, f.SignUpErr
	}
	return f.principal("uid-"+email, email), nil
}

func (f *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RefreshCalls++
	f.LastRefreshToken = refreshToken
	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	return &Principal{IDToken: "refreshed-" + refreshToken, ExpiresAt: f.Expires}, nil
}

func (f *fakeProvider) SignOut(ctx context.Context, p *Principal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SignOutCalls++
	f.LastSignOut = p
	return f.SignOutErr
}

type memStore struct {
	s       *Session
	LoadErr error
	SaveErr error
	Cleared int
	Saved   int
}

func (m *memStore) Load(ctx context.Context) (*Session, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.s == nil {
		return nil, nil
	}
	cp := *m.s
	return &cp, nil
}

func (m *memStore) Save(ctx context.Context, s Session) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saved++
	m.s = &s
	return nil
}

func (m *memStore) Clear(ctx context.Context) error {
	m.Cleared++
	m.s = nil
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(ctx context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.State
	}
	return out
}

func TestOnStateChange_FiresCurrentStateImmediately(t *testing.T) {
	ctx := context.Background()
	c := NewClient(&fakeProvider{}, nil, nil)

	r := &recorder{}
	unsub := c.OnStateChange(ctx, r.listen)
	require.Equal(t, []State{StateSignedOut}, r.states())

	_, err := c.SignIn(ctx, "a@x.io", "pw")
	require.NoError(t, err)

	late := &recorder{}
	c.OnStateChange(ctx, late.listen)
	require.Equal(t, []State{StateSignedIn}, late.states())
	assert.Equal(t, "uid-a@x.io", late.events[0].Principal.UID)

	unsub()
	require.NoError(t, c.SignOut(ctx))
	assert.Equal(t, []State{StateSignedOut, StateSignedIn}, r.states())
	assert.Equal(t, []State{StateSignedIn, StateSignedOut}, late.states())
}

func TestSignIn_PersistsSession(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	c := NewClient(&fakeProvider{}, store, nil)

	p, err := c.SignIn(ctx, "a@x.io", "pw")
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", p.Email)
	require.NotNil(t, store.s)
	assert.Equal(t, Session{UID: "uid-a@x.io", Email: "a@x.io", RefreshToken: "rt-uid-a@x.io"}, *store.s)
	assert.Equal(t, StateSignedIn, c.State())
}

func TestSignIn_PersistFailureIsNotFatal(t *testing.T) {
	c := NewClient(&fakeProvider{}, &memStore{SaveErr: errors.New("disk full")}, nil)
	_, err := c.SignIn(context.Background(), "a@x.io", "pw")
	require.NoError(t, err)
	require.NotNil(t, c.Current())
}

func TestSignIn_AuthErrorStaysSignedOut(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{SignInErr: NewProviderError(CodeInvalidCredential, "INVALID_LOGIN_CREDENTIALS")}
	c := NewClient(fp, nil, nil)
	r := &recorder{}
	c.OnStateChange(ctx, r.listen)

	_, err := c.SignIn(ctx, "a@x.io", "bad")
	require.ErrorIs(t, err, common.ErrAuthentication)
	assert.Nil(t, c.Current())
	assert.Equal(t, []State{StateSignedOut}, r.states())
}

func TestSignIn_ConfigurationErrorBroadcasts(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{SignInErr: NewProviderError(CodeInvalidAPIKey, "")}
	c := NewClient(fp, nil, nil)
	r := &recorder{}
	c.OnStateChange(ctx, r.listen)

	_, err := c.SignIn(ctx, "a@x.io", "pw")
	require.ErrorIs(t, err, common.ErrConfiguration)
	require.Equal(t, []State{StateSignedOut, StateError}, r.states())
	assert.ErrorIs(t, r.events[1].Err, common.ErrConfiguration)
	assert.Equal(t, StateError, c.State())
}

func TestSignUp(t *testing.T) {
	c := NewClient(&fakeProvider{}, nil, nil)
	p, err := c.SignUp(context.Background(), "n@x.io", "pw")
	require.NoError(t, err)
	assert.Equal(t, "uid-n@x.io", p.UID)

	c = NewClient(&fakeProvider{SignUpErr: NewProviderError(CodeEmailAlreadyInUse, "EMAIL_EXISTS")}, nil, nil)
	_, err = c.SignUp(context.Background(), "n@x.io", "pw")
	require.Error(t, err)
	assert.Equal(t, CodeEmailAlreadyInUse, CodeOf(err))
}

func TestSignOut_CallsProviderAndClearsStore(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{SignOutErr: errors.New("offline")}
	store := &memStore{}
	c := NewClient(fp, store, nil)

	_, err := c.SignIn(ctx, "a@x.io", "pw")
	require.NoError(t, err)

	err = c.SignOut(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")
	assert.Equal(t, 1, fp.SignOutCalls)
	assert.Equal(t, "uid-a@x.io", fp.LastSignOut.UID)
	assert.Equal(t, 1, store.Cleared)
	assert.Nil(t, c.Current())
	assert.Equal(t, StateSignedOut, c.State())
}

func TestSignOut_WhenSignedOutSkipsProvider(t *testing.T) {
	fp := &fakeProvider{}
	c := NewClient(fp, nil, nil)
	require.NoError(t, c.SignOut(context.Background()))
	assert.Equal(t, 0, fp.SignOutCalls)
}

func TestToken_NotSignedIn(t *testing.T) {
	c := NewClient(&fakeProvider{}, nil, nil)
	_, err := c.Token(context.Background(), false)
	require.ErrorIs(t, err, common.ErrNotSignedIn)
}

func TestToken_CachedUntilForced(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{Expires: time.Now().Add(time.Hour)}
	c := NewClient(fp, nil, nil)
	_, err := c.SignIn(ctx, "a@x.io", "pw")
	require.NoError(t, err)

	tok, err := c.Token(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "id-uid-a@x.io", tok)
	assert.Equal(t, 0, fp.RefreshCalls)

	tok, err = c.Token(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-rt-uid-a@x.io", tok)
	assert.Equal(t, 1, fp.RefreshCalls)

	cur := c.Current()
	assert.Equal(t, "uid-a@x.io", cur.UID)
	assert.Equal(t, "a@x.io", cur.Email)
	assert.Equal(t, "rt-uid-a@x.io", cur.RefreshToken)
}

func TestToken_RefreshesNearExpiry(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{Expires: time.Now().Add(30 * time.Second)}
	c := NewClient(fp, nil, nil)
	_, err := c.SignIn(ctx, "a@x.io", "pw")
	require.NoError(t, err)

	_, err = c.Token(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, fp.RefreshCalls)
}

func TestToken_RefreshFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	fp := &fakeProvider{}
	c := NewClient(fp, nil, nil)
	_, err := c.SignIn(ctx, "a@x.io", "pw")
	require.NoError(t, err)

	fp.RefreshErr = NewProviderError(CodeNetworkRequestFailed, "dial tcp")
	_, err = c.Token(ctx, true)
	require.Error(t, err)
	require.NotNil(t, c.Current())

	fp.RefreshErr = nil
	tok, err := c.Token(ctx, true)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	c := NewClient(&fakeProvider{}, nil, nil)
	p, err := c.Restore(ctx)
	require.NoError(t, err)
	require.Nil(t, p)

	c = NewClient(&fakeProvider{}, &memStore{}, nil)
	p, err = c.Restore(ctx)
	require.NoError(t, err)
	require.Nil(t, p)

	fp := &fakeProvider{}
	store := &memStore{s: &Session{UID: "u1", Email: "a@x.io", RefreshToken: "rt1"}}
	c = NewClient(fp, store, nil)
	r := &recorder{}
	c.OnStateChange(ctx, r.listen)
	p, err = c.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "u1", p.UID)
	assert.Equal(t, "a@x.io", p.Email)
	assert.Equal(t, "rt1", fp.LastRefreshToken)
	assert.Equal(t, []State{StateSignedOut, StateSignedIn}, r.states())
}

func TestRestore_RevokedSessionIsCleared(t *testing.T) {
	fp := &fakeProvider{RefreshErr: NewProviderError(CodeTokenExpired, "TOKEN_EXPIRED")}
	store := &memStore{s: &Session{UID: "u1", RefreshToken: "rt1"}}
	c := NewClient(fp, store, nil)

	_, err := c.Restore(context.Background())
	require.ErrorIs(t, err, common.ErrAuthentication)
	assert.Nil(t, store.s)
	assert.Nil(t, c.Current())
}

func TestRestore_OutageKeepsStoredSession(t *testing.T) {
	for _, code := range []string{CodeInternal, CodeNetworkRequestFailed, CodeTooManyRequests} {
		t.Run(code, func(t *testing.T) {
			fp := &fakeProvider{RefreshErr: NewProviderError(code, "HTTP 503")}
			store := &memStore{s: &Session{UID: "u1", RefreshToken: "rt1"}}
			c := NewClient(fp, store, nil)

			_, err := c.Restore(context.Background())
			require.Error(t, err)
			require.NotNil(t, store.s)
			assert.Equal(t, "rt1", store.s.RefreshToken)
			assert.Equal(t, 0, store.Cleared)
		})
	}
}

func TestProviderError_Revoked(t *testing.T) {
	for _, code := range []string{CodeTokenExpired, CodeUserNotFound, CodeUserDisabled} {
		assert.True(t, NewProviderError(code, "").Revoked(), code)
	}
	for _, code := range []string{CodeInternal, CodeNetworkRequestFailed, CodeInvalidAPIKey, CodeWrongPassword} {
		assert.False(t, NewProviderError(code, "").Revoked(), code)
	}
}

func TestRestore_LoadError(t *testing.T) {
	c := NewClient(&fakeProvider{}, &memStore{LoadErr: errors.New("locked")}, nil)
	_, err := c.Restore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load session")
}

func TestProviderError(t *testing.T) {
	cfg := NewProviderError(CodeAPIKeyNotValid, "API key not valid")
	assert.True(t, errors.Is(cfg, common.ErrConfiguration))
	assert.False(t, errors.Is(cfg, common.ErrAuthentication))
	assert.Contains(t, cfg.Error(), "configuration")

	inv := NewProviderError(CodeInvalidAPIKey, "")
	assert.Contains(t, inv.Error(), "configuration")

	auth := NewProviderError(CodeWeakPassword, "WEAK_PASSWORD")
	assert.True(t, errors.Is(auth, common.ErrAuthentication))
	assert.Equal(t, "Password should be at least 6 characters.", auth.Error())

	net := NewProviderError(CodeNetworkRequestFailed, "")
	assert.False(t, errors.Is(net, common.ErrAuthentication))

	unknown := NewProviderError("auth/strange", "SOMETHING")
	assert.Equal(t, "authentication failed: SOMETHING", unknown.Error())
	assert.Equal(t, "authentication failed (auth/strange)", NewProviderError("auth/strange", "").Error())

	inner := errors.New("inner")
	wrapped := &ProviderError{Code: CodeInternal, Err: inner}
	assert.ErrorIs(t, wrapped, inner)
	assert.Equal(t, "", CodeOf(errors.New("x")))
}

func TestPrincipalFromToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(exp)},
		Email:            "a@x.io",
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	p, err := PrincipalFromToken(tok, "rt")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UID)
	assert.Equal(t, "a@x.io", p.Email)
	assert.Equal(t, "rt", p.RefreshToken)
	assert.True(t, exp.Equal(p.ExpiresAt))

	legacy, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u2"}).SignedString([]byte("k"))
	require.NoError(t, err)
	p, err = PrincipalFromToken(legacy, "")
	require.NoError(t, err)
	assert.Equal(t, "u2", p.UID)

	_, err = PrincipalFromToken("", "")
	require.Error(t, err)
	_, err = PrincipalFromToken("garbage", "")
	require.Error(t, err)
	nosub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Email: "x"}).SignedString([]byte("k"))
	_, err = PrincipalFromToken(nosub, "")
	require.Error(t, err)
}
