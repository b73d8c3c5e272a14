// Package local is an in-process identity.Provider for development and
// tests. It keeps accounts in memory, hashes passwords with bcrypt and
// issues HS256 ID and refresh tokens, so a configured datastore sees tokens
// shaped like the hosted provider's.
package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/dares/internal/client/identity"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	IDTokenTTL      = time.Hour
	RefreshTokenTTL = 30 * 24 * time.Hour
	issuer          = "dares-local"
	minPassword     = 6
)

// token_use values
const (
	useID      = "id"
	useRefresh = "refresh"
)

// Claims carried by both token kinds.
type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email,omitempty"`
	TokenUse string `json:"token_use"`
}

type account struct {
	uid  string
	hash []byte
}

// Provider implements identity.Provider.
type Provider struct {
	key  []byte
	cost int
	now  func() time.Time

	mu       sync.Mutex
	accounts map[string]account
	revoked  map[string]struct{}
}

var _ identity.Provider = (*Provider)(nil)

// New creates a provider signing with key.
func New(key []byte) *Provider {
	return &Provider{
		key:      key,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		accounts: make(map[string]account),
		revoked:  make(map[string]struct{}),
	}
}

// Seed adds an account up front, e.g. the development test user.
func (p *Provider) Seed(email, password string) (string, error) {
	pr, err := p.SignUp(context.Background(), email, password)
	if err != nil {
		return "", err
	}
	return pr.UID, nil
}

func (p *Provider) SignUp(ctx context.Context, email, password string) (*identity.Principal, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, identity.NewProviderError(identity.CodeInvalidEmail, "INVALID_EMAIL")
	}
	if len(password) < minPassword {
		return nil, identity.NewProviderError(identity.CodeWeakPassword, "WEAK_PASSWORD")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, &identity.ProviderError{Code: identity.CodeInternal, Err: err}
	}

	p.mu.Lock()
	if _, ok := p.accounts[email]; ok {
		p.mu.Unlock()
		return nil, identity.NewProviderError(identity.CodeEmailAlreadyInUse, "EMAIL_EXISTS")
	}
	acc := account{uid: uuid.NewString(), hash: hash}
	p.accounts[email] = acc
	p.mu.Unlock()

	return p.issue(acc.uid, email)
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*identity.Principal, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	email = normalizeEmail(email)

	p.mu.Lock()
	acc, ok := p.accounts[email]
	p.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		return nil, identity.NewProviderError(identity.CodeInvalidCredential, "INVALID_LOGIN_CREDENTIALS")
	}
	return p.issue(acc.uid, email)
}

func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*identity.Principal, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	c, err := p.Verify(refreshToken, useRefresh)
	if err != nil {
		return nil, identity.NewProviderError(identity.CodeTokenExpired, err.Error())
	}

	p.mu.Lock()
	_, revoked := p.revoked[c.ID]
	p.mu.Unlock()
	if revoked {
		return nil, identity.NewProviderError(identity.CodeTokenExpired, "TOKEN_REVOKED")
	}

	id, exp, err := p.sign(c.Subject, c.Email, useID, IDTokenTTL)
	if err != nil {
		return nil, &identity.ProviderError{Code: identity.CodeInternal, Err: err}
	}
	return &identity.Principal{UID: c.Subject, Email: c.Email, IDToken: id, RefreshToken: refreshToken, ExpiresAt: exp}, nil
}

// SignOut revokes the principal's refresh token.
func (p *Provider) SignOut(ctx context.Context, pr *identity.Principal) error {
	if pr == nil || pr.RefreshToken == "" {
		return nil
	}
	c := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(pr.RefreshToken, c); err != nil {
		return nil
	}
	p.mu.Lock()
	p.revoked[c.ID] = struct{}{}
	p.mu.Unlock()
	return nil
}

// Verify checks signature, expiry and token use.
func (p *Provider) Verify(token, use string) (*Claims, error) {
	c := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (interface{}, error) {
		return p.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if c.TokenUse != use {
		return nil, fmt.Errorf("token use %q, want %q", c.TokenUse, use)
	}
	return c, nil
}

func (p *Provider) issue(uid, email string) (*identity.Principal, error) {
	id, exp, err := p.sign(uid, email, useID, IDTokenTTL)
	if err != nil {
		return nil, &identity.ProviderError{Code: identity.CodeInternal, Err: err}
	}
	rt, _, err := p.sign(uid, email, useRefresh, RefreshTokenTTL)
	if err != nil {
		return nil, &identity.ProviderError{Code: identity.CodeInternal, Err: err}
	}
	return &identity.Principal{UID: uid, Email: email, IDToken: id, RefreshToken: rt, ExpiresAt: exp}, nil
}

func (p *Provider) sign(uid, email, use string, ttl time.Duration) (string, time.Time, error) {
	now := p.now()
	exp := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:    email,
		TokenUse: use,
	})
	s, err := token.SignedString(p.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

func (p *Provider) ready() error {
	if len(p.key) == 0 {
		return identity.NewProviderError(identity.CodeConfigurationNotFound, "signing key is empty")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
