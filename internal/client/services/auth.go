package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/dmitrijs2005/dares/internal/client/identity"
	"github.com/dmitrijs2005/dares/internal/common"
	"github.com/dmitrijs2005/dares/internal/logging"
)

// Identity is the part of identity.Client the auth service drives.
type Identity interface {
	SignIn(ctx context.Context, email, password string) (*identity.Principal, error)
	SignUp(ctx context.Context, email, password string) (*identity.Principal, error)
	Restore(ctx context.Context) (*identity.Principal, error)
	Current() *identity.Principal
}

// Authenticator is the part of session.Bridge the auth service drives.
type Authenticator interface {
	Authenticate(ctx context.Context, attempt func(ctx context.Context) error) (string, error)
	SignOut(ctx context.Context) error
	AuthError() error
}

// AuthService defines authentication operations for the CLI.
//
// Login and Register return the datastore bearer installed by the session
// once the identity provider accepted the credentials.
type AuthService interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context) error
	Restore(ctx context.Context) (*identity.Principal, error)
	Whoami() *identity.Principal
}

type authService struct {
	ident  Identity
	bridge Authenticator
	logger logging.Logger
}

// NewAuthService wires the identity client to the session bridge.
func NewAuthService(ident Identity, bridge Authenticator, logger logging.Logger) AuthService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &authService{ident: ident, bridge: bridge, logger: logger.With("service", "auth")}
}

// ErrNoCredential means sign-in succeeded but no datastore client could be
// installed for it.
var ErrNoCredential = errors.New("signed in, but no datastore credential was installed")

func (a *authService) Login(ctx context.Context, email, password string) (string, error) {
	email, err := checkCredentials(email, password)
	if err != nil {
		return "", err
	}
	return a.authenticate(ctx, "login", func(ctx context.Context) error {
		_, err := a.ident.SignIn(ctx, email, password)
		return err
	})
}

func (a *authService) Register(ctx context.Context, email, password string) (string, error) {
	email, err := checkCredentials(email, password)
	if err != nil {
		return "", err
	}
	return a.authenticate(ctx, "register", func(ctx context.Context) error {
		_, err := a.ident.SignUp(ctx, email, password)
		return err
	})
}

func (a *authService) authenticate(ctx context.Context, op string, attempt func(ctx context.Context) error) (string, error) {
	token, err := a.bridge.Authenticate(ctx, attempt)
	if err != nil {
		a.logger.Warn(ctx, op+" failed", "code", identity.CodeOf(err), "error", err)
		return "", err
	}
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

// Logout drops the datastore credential, signs out of the provider and
// forgets the persisted session.
func (a *authService) Logout(ctx context.Context) error {
	if err := a.bridge.SignOut(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Restore resumes a session persisted by an earlier run. (nil, nil) means
// there was nothing to resume.
func (a *authService) Restore(ctx context.Context) (*identity.Principal, error) {
	if err := a.bridge.AuthError(); err != nil {
		return nil, err
	}
	p, err := a.ident.Restore(ctx)
	if err != nil {
		a.logger.Warn(ctx, "session restore failed", "error", err)
		return nil, err
	}
	return p, nil
}

func (a *authService) Whoami() *identity.Principal {
	return a.ident.Current()
}

func checkCredentials(email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", fmt.Errorf("%w: email and password are required", common.ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: %q is not a valid email address", common.ErrValidation, email)
	}
	return email, nil
}
