package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/dares/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for an email and password and creates a new account.
// A successful sign-up also signs the user in.
func (a *App) Register(ctx context.Context) error {
	email, password, err := a.credentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if _, err := a.authService.Register(ctx, email, string(password)); err != nil {
		return a.authFailed(ctx, "register", err)
	}
	fmt.Fprintf(a.out, "Account created, signed in as %s\n", email)
	return nil
}

// Login prompts for credentials and signs in.
//
// Configuration errors are reported as such and are not worth retrying;
// any other failure leaves the user signed out and free to try again.
func (a *App) Login(ctx context.Context) error {
	email, password, err := a.credentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if _, err := a.authService.Login(ctx, email, string(password)); err != nil {
		return a.authFailed(ctx, "login", err)
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", email)
	return nil
}

func (a *App) credentials() (string, []byte, error) {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return "", nil, err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return "", nil, err
	}
	return email, password, nil
}

func (a *App) authFailed(ctx context.Context, op string, err error) error {
	if errors.Is(err, common.ErrConfiguration) {
		a.logger.Error(ctx, op+" failed", "error", err)
		return fmt.Errorf("%w (check the identity settings with 'status')", err)
	}
	a.logger.Info(ctx, op+" failed", "error", err)
	return err
}

// Logout signs out of both backends.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

// Whoami prints the signed-in principal.
func (a *App) Whoami(ctx context.Context) error {
	p := a.authService.Whoami()
	if p == nil {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}
	fmt.Fprintf(a.out, "%s (uid %s)\n", p.Email, p.UID)
	return nil
}
