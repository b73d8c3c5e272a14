package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/dares/internal/common"
)

// Provider is the remote identity service.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Principal, error)
	SignUp(ctx context.Context, email, password string) (*Principal, error)
	// Refresh exchanges a refresh token for a fresh ID token. The returned
	// principal may omit Email.
	Refresh(ctx context.Context, refreshToken string) (*Principal, error)
	SignOut(ctx context.Context, p *Principal) error
}

// Provider error codes, in the auth/<reason> form used by Firebase clients.
const (
	CodeInvalidAPIKey         = "auth/invalid-api-key"
	CodeAPIKeyNotValid        = "auth/api-key-not-valid"
	CodeConfigurationNotFound = "auth/configuration-not-found"
	CodeEmailAlreadyInUse     = "auth/email-already-in-use"
	CodeInvalidCredential     = "auth/invalid-credential"
	CodeInvalidEmail          = "auth/invalid-email"
	CodeUserNotFound          = "auth/user-not-found"
	CodeWrongPassword         = "auth/wrong-password"
	CodeWeakPassword          = "auth/weak-password"
	CodeUserDisabled          = "auth/user-disabled"
	CodeTooManyRequests       = "auth/too-many-requests"
	CodeTokenExpired          = "auth/user-token-expired"
	CodeNetworkRequestFailed  = "auth/network-request-failed"
	CodeInternal              = "auth/internal-error"
)

var messages = map[string]string{
	CodeInvalidAPIKey:         "Invalid identity provider API key. Please check your configuration.",
	CodeAPIKeyNotValid:        "Identity provider API key is not valid. Please check your provider configuration.",
	CodeConfigurationNotFound: "Identity provider is not configured for this project. Please check your configuration.",
	CodeEmailAlreadyInUse:     "An account with this email already exists.",
	CodeInvalidCredential:     "Invalid email or password.",
	CodeInvalidEmail:          "The email address is not valid.",
	CodeUserNotFound:          "No account found for this email.",
	CodeWrongPassword:         "Invalid email or password.",
	CodeWeakPassword:          "Password should be at least 6 characters.",
	CodeUserDisabled:          "This account has been disabled.",
	CodeTooManyRequests:       "Too many attempts. Please try again later.",
	CodeTokenExpired:          "Your session has expired. Please log in again.",
	CodeNetworkRequestFailed:  "Could not reach the identity provider.",
}

// ProviderError is a failure reported by the identity provider.
type ProviderError struct {
	Code string
	// Detail is the provider's raw message, kept for logs.
	Detail string
	Err    error
}

// NewProviderError builds a ProviderError for code.
func NewProviderError(code, detail string) *ProviderError {
	return &ProviderError{Code: code, Detail: detail}
}

// Error returns the human-readable message for the code.
func (e *ProviderError) Error() string {
	if m, ok := messages[e.Code]; ok {
		return m
	}
	if e.Detail != "" {
		return fmt.Sprintf("authentication failed: %s", e.Detail)
	}
	return fmt.Sprintf("authentication failed (%s)", e.Code)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Configuration reports whether the failure is a provider misconfiguration.
func (e *ProviderError) Configuration() bool {
	switch e.Code {
	case CodeInvalidAPIKey, CodeAPIKeyNotValid, CodeConfigurationNotFound:
		return true
	}
	return false
}

// Revoked reports whether the provider rejected the session itself, as
// opposed to failing to serve the request.
func (e *ProviderError) Revoked() bool {
	switch e.Code {
	case CodeTokenExpired, CodeUserNotFound, CodeUserDisabled:
		return true
	}
	return false
}

// Is lets callers match common.ErrConfiguration and common.ErrAuthentication.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case common.ErrConfiguration:
		return e.Configuration()
	case common.ErrAuthentication:
		return !e.Configuration() && e.Code != CodeNetworkRequestFailed
	}
	return false
}

// CodeOf returns the provider code carried by err, or "".
func CodeOf(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
