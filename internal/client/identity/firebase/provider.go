// Package firebase is an identity.Provider backed by the Firebase Auth REST
// API (Identity Toolkit for password sign-in and sign-up, Secure Token for
// refresh).
package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/dares/internal/client/identity"
)

const (
	DefaultIdentityEndpoint = "https://identitytoolkit.googleapis.com"
	DefaultTokenEndpoint    = "https://securetoken.googleapis.com"
	defaultTimeout          = 10 * time.Second
)

// Config holds the web app credentials.
type Config struct {
	APIKey           string
	IdentityEndpoint string
	TokenEndpoint    string
	Timeout          time.Duration
}

// Provider implements identity.Provider.
type Provider struct {
	apiKey      string
	identityURL string
	tokenURL    string
	http        *http.Client
	now         func() time.Time
}

var _ identity.Provider = (*Provider)(nil)

// New creates a provider. Empty endpoints fall back to Google's.
func New(cfg Config) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	identityURL := cfg.IdentityEndpoint
	if identityURL == "" {
		identityURL = DefaultIdentityEndpoint
	}
	tokenURL := cfg.TokenEndpoint
	if tokenURL == "" {
		tokenURL = DefaultTokenEndpoint
	}
	return &Provider{
		apiKey:      cfg.APIKey,
		identityURL: strings.TrimRight(identityURL, "/"),
		tokenURL:    strings.TrimRight(tokenURL, "/"),
		http:        &http.Client{Timeout: timeout},
		now:         time.Now,
	}
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type passwordResponse struct {
	IDToken      string `json:"idToken"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*identity.Principal, error) {
	return p.password(ctx, "accounts:signInWithPassword", email, password)
}

func (p *Provider) SignUp(ctx context.Context, email, password string) (*identity.Principal, error) {
	return p.password(ctx, "accounts:signUp", email, password)
}

func (p *Provider) password(ctx context.Context, method, email, password string) (*identity.Principal, error) {
	if p.apiKey == "" {
		return nil, identity.NewProviderError(identity.CodeInvalidAPIKey, "API key is empty")
	}
	body, err := json.Marshal(passwordRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, &identity.ProviderError{Code: identity.CodeInternal, Err: err}
	}
	reqURL := fmt.Sprintf("%s/v1/%s?key=%s", p.identityURL, method, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, &identity.ProviderError{Code: identity.CodeInternal, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var out passwordResponse
	if err := p.do(req, &out); err != nil {
		return nil, err
	}

	pr := &identity.Principal{
		UID:          out.LocalID,
		Email:        out.Email,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    p.expiry(out.ExpiresIn),
	}
	if pr.Email == "" {
		pr.Email = email
	}
	return pr, nil
}

func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*identity.Principal, error) {
	if p.apiKey == "" {
		return nil, identity.NewProviderError(identity.CodeInvalidAPIKey, "API key is empty")
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	reqURL := fmt.Sprintf("%s/v1/token?key=%s", p.tokenURL, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &identity.ProviderError{Code: identity.CodeInternal, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out refreshResponse
	if err := p.do(req, &out); err != nil {
		return nil, err
	}
	pr := &identity.Principal{
		UID:          out.UserID,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    p.expiry(out.ExpiresIn),
	}
	if claims, err := identity.PrincipalFromToken(out.IDToken, ""); err == nil {
		pr.Email = claims.Email
		if pr.UID == "" {
			pr.UID = claims.UID
		}
	}
	return pr, nil
}

// SignOut is local for Firebase: ID tokens simply stop being refreshed.
func (p *Provider) SignOut(ctx context.Context, _ *identity.Principal) error {
	return nil
}

func (p *Provider) expiry(expiresIn string) time.Time {
	secs, err := strconv.Atoi(expiresIn)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return p.now().Add(time.Duration(secs) * time.Second)
}

func (p *Provider) do(req *http.Request, out any) error {
	resp, err := p.http.Do(req)
	if err != nil {
		return &identity.ProviderError{Code: identity.CodeNetworkRequestFailed, Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &identity.ProviderError{Code: identity.CodeInternal, Detail: "failed to decode response", Err: err}
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Error.Message == "" {
		return identity.NewProviderError(identity.CodeInternal, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
	return identity.NewProviderError(codeFor(er.Error.Message), er.Error.Message)
}

// codeFor maps REST error messages ("EMAIL_EXISTS", "WEAK_PASSWORD : ...")
// onto client SDK codes.
func codeFor(message string) string {
	if strings.HasPrefix(message, "API key not valid") {
		return identity.CodeAPIKeyNotValid
	}
	key, _, _ := strings.Cut(message, " : ")
	switch strings.TrimSpace(key) {
	case "INVALID_API_KEY":
		return identity.CodeInvalidAPIKey
	case "CONFIGURATION_NOT_FOUND", "PROJECT_NOT_FOUND":
		return identity.CodeConfigurationNotFound
	case "EMAIL_EXISTS":
		return identity.CodeEmailAlreadyInUse
	case "EMAIL_NOT_FOUND", "USER_NOT_FOUND":
		return identity.CodeUserNotFound
	case "INVALID_PASSWORD":
		return identity.CodeWrongPassword
	case "INVALID_LOGIN_CREDENTIALS":
		return identity.CodeInvalidCredential
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return identity.CodeInvalidEmail
	case "WEAK_PASSWORD", "MISSING_PASSWORD":
		return identity.CodeWeakPassword
	case "USER_DISABLED":
		return identity.CodeUserDisabled
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return identity.CodeTooManyRequests
	case "TOKEN_EXPIRED", "INVALID_REFRESH_TOKEN", "INVALID_ID_TOKEN", "USER_NOT_FOUND_OR_TOKEN_EXPIRED":
		return identity.CodeTokenExpired
	}
	return identity.CodeInternal
}
