package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/dares/internal/client/identity"
	"github.com/dmitrijs2005/dares/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

func newProvider(srvURL string) *Provider {
	p := New(Config{APIKey: "key-1", IdentityEndpoint: srvURL, TokenEndpoint: srvURL})
	p.now = fixedNow
	return p
}

func TestSignIn_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts:signInWithPassword", r.URL.Path)
		assert.Equal(t, "key-1", r.URL.Query().Get("key"))
		var req passwordRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, passwordRequest{Email: "a@x.io", Password: "pw", ReturnSecureToken: true}, req)

		_ = json.NewEncoder(w).Encode(passwordResponse{IDToken: "idt", Email: "a@x.io", RefreshToken: "rt", ExpiresIn: "3600", LocalID: "u1"})
	}))
	defer srv.Close()

	p, err := newProvider(srv.URL).SignIn(context.Background(), "a@x.io", "pw")
	require.NoError(t, err)
	assert.Equal(t, &identity.Principal{UID: "u1", Email: "a@x.io", IDToken: "idt", RefreshToken: "rt", ExpiresAt: fixedNow().Add(time.Hour)}, p)
}

func TestSignUp_UsesSignUpEndpoint(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewEncoder(w).Encode(passwordResponse{IDToken: "idt", RefreshToken: "rt", LocalID: "u2"})
	}))
	defer srv.Close()

	p, err := newProvider(srv.URL).SignUp(context.Background(), "n@x.io", "pw")
	require.NoError(t, err)
	assert.Equal(t, "/v1/accounts:signUp", path)
	assert.Equal(t, "n@x.io", p.Email)
	assert.True(t, p.ExpiresAt.IsZero())
}

func TestErrors_AreMapped(t *testing.T) {
	cases := []struct {
		message string
		code    string
		config  bool
	}{
		{"EMAIL_EXISTS", identity.CodeEmailAlreadyInUse, false},
		{"INVALID_LOGIN_CREDENTIALS", identity.CodeInvalidCredential, false},
		{"WEAK_PASSWORD : Password should be at least 6 characters", identity.CodeWeakPassword, false},
		{"TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account has been temporarily disabled", identity.CodeTooManyRequests, false},
		{"API key not valid. Please pass a valid API key.", identity.CodeAPIKeyNotValid, true},
		{"INVALID_API_KEY", identity.CodeInvalidAPIKey, true},
		{"CONFIGURATION_NOT_FOUND", identity.CodeConfigurationNotFound, true},
		{"SOMETHING_NEW", identity.CodeInternal, false},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":{"code":400,"message":"`+tc.message+`","status":"INVALID_ARGUMENT"}}`)
			}))
			defer srv.Close()

			_, err := newProvider(srv.URL).SignIn(context.Background(), "a@x.io", "pw")
			require.Error(t, err)
			assert.Equal(t, tc.code, identity.CodeOf(err))
			assert.Equal(t, tc.config, errors.Is(err, common.ErrConfiguration))
			if tc.config {
				assert.Contains(t, err.Error(), "configuration")
			}
		})
	}
}

func TestErrors_NonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newProvider(srv.URL).SignIn(context.Background(), "a@x.io", "pw")
	assert.Equal(t, identity.CodeInternal, identity.CodeOf(err))
	assert.Contains(t, err.Error(), "HTTP 503")
}

func TestEmptyAPIKey_NoNetwork(t *testing.T) {
	p := New(Config{IdentityEndpoint: "http://127.0.0.1:1"})
	_, err := p.SignIn(context.Background(), "a@x.io", "pw")
	require.ErrorIs(t, err, common.ErrConfiguration)
	assert.Equal(t, identity.CodeInvalidAPIKey, identity.CodeOf(err))

	_, err = p.Refresh(context.Background(), "rt")
	require.ErrorIs(t, err, common.ErrConfiguration)
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	u := srv.URL
	srv.Close()

	_, err := newProvider(u).SignIn(context.Background(), "a@x.io", "pw")
	assert.Equal(t, identity.CodeNetworkRequestFailed, identity.CodeOf(err))
	assert.False(t, errors.Is(err, common.ErrAuthentication))
}

func TestRefresh(t *testing.T) {
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "email": "a@x.io"}).SignedString([]byte("k"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/token", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-old", r.PostForm.Get("refresh_token"))
		_ = json.NewEncoder(w).Encode(refreshResponse{IDToken: idToken, RefreshToken: "rt-new", ExpiresIn: "3600", UserID: "u1"})
	}))
	defer srv.Close()

	p, err := newProvider(srv.URL).Refresh(context.Background(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UID)
	assert.Equal(t, "a@x.io", p.Email)
	assert.Equal(t, "rt-new", p.RefreshToken)
	assert.Equal(t, idToken, p.IDToken)
	assert.Equal(t, fixedNow().Add(time.Hour), p.ExpiresAt)
}

func TestRefresh_Expired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"TOKEN_EXPIRED"}}`)
	}))
	defer srv.Close()

	_, err := newProvider(srv.URL).Refresh(context.Background(), "rt")
	assert.Equal(t, identity.CodeTokenExpired, identity.CodeOf(err))
	assert.ErrorIs(t, err, common.ErrAuthentication)
}

func TestSignOut_IsLocal(t *testing.T) {
	require.NoError(t, New(Config{}).SignOut(context.Background(), &identity.Principal{}))
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{APIKey: "k", IdentityEndpoint: "http://x/"})
	assert.Equal(t, "http://x", p.identityURL)
	assert.Equal(t, DefaultTokenEndpoint, p.tokenURL)
	assert.Equal(t, defaultTimeout, p.http.Timeout)
}
