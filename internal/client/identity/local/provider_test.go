package local

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/dares/internal/client/identity"
	"github.com/dmitrijs2005/dares/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newProvider() *Provider {
	p := New([]byte("test-key"))
	p.cost = bcrypt.MinCost
	return p
}

func TestSignUpThenSignIn(t *testing.T) {
	ctx := context.Background()
	p := newProvider()

	up, err := p.SignUp(ctx, " Alice@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", up.Email)
	assert.NotEmpty(t, up.UID)

	in, err := p.SignIn(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, up.UID, in.UID)

	parsed, err := identity.PrincipalFromToken(in.IDToken, in.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, up.UID, parsed.UID)
	assert.Equal(t, "alice@example.com", parsed.Email)

	c, err := p.Verify(in.IDToken, useID)
	require.NoError(t, err)
	assert.Equal(t, up.UID, c.Subject)

	_, err = p.Verify(in.IDToken, useRefresh)
	require.Error(t, err)
}

func TestSignUp_Rejections(t *testing.T) {
	ctx := context.Background()
	p := newProvider()

	_, err := p.SignUp(ctx, "nope", "secret1")
	assert.Equal(t, identity.CodeInvalidEmail, identity.CodeOf(err))

	_, err = p.SignUp(ctx, "a@x.io", "123")
	assert.Equal(t, identity.CodeWeakPassword, identity.CodeOf(err))

	_, err = p.Seed("a@x.io", "secret1")
	require.NoError(t, err)
	_, err = p.SignUp(ctx, "A@x.io", "secret2")
	assert.Equal(t, identity.CodeEmailAlreadyInUse, identity.CodeOf(err))
	assert.ErrorIs(t, err, common.ErrAuthentication)
}

func TestSignIn_BadCredentials(t *testing.T) {
	ctx := context.Background()
	p := newProvider()
	_, err := p.Seed("a@x.io", "secret1")
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "a@x.io", "wrong!")
	assert.Equal(t, identity.CodeInvalidCredential, identity.CodeOf(err))
	_, err = p.SignIn(ctx, "b@x.io", "secret1")
	assert.Equal(t, identity.CodeInvalidCredential, identity.CodeOf(err))
}

func TestRefresh_IssuesNewIDToken(t *testing.T) {
	ctx := context.Background()
	p := newProvider()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	in, err := p.SignUp(ctx, "a@x.io", "secret1")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = p.Verify(in.IDToken, useID)
	require.Error(t, err, "id token expired")

	fresh, err := p.Refresh(ctx, in.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, in.UID, fresh.UID)
	assert.Equal(t, "a@x.io", fresh.Email)
	assert.Equal(t, now.Add(IDTokenTTL), fresh.ExpiresAt)
	_, err = p.Verify(fresh.IDToken, useID)
	require.NoError(t, err)
}

func TestRefresh_RejectsIDTokenAndForeignKey(t *testing.T) {
	ctx := context.Background()
	p := newProvider()
	in, err := p.SignUp(ctx, "a@x.io", "secret1")
	require.NoError(t, err)

	_, err = p.Refresh(ctx, in.IDToken)
	assert.Equal(t, identity.CodeTokenExpired, identity.CodeOf(err))

	other := New([]byte("other-key"))
	forged, _, err := other.sign(in.UID, "a@x.io", useRefresh, time.Hour)
	require.NoError(t, err)
	_, err = p.Refresh(ctx, forged)
	assert.Equal(t, identity.CodeTokenExpired, identity.CodeOf(err))

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{TokenUse: useRefresh}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = p.Refresh(ctx, none)
	require.Error(t, err)
}

func TestSignOut_RevokesRefreshToken(t *testing.T) {
	ctx := context.Background()
	p := newProvider()
	in, err := p.SignUp(ctx, "a@x.io", "secret1")
	require.NoError(t, err)

	require.NoError(t, p.SignOut(ctx, in))
	_, err = p.Refresh(ctx, in.RefreshToken)
	assert.Equal(t, identity.CodeTokenExpired, identity.CodeOf(err))

	require.NoError(t, p.SignOut(ctx, nil))
	require.NoError(t, p.SignOut(ctx, &identity.Principal{RefreshToken: "garbage"}))
}

func TestEmptyKey_IsConfigurationError(t *testing.T) {
	p := New(nil)
	_, err := p.SignIn(context.Background(), "a@x.io", "secret1")
	require.ErrorIs(t, err, common.ErrConfiguration)
	assert.Contains(t, err.Error(), "configuration")
}
