package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndAuthenticateBearer(t *testing.T) {
	verifier := NewVerifier("test-secret")
	token, err := verifier.IssueToken("viewer-1", "", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	principal, err := verifier.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: "viewer-1", Role: RoleViewer}, principal)
	assert.False(t, principal.IsAdmin())
}

func TestAuthenticateRejectsHeaderWhenSecretSet(t *testing.T) {
	verifier := NewVerifier("test-secret")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "viewer-1")

	_, err := verifier.Authenticate(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticateHeaderFallback(t *testing.T) {
	verifier := NewVerifier("")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "ops")
	req.Header.Set("X-User-Role", RoleAdmin)

	principal, err := verifier.Authenticate(req)
	require.NoError(t, err)
	assert.True(t, principal.IsAdmin())

	_, err = verifier.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestParseTokenExpired(t *testing.T) {
	verifier := NewVerifier("test-secret")
	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	verifier.now = func() time.Time { return issuedAt }
	token, err := verifier.IssueToken("viewer-1", RoleViewer, time.Minute)
	require.NoError(t, err)

	verifier.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = verifier.ParseToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseTokenRejectsOtherSecretAndAlgorithm(t *testing.T) {
	other, err := NewVerifier("other-secret").IssueToken("viewer-1", RoleViewer, time.Minute)
	require.NoError(t, err)
	_, err = NewVerifier("test-secret").ParseToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "viewer-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewVerifier("test-secret").ParseToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
