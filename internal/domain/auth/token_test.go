package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/saas-auth/pkg/errors"
)

var tokenEpoch = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestCodec(secret string, now *time.Time) *TokenCodec {
	return NewTokenCodec(secret, "saas-auth").WithClock(func() time.Time { return *now })
}

func requireUnauthorized(t *testing.T, err error, message string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized), "got %v", err)
	require.Equal(t, message, apperrors.MessageOf(err))
}

func TestTokenCodec_IssueAndParse(t *testing.T) {
	now := tokenEpoch
	codec := newTestCodec("test-secret", &now)

	token, err := codec.Issue(42, "alice", 2, TokenTypeAccess, time.Hour)
	require.NoError(t, err)
	require.Len(t, strings.Split(token, "."), 3)

	claims, err := codec.ParseAndVerify(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, int64(2), claims.RoleID)
	require.True(t, claims.HasRole())
	require.Equal(t, TokenTypeAccess, claims.TokenType)
	require.Equal(t, "saas-auth", claims.Issuer)
	require.NotEmpty(t, claims.TokenID)
	require.True(t, claims.IssuedAt.Equal(tokenEpoch))
	require.True(t, claims.ExpiresAt.Equal(tokenEpoch.Add(time.Hour)))
}

func TestTokenCodec_ExpiryBoundary(t *testing.T) {
	now := tokenEpoch
	codec := newTestCodec("test-secret", &now)
	ttl := 15 * time.Minute

	token, err := codec.Issue(7, "bob", 0, TokenTypeAccess, ttl)
	require.NoError(t, err)

	now = tokenEpoch.Add(ttl - time.Nanosecond)
	_, err = codec.ParseAndVerify(token)
	require.NoError(t, err)

	now = tokenEpoch.Add(ttl)
	_, err = codec.ParseAndVerify(token)
	requireUnauthorized(t, err, "token expired")

	now = tokenEpoch.Add(ttl + time.Hour)
	_, err = codec.ParseAndVerify(token)
	requireUnauthorized(t, err, "token expired")
}

func TestTokenCodec_RejectsDifferentSecret(t *testing.T) {
	now := tokenEpoch
	issuer := newTestCodec("secret-one", &now)
	verifier := newTestCodec("secret-two", &now)

	token, err := issuer.Issue(1, "alice", 2, TokenTypeAccess, time.Hour)
	require.NoError(t, err)

	_, err = verifier.ParseAndVerify(token)
	requireUnauthorized(t, err, "invalid token")
}

func TestTokenCodec_SignatureCheckedBeforeExpiry(t *testing.T) {
	now := tokenEpoch
	issuer := newTestCodec("secret-one", &now)
	verifier := newTestCodec("secret-two", &now)

	token, err := issuer.Issue(1, "alice", 2, TokenTypeAccess, time.Minute)
	require.NoError(t, err)

	now = tokenEpoch.Add(time.Hour)
	_, err = verifier.ParseAndVerify(token)
	requireUnauthorized(t, err, "invalid token")
}

func TestTokenCodec_RejectsTamperedAndMalformed(t *testing.T) {
	now := tokenEpoch
	codec := newTestCodec("test-secret", &now)

	token, err := codec.Issue(1, "alice", 2, TokenTypeAccess, time.Hour)
	require.NoError(t, err)
	parts := strings.Split(token, ".")

	forgedPayload := base64.RawURLEncoding.EncodeToString([]byte(
		`{"sub":"1","iss":"saas-auth","iat":1773480413,"exp":4102444800,"userId":1,"username":"alice","roleId":1,"type":"access"}`,
	))
	forged := parts[0] + "." + forgedPayload + "." + parts[2]

	cases := map[string]string{
		"forged payload":  forged,
		"truncated":       token[:len(token)-1],
		"missing segment": parts[0] + "." + parts[1],
		"garbage":         "not.a.token",
		"empty":           "",
	}
	for name, candidate := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.ParseAndVerify(candidate)
			requireUnauthorized(t, err, "invalid token")
		})
	}
}

func TestTokenCodec_RejectsOtherAlgorithmsAndIssuers(t *testing.T) {
	now := tokenEpoch
	codec := newTestCodec("test-secret", &now)
	claims := tokenClaims{
		UserID:    1,
		Username:  "alice",
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    "saas-auth",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = codec.ParseAndVerify(unsigned)
	requireUnauthorized(t, err, "invalid token")

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = codec.ParseAndVerify(hs512)
	requireUnauthorized(t, err, "invalid token")

	foreign := NewTokenCodec("test-secret", "someone-else").WithClock(func() time.Time { return now })
	token, err := foreign.Issue(1, "alice", 0, TokenTypeAccess, time.Hour)
	require.NoError(t, err)
	_, err = codec.ParseAndVerify(token)
	requireUnauthorized(t, err, "invalid token")
}

func TestTokenCodec_IssueRejectsBadInput(t *testing.T) {
	now := tokenEpoch
	codec := newTestCodec("test-secret", &now)

	_, err := codec.Issue(1, "alice", 0, TokenTypeAccess, 500*time.Millisecond)
	require.True(t, apperrors.IsCode(err, apperrors.CodeInternal))

	_, err = codec.Issue(1, "alice", 0, TokenType("session"), time.Hour)
	require.True(t, apperrors.IsCode(err, apperrors.CodeInternal))
}

func TestRequireType(t *testing.T) {
	now := tokenEpoch
	codec := newTestCodec("test-secret", &now)

	access, err := codec.Issue(1, "alice", 0, TokenTypeAccess, time.Hour)
	require.NoError(t, err)
	refresh, err := codec.Issue(1, "alice", 0, TokenTypeRefresh, 24*time.Hour)
	require.NoError(t, err)

	accessClaims, err := codec.ParseAndVerify(access)
	require.NoError(t, err)
	refreshClaims, err := codec.ParseAndVerify(refresh)
	require.NoError(t, err)
	require.False(t, refreshClaims.HasRole())

	_, err = RequireType(accessClaims, TokenTypeAccess)
	require.NoError(t, err)
	_, err = RequireType(refreshClaims, TokenTypeRefresh)
	require.NoError(t, err)

	_, err = RequireType(refreshClaims, TokenTypeAccess)
	requireUnauthorized(t, err, "token type mismatch")
	_, err = RequireType(accessClaims, TokenTypeRefresh)
	requireUnauthorized(t, err, "token type mismatch")
}
