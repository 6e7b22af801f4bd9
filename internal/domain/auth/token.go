package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/yanqian/saas-auth/pkg/errors"
	"github.com/yanqian/saas-auth/pkg/util"
)

// TokenCodec signs claims into HS256 tokens and verifies them back. It holds
// no mutable state and is safe for concurrent use.
//
// Expiry is compared against the exact current time with no leeway.
type TokenCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenCodec builds a codec using the wall clock.
func NewTokenCodec(secret, issuer string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), issuer: issuer, now: util.NowUTC}
}

// WithClock returns a copy of the codec reading time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	clone := *c
	clone.now = now
	return &clone
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID    int64     `json:"userId"`
	Username  string    `json:"username"`
	RoleID    int64     `json:"roleId,omitempty"`
	TokenType TokenType `json:"type"`
}

// Issue signs a token valid from now until now+ttl. Timestamps have second
// precision, so ttl must be at least one second.
func (c *TokenCodec) Issue(userID int64, username string, roleID int64, tokenType TokenType, ttl time.Duration) (string, error) {
	if tokenType != TokenTypeAccess && tokenType != TokenTypeRefresh {
		return "", apperrors.Wrap(apperrors.CodeInternal, "unknown token type", fmt.Errorf("type %q", tokenType))
	}
	if ttl < time.Second {
		return "", apperrors.Wrap(apperrors.CodeInternal, "token ttl must be at least one second", nil)
	}
	issuedAt := c.now().Truncate(time.Second)
	claims := tokenClaims{
		UserID:    userID,
		Username:  username,
		RoleID:    roleID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    c.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to sign token", err)
	}
	return signed, nil
}

// ParseAndVerify checks the signature over the whole token first and only
// then the time-based claims. Every failure is unauthorized: the token is
// untrusted input.
func (c *TokenCodec) ParseAndVerify(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, c.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, apperrors.Wrap(apperrors.CodeUnauthorized, msgTokenExpired, err)
		}
		return Claims{}, apperrors.Wrap(apperrors.CodeUnauthorized, msgTokenInvalid, err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, apperrors.Wrap(apperrors.CodeUnauthorized, msgTokenInvalid, nil)
	}
	if err := claims.check(); err != nil {
		return Claims{}, apperrors.Wrap(apperrors.CodeUnauthorized, msgTokenInvalid, err)
	}
	return Claims{
		UserID:    claims.UserID,
		Username:  claims.Username,
		RoleID:    claims.RoleID,
		TokenID:   claims.ID,
		Issuer:    claims.Issuer,
		TokenType: claims.TokenType,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// RequireType rejects claims of a different token type.
func RequireType(claims Claims, expected TokenType) (Claims, error) {
	if claims.TokenType != expected {
		return Claims{}, apperrors.Wrap(apperrors.CodeUnauthorized, msgTokenTypeMismatch,
			fmt.Errorf("got %q, want %q", claims.TokenType, expected))
	}
	return claims, nil
}

func (c *TokenCodec) key(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
	}
	return c.secret, nil
}

func (tc *tokenClaims) check() error {
	if tc.IssuedAt == nil {
		return errors.New("missing iat")
	}
	if !tc.ExpiresAt.Time.After(tc.IssuedAt.Time) {
		return errors.New("exp not after iat")
	}
	if tc.TokenType != TokenTypeAccess && tc.TokenType != TokenTypeRefresh {
		return fmt.Errorf("unknown token type %q", tc.TokenType)
	}
	if tc.Subject != strconv.FormatInt(tc.UserID, 10) {
		return errors.New("subject does not match user id")
	}
	return nil
}
