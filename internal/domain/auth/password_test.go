package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/yanqian/saas-auth/pkg/errors"
)

func testArgon2Params() Argon2Params {
	return Argon2Params{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestArgon2Hasher_RoundTrip(t *testing.T) {
	hasher := NewArgon2Hasher(testArgon2Params(), 2)
	ctx := context.Background()

	for _, password := range []string{"Passw0rd!", "", "ünïcødé-пароль", strings.Repeat("x", 128)} {
		encoded, err := hasher.Hash(ctx, password)
		require.NoError(t, err)

		ok, err := hasher.Verify(ctx, password, encoded)
		require.NoError(t, err)
		require.True(t, ok, "password %q should verify", password)

		ok, err = hasher.Verify(ctx, password+"x", encoded)
		require.NoError(t, err)
		require.False(t, ok)
	}
}

func TestArgon2Hasher_EncodedFormatAndFreshSalt(t *testing.T) {
	hasher := NewArgon2Hasher(testArgon2Params(), 1)

	first, err := hasher.Hash(context.Background(), "Passw0rd!")
	require.NoError(t, err)
	second, err := hasher.Hash(context.Background(), "Passw0rd!")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(first, "$argon2id$v=19$m=64,t=1,p=1$"), first)
	require.Len(t, strings.Split(first, "$"), 6)
	require.NotEqual(t, first, second)
}

func TestArgon2Hasher_VerifyUsesEmbeddedParams(t *testing.T) {
	writer := NewArgon2Hasher(Argon2Params{Memory: 128, Iterations: 2, Parallelism: 2, SaltLength: 16, KeyLength: 24}, 1)
	reader := NewArgon2Hasher(testArgon2Params(), 1)

	encoded, err := writer.Hash(context.Background(), "Passw0rd!")
	require.NoError(t, err)

	ok, err := reader.Verify(context.Background(), "Passw0rd!", encoded)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestArgon2Hasher_MalformedHashIsInternal(t *testing.T) {
	hasher := NewArgon2Hasher(testArgon2Params(), 1)
	cases := []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=64,t=1,p=1$onlysalt",
		"$argon2id$v=16$m=64,t=1,p=1$c29tZXNhbHRzb21lc2FsdA$c29tZWtleXNvbWVrZXlzb21la2V5c29tZWtleQ",
		"$argon2id$v=19$m=abc$c29tZXNhbHRzb21lc2FsdA$c29tZWtleXNvbWVrZXlzb21la2V5c29tZWtleQ",
		"$argon2id$v=19$m=64,t=1,p=1$!!!$c29tZWtleXNvbWVrZXlzb21la2V5c29tZWtleQ",
		"$argon2id$v=19$m=64,t=0,p=1$c29tZXNhbHRzb21lc2FsdA$c29tZWtleXNvbWVrZXlzb21la2V5c29tZWtleQ",
		"$argon2i$v=19$m=64,t=1,p=1$c29tZXNhbHRzb21lc2FsdA$c29tZWtleXNvbWVrZXlzb21la2V5c29tZWtleQ",
	}
	for _, encoded := range cases {
		ok, err := hasher.Verify(context.Background(), "Passw0rd!", encoded)
		require.Error(t, err, "hash %q", encoded)
		require.False(t, ok)
		require.True(t, apperrors.IsCode(err, apperrors.CodeInternal))
	}
}

func TestArgon2Hasher_VerifiesLegacyBcrypt(t *testing.T) {
	hasher := NewArgon2Hasher(testArgon2Params(), 1)
	legacy, err := bcrypt.GenerateFromPassword([]byte("pass1234"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := hasher.Verify(context.Background(), "pass1234", string(legacy))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = hasher.Verify(context.Background(), "pass12345", string(legacy))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestArgon2Hasher_HonoursCancellation(t *testing.T) {
	hasher := NewArgon2Hasher(testArgon2Params(), 1)
	require.NoError(t, hasher.sem.Acquire(context.Background(), 1))
	defer hasher.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := hasher.Hash(ctx, "Passw0rd!")
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}

func TestArgon2Params_Validate(t *testing.T) {
	require.NoError(t, DefaultArgon2Params().Validate())
	require.NoError(t, testArgon2Params().Validate())

	bad := testArgon2Params()
	bad.Memory = 4
	require.Error(t, bad.Validate())

	bad = testArgon2Params()
	bad.Iterations = 0
	require.Error(t, bad.Validate())
}

func TestPasswordPolicy_FirstViolationInFixedOrder(t *testing.T) {
	policy := DefaultPasswordPolicy()
	cases := []struct {
		name     string
		password string
		message  string
	}{
		{"too short beats missing classes", "abc", "password must be at least 8 characters long"},
		{"too long", strings.Repeat("Aa1!", 33), "password must not exceed 128 characters"},
		{"no uppercase", "passw0rd!", "password must contain at least one uppercase letter"},
		{"no lowercase", "PASSW0RD!", "password must contain at least one lowercase letter"},
		{"no digit", "Password!", "password must contain at least one number"},
		{"no special", "Passw0rd", "password must contain at least one special character"},
		{"length counts runes", "Пароль1!", ""},
		{"seven runes in ten bytes is too short", "Пар1!Ab", "password must be at least 8 characters long"},
		{"128 runes in 192 bytes is allowed", strings.Repeat("Яя1!", 32), ""},
		{"129 multibyte runes is too long", strings.Repeat("Яя1!", 32) + "я", "password must not exceed 128 characters"},
		{"valid", "Passw0rd!", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Validate(tc.password)
			if tc.message == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
			require.Equal(t, tc.message, err.Error())
		})
	}
}

func TestPasswordPolicy_RelaxedRules(t *testing.T) {
	policy := PasswordPolicy{MinLength: 4, MaxLength: 8}
	require.NoError(t, policy.Validate("abcd"))
	require.Error(t, policy.Validate("abc"))
	require.Error(t, policy.Validate("abcdefghi"))
}
