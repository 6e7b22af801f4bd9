package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	apperrors "github.com/yanqian/saas-auth/pkg/errors"
	"github.com/yanqian/saas-auth/pkg/metrics"
)

// PasswordHasher derives and checks one-way password hashes.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, encoded string) (bool, error)
}

// Argon2Params are the tunables embedded in every encoded hash.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params are the m=19456,t=2,p=1 parameters existing stored
// hashes were written with.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      19 * 1024,
		Iterations:  2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate rejects parameter sets argon2 cannot run with.
func (p Argon2Params) Validate() error {
	switch {
	case p.Iterations < 1:
		return errors.New("argon2 iterations must be at least 1")
	case p.Parallelism < 1:
		return errors.New("argon2 parallelism must be at least 1")
	case p.Memory < 8*uint32(p.Parallelism):
		return errors.New("argon2 memory must be at least 8 KiB per lane")
	case p.SaltLength < 8:
		return errors.New("argon2 salt must be at least 8 bytes")
	case p.KeyLength < 16:
		return errors.New("argon2 key must be at least 16 bytes")
	}
	return nil
}

const argon2Prefix = "$argon2id$"

var phcEncoding = base64.RawStdEncoding

// Argon2Hasher hashes with Argon2id and verifies Argon2id or legacy bcrypt
// strings. At most maxConcurrent derivations run at once.
type Argon2Hasher struct {
	params Argon2Params
	sem    *semaphore.Weighted
}

// NewArgon2Hasher constructs a hasher. maxConcurrent <= 0 uses GOMAXPROCS.
func NewArgon2Hasher(params Argon2Params, maxConcurrent int) *Argon2Hasher {
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.GOMAXPROCS(0)
	}
	return &Argon2Hasher{
		params: params,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Hash returns a PHC string: $argon2id$v=19$m=..,t=..,p=..$salt$key.
func (h *Argon2Hasher) Hash(ctx context.Context, password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to generate salt", err)
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "password hashing aborted", err)
	}
	defer h.sem.Release(1)
	defer metrics.ObserveHash("hash", time.Now())

	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix,
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		phcEncoding.EncodeToString(salt),
		phcEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the hash with the parameters embedded in encoded. A
// malformed encoded string is an internal fault, not a mismatch.
func (h *Argon2Hasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, argon2Prefix):
		params, salt, key, err := decodeArgon2(encoded)
		if err != nil {
			return false, apperrors.Wrap(apperrors.CodeInternal, "invalid password hash format", err)
		}
		if err := h.sem.Acquire(ctx, 1); err != nil {
			return false, apperrors.Wrap(apperrors.CodeInternal, "password verification aborted", err)
		}
		defer h.sem.Release(1)
		defer metrics.ObserveHash("verify", time.Now())

		candidate := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(key)))
		return subtle.ConstantTimeCompare(key, candidate) == 1, nil
	case isBcrypt(encoded):
		if err := h.sem.Acquire(ctx, 1); err != nil {
			return false, apperrors.Wrap(apperrors.CodeInternal, "password verification aborted", err)
		}
		defer h.sem.Release(1)
		defer metrics.ObserveHash("verify", time.Now())

		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.CodeInternal, "invalid password hash format", err)
	default:
		return false, apperrors.Wrap(apperrors.CodeInternal, "unsupported password hash format", nil)
	}
}

func isBcrypt(encoded string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encoded, prefix) {
			return true
		}
	}
	return false
}

func decodeArgon2(encoded string) (Argon2Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return Argon2Params{}, nil, nil, fmt.Errorf("expected 6 segments, got %d", len(parts))
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("parse version: %w", err)
	}
	if version != argon2.Version {
		return Argon2Params{}, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}
	var params Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("parse params: %w", err)
	}
	salt, err := phcEncoding.DecodeString(parts[4])
	if err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("decode salt: %w", err)
	}
	key, err := phcEncoding.DecodeString(parts[5])
	if err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("decode key: %w", err)
	}
	if len(salt) == 0 || len(key) == 0 {
		return Argon2Params{}, nil, nil, errors.New("empty salt or key")
	}
	if params.Iterations < 1 || params.Parallelism < 1 || params.Memory < 8*uint32(params.Parallelism) {
		return Argon2Params{}, nil, nil, errors.New("argon2 parameters out of range")
	}
	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))
	return params, salt, key, nil
}

// PasswordPolicy holds the strength rules applied at registration.
type PasswordPolicy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPasswordPolicy requires 8..128 characters drawn from all four classes.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:      8,
		MaxLength:      128,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// Validate returns the first violated rule, checked in a fixed order:
// minimum length, maximum length, uppercase, lowercase, digit, special.
func (p PasswordPolicy) Validate(password string) error {
	length := utf8.RuneCountInString(password)
	if p.MinLength > 0 && length < p.MinLength {
		return invalidPassword(fmt.Sprintf("password must be at least %d characters long", p.MinLength))
	}
	if p.MaxLength > 0 && length > p.MaxLength {
		return invalidPassword(fmt.Sprintf("password must not exceed %d characters", p.MaxLength))
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsNumber(r):
			digit = true
		case !unicode.IsLetter(r):
			special = true
		}
	}

	switch {
	case p.RequireUpper && !upper:
		return invalidPassword("password must contain at least one uppercase letter")
	case p.RequireLower && !lower:
		return invalidPassword("password must contain at least one lowercase letter")
	case p.RequireDigit && !digit:
		return invalidPassword("password must contain at least one number")
	case p.RequireSpecial && !special:
		return invalidPassword("password must contain at least one special character")
	}
	return nil
}

func invalidPassword(message string) error {
	return apperrors.Wrap(apperrors.CodeInvalidInput, message, nil)
}
