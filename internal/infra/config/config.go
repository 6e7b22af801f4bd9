package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Postgres PostgresConfig `yaml:"postgres"`
	Valkey   ValkeyConfig   `yaml:"valkey"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

// AuthConfig holds token signing and credential settings.
type AuthConfig struct {
	Secret          string         `yaml:"secret"`
	Issuer          string         `yaml:"issuer"`
	AccessTokenTTL  time.Duration  `yaml:"accessTokenTtl"`
	RefreshTokenTTL time.Duration  `yaml:"refreshTokenTtl"`
	LookupTimeout   time.Duration  `yaml:"lookupTimeout"`
	Password        PasswordConfig `yaml:"password"`
	Argon2          Argon2Config   `yaml:"argon2"`
}

// PasswordConfig is the registration password policy.
type PasswordConfig struct {
	MinLength      int  `yaml:"minLength"`
	MaxLength      int  `yaml:"maxLength"`
	RequireUpper   bool `yaml:"requireUpper"`
	RequireLower   bool `yaml:"requireLower"`
	RequireDigit   bool `yaml:"requireDigit"`
	RequireSpecial bool `yaml:"requireSpecial"`
}

// Argon2Config tunes password hashing cost.
type Argon2Config struct {
	MemoryKiB     uint32 `yaml:"memoryKiB"`
	Iterations    uint32 `yaml:"iterations"`
	Parallelism   uint8  `yaml:"parallelism"`
	SaltLength    uint32 `yaml:"saltLength"`
	KeyLength     uint32 `yaml:"keyLength"`
	MaxConcurrent int    `yaml:"maxConcurrent"`
}

// PostgresConfig contains DSN and pooling settings. An empty DSN selects the
// in-memory user store.
type PostgresConfig struct {
	DSN         string `yaml:"dsn"`
	MaxConns    int32  `yaml:"maxConns"`
	MinConns    int32  `yaml:"minConns"`
	AutoMigrate bool   `yaml:"autoMigrate"`
}

// ValkeyConfig contains connection information for the role cache.
type ValkeyConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	RoleCacheTTL time.Duration `yaml:"roleCacheTtl"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.Auth.Issuer = v
	}
	if v := os.Getenv("JWT_EXPIRATION"); v != "" {
		ttl, err := parseSeconds("JWT_EXPIRATION", v)
		if err != nil {
			return err
		}
		cfg.Auth.AccessTokenTTL = ttl
	}
	if v := os.Getenv("REFRESH_TOKEN_EXPIRATION"); v != "" {
		ttl, err := parseSeconds("REFRESH_TOKEN_EXPIRATION", v)
		if err != nil {
			return err
		}
		cfg.Auth.RefreshTokenTTL = ttl
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("DATABASE_MAX_CONNS"); v != "" {
		n, err := parseInt32("DATABASE_MAX_CONNS", v)
		if err != nil {
			return err
		}
		cfg.Postgres.MaxConns = n
	}
	if v := os.Getenv("DATABASE_MIN_CONNS"); v != "" {
		n, err := parseInt32("DATABASE_MIN_CONNS", v)
		if err != nil {
			return err
		}
		cfg.Postgres.MinConns = n
	}
	if v := os.Getenv("DATABASE_AUTO_MIGRATE"); v != "" {
		cfg.Postgres.AutoMigrate = parseBool(v)
	}
	if v := os.Getenv("VALKEY_ENABLED"); v != "" {
		cfg.Valkey.Enabled = parseBool(v)
	}
	if v := os.Getenv("VALKEY_ADDR"); v != "" {
		cfg.Valkey.Addr = v
	}
	return nil
}

// parseSeconds reads a token lifetime expressed in whole seconds; malformed
// values are rejected.
func parseSeconds(name, raw string) (time.Duration, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer number of seconds: %w", name, err)
	}
	if secs > maxSeconds || secs < -maxSeconds {
		return 0, fmt.Errorf("%s is out of range", name)
	}
	return time.Duration(secs) * time.Second, nil
}

const maxSeconds = int64(math.MaxInt64 / int64(time.Second))

func parseInt32(name, raw string) (int32, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return int32(n), nil
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			AllowedOrigins: []string{
				"http://localhost:3000",
			},
		},
		Auth: AuthConfig{
			Issuer:          "saas-auth",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 7 * 24 * time.Hour,
			LookupTimeout:   3 * time.Second,
			Password: PasswordConfig{
				MinLength:      8,
				MaxLength:      128,
				RequireUpper:   true,
				RequireLower:   true,
				RequireDigit:   true,
				RequireSpecial: true,
			},
			Argon2: Argon2Config{
				MemoryKiB:   19 * 1024,
				Iterations:  2,
				Parallelism: 1,
				SaltLength:  16,
				KeyLength:   32,
			},
		},
		Postgres: PostgresConfig{
			MaxConns: 4,
			MinConns: 0,
		},
		Valkey: ValkeyConfig{
			RoleCacheTTL: 10 * time.Minute,
		},
	}
}

// minSecretLength is the HS256 key size in bytes.
const minSecretLength = 32

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("auth.secret cannot be empty")
	}
	if len(c.Auth.Secret) < minSecretLength {
		return fmt.Errorf("auth.secret must be at least %d bytes", minSecretLength)
	}
	if strings.TrimSpace(c.Auth.Issuer) == "" {
		return errors.New("auth.issuer cannot be empty")
	}
	if c.Auth.AccessTokenTTL < time.Second {
		return errors.New("auth.accessTokenTtl must be at least one second")
	}
	if c.Auth.RefreshTokenTTL < time.Second {
		return errors.New("auth.refreshTokenTtl must be at least one second")
	}
	if c.Auth.RefreshTokenTTL < c.Auth.AccessTokenTTL {
		return errors.New("auth.refreshTokenTtl cannot be shorter than auth.accessTokenTtl")
	}
	if c.Auth.LookupTimeout < 0 {
		return errors.New("auth.lookupTimeout cannot be negative")
	}
	if c.Auth.Password.MinLength <= 0 {
		return errors.New("auth.password.minLength must be positive")
	}
	if c.Auth.Password.MaxLength < c.Auth.Password.MinLength {
		return errors.New("auth.password.maxLength cannot be below minLength")
	}
	a := c.Auth.Argon2
	if a.Iterations < 1 || a.Parallelism < 1 {
		return errors.New("auth.argon2 iterations and parallelism must be at least 1")
	}
	if a.MemoryKiB < 8*uint32(a.Parallelism) {
		return errors.New("auth.argon2.memoryKiB must be at least 8 per lane")
	}
	if a.SaltLength < 8 || a.KeyLength < 16 {
		return errors.New("auth.argon2 salt must be >= 8 bytes and key >= 16 bytes")
	}
	if a.MaxConcurrent < 0 {
		return errors.New("auth.argon2.maxConcurrent cannot be negative")
	}
	if c.Postgres.MaxConns < 0 || c.Postgres.MinConns < 0 {
		return errors.New("postgres pool sizes cannot be negative")
	}
	if c.Postgres.MaxConns > 0 && c.Postgres.MinConns > c.Postgres.MaxConns {
		return errors.New("postgres.minConns cannot exceed maxConns")
	}
	if c.Valkey.Enabled && strings.TrimSpace(c.Valkey.Addr) == "" {
		return errors.New("valkey.addr cannot be empty when valkey is enabled")
	}
	if c.Valkey.RoleCacheTTL < 0 {
		return errors.New("valkey.roleCacheTtl cannot be negative")
	}
	return nil
}
