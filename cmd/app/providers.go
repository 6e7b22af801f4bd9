package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/saas-auth/internal/domain/auth"
	"github.com/yanqian/saas-auth/internal/infra/config"
	"github.com/yanqian/saas-auth/internal/infra/userrepo"
)

func provideAuthConfig(cfg *config.Config) auth.Config {
	p := cfg.Auth.Password
	return auth.Config{
		Secret:          cfg.Auth.Secret,
		Issuer:          cfg.Auth.Issuer,
		TokenTTL:        cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
		LookupTimeout:   cfg.Auth.LookupTimeout,
		Password: auth.PasswordPolicy{
			MinLength:      p.MinLength,
			MaxLength:      p.MaxLength,
			RequireUpper:   p.RequireUpper,
			RequireLower:   p.RequireLower,
			RequireDigit:   p.RequireDigit,
			RequireSpecial: p.RequireSpecial,
		},
	}
}

func provideArgon2Hasher(cfg *config.Config) (*auth.Argon2Hasher, error) {
	a := cfg.Auth.Argon2
	params := auth.Argon2Params{
		Memory:      a.MemoryKiB,
		Iterations:  a.Iterations,
		Parallelism: a.Parallelism,
		SaltLength:  a.SaltLength,
		KeyLength:   a.KeyLength,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return auth.NewArgon2Hasher(params, a.MaxConcurrent), nil
}

func provideTokenCodec(cfg *config.Config) *auth.TokenCodec {
	return auth.NewTokenCodec(cfg.Auth.Secret, cfg.Auth.Issuer)
}

// provideAuthRepository picks Postgres when a DSN is configured and the
// in-memory store otherwise. A configured but unreachable database is fatal.
func provideAuthRepository(cfg *config.Config, logger *slog.Logger) (auth.Repository, func(), error) {
	var (
		repo    auth.Repository
		cleanup []func()
	)
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Warn("postgres dsn not set, using memory repository; accounts will not survive restarts")
		repo = userrepo.NewMemoryRepository()
	} else {
		pool, err := openPool(cfg, dsn)
		if err != nil {
			return nil, nil, err
		}
		cleanup = append(cleanup, pool.Close)
		if cfg.Postgres.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := userrepo.Migrate(ctx, dsn)
			cancel()
			if err != nil {
				pool.Close()
				return nil, nil, err
			}
			logger.Info("database migrations applied")
		}
		logger.Info("postgres user repository enabled")
		repo = userrepo.NewPostgresRepository(pool)
	}

	if client, ok := provideValkeyClient(cfg, logger); ok {
		cleanup = append(cleanup, client.Close)
		repo = userrepo.NewRoleCachingRepository(repo, client, "auth", cfg.Valkey.RoleCacheTTL, logger)
		logger.Info("default role cache enabled", "addr", cfg.Valkey.Addr)
	}

	return repo, func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}, nil
}

func openPool(cfg *config.Config, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// provideValkeyClient returns a connected client when the cache is enabled.
// The cache is optional, so failures only disable it.
func provideValkeyClient(cfg *config.Config, logger *slog.Logger) (valkey.Client, bool) {
	if !cfg.Valkey.Enabled {
		return nil, false
	}
	opt, err := buildValkeyOptions(cfg)
	if err != nil {
		logger.Error("invalid valkey configuration, role cache disabled", "error", err)
		return nil, false
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, role cache disabled", "error", err)
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, role cache disabled", "error", err)
		client.Close()
		return nil, false
	}
	return client, true
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.Valkey.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.Valkey.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.Valkey.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}
