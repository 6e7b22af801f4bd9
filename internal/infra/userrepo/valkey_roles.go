package userrepo

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/saas-auth/internal/domain/auth"
)

// RoleCachingRepository decorates a Repository with a Valkey read-through
// cache for the default role. Every other call goes straight to the wrapped
// repository; cache faults fall back to it as well.
type RoleCachingRepository struct {
	auth.Repository
	client valkey.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRoleCachingRepository wraps repo.
func NewRoleCachingRepository(repo auth.Repository, client valkey.Client, prefix string, ttl time.Duration, logger *slog.Logger) *RoleCachingRepository {
	if prefix == "" {
		prefix = "auth"
	}
	return &RoleCachingRepository{
		Repository: repo,
		client:     client,
		prefix:     prefix,
		ttl:        ttl,
		logger:     logger.With("component", "userrepo.role_cache"),
	}
}

// DefaultRole serves the cached role when present.
func (r *RoleCachingRepository) DefaultRole(ctx context.Context) (auth.Role, bool, error) {
	if role, ok := r.cachedRole(ctx); ok {
		return role, true, nil
	}
	role, found, err := r.Repository.DefaultRole(ctx)
	if err != nil || !found {
		return role, found, err
	}
	if err := r.store(ctx, role); err != nil {
		r.logger.Warn("failed to cache default role", "error", err)
	}
	return role, true, nil
}

func (r *RoleCachingRepository) cachedRole(ctx context.Context) (auth.Role, bool) {
	payload, err := r.client.Do(ctx, r.client.B().Get().Key(r.key()).Build()).ToString()
	if err != nil {
		if !valkey.IsValkeyNil(err) {
			r.logger.Warn("role cache read failed", "error", err)
		}
		return auth.Role{}, false
	}
	var role auth.Role
	if err := json.Unmarshal([]byte(payload), &role); err != nil || role.ID == 0 {
		r.logger.Warn("discarding malformed cached role", "error", err)
		return auth.Role{}, false
	}
	return role, true
}

func (r *RoleCachingRepository) store(ctx context.Context, role auth.Role) error {
	payload, err := json.Marshal(role)
	if err != nil {
		return err
	}
	builder := r.client.B().Set().Key(r.key()).Value(string(payload))
	var cmd valkey.Completed
	if r.ttl > 0 {
		ttl := r.ttl
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return r.client.Do(ctx, cmd).Error()
}

func (r *RoleCachingRepository) key() string {
	return r.prefix + ":role:default"
}

var _ auth.Repository = (*RoleCachingRepository)(nil)
