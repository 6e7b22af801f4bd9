package userrepo

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/saas-auth/internal/domain/auth"
)

// MemoryRepository provides an in-memory user store for tests/dev.
type MemoryRepository struct {
	mu            sync.RWMutex
	users         map[int64]auth.User
	usernameIndex map[string]int64
	emailIndex    map[string]int64
	roles         map[int64]auth.Role
	defaultRoleID int64
	seq           int64
}

// NewMemoryRepository constructs a repository seeded with the admin and user
// roles; "user" is the default.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:         make(map[int64]auth.User),
		usernameIndex: make(map[string]int64),
		emailIndex:    make(map[string]int64),
		roles: map[int64]auth.Role{
			1: {ID: 1, Name: "admin"},
			2: {ID: 2, Name: "user"},
		},
		defaultRoleID: 2,
	}
}

// Create stores the user record.
func (r *MemoryRepository) Create(ctx context.Context, user auth.NewUser) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.usernameIndex[user.Username]; exists {
		return 0, auth.ErrUsernameExists
	}
	if _, exists := r.emailIndex[user.Email]; exists {
		return 0, auth.ErrEmailExists
	}
	r.seq++
	r.users[r.seq] = auth.User{
		ID:           r.seq,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Nickname:     user.Nickname,
		RoleID:       user.RoleID,
		Status:       user.Status,
		CreatedAt:    time.Now().UTC(),
	}
	r.usernameIndex[user.Username] = r.seq
	r.emailIndex[user.Email] = r.seq
	return r.seq, nil
}

// GetByUsername returns a user by username.
func (r *MemoryRepository) GetByUsername(ctx context.Context, username string) (auth.User, bool, error) {
	return r.byIndex(ctx, r.usernameIndex, username)
}

// GetByEmail returns a user by email.
func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (auth.User, bool, error) {
	return r.byIndex(ctx, r.emailIndex, email)
}

// GetByID fetches by ID.
func (r *MemoryRepository) GetByID(ctx context.Context, id int64) (auth.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return auth.User{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	return user, ok, nil
}

// List returns every user ordered by id.
func (r *MemoryRepository) List(ctx context.Context) ([]auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]auth.User, 0, len(r.users))
	for id := int64(1); id <= r.seq; id++ {
		if user, ok := r.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

// DefaultRole returns the role assigned on registration.
func (r *MemoryRepository) DefaultRole(ctx context.Context) (auth.Role, bool, error) {
	if err := ctx.Err(); err != nil {
		return auth.Role{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[r.defaultRoleID]
	return role, ok, nil
}

// SetStatus changes an account status. Used by admin tooling and tests.
func (r *MemoryRepository) SetStatus(id int64, status int16) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return false
	}
	user.Status = status
	r.users[id] = user
	return true
}

func (r *MemoryRepository) byIndex(ctx context.Context, index map[string]int64, key string) (auth.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return auth.User{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := index[key]; ok {
		return r.users[id], true, nil
	}
	return auth.User{}, false, nil
}

var _ auth.Repository = (*MemoryRepository)(nil)
