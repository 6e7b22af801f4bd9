package auth

import "context"

// Repository abstracts credential storage. Lookups report absence through the
// bool result; the error is reserved for storage faults.
type Repository interface {
	Create(ctx context.Context, user NewUser) (int64, error)
	GetByUsername(ctx context.Context, username string) (User, bool, error)
	GetByEmail(ctx context.Context, email string) (User, bool, error)
	GetByID(ctx context.Context, id int64) (User, bool, error)
	List(ctx context.Context) ([]User, error)
	DefaultRole(ctx context.Context) (Role, bool, error)
}
