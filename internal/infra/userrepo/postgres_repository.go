package userrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/yanqian/saas-auth/internal/domain/auth"
	"github.com/yanqian/saas-auth/internal/infra/userrepo/migrations"
)

const uniqueViolation = "23505"

const userColumns = `id, username, email, password_hash, nickname, avatar, role_id, status, created_at`

// PostgresRepository persists users in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new user row and maps unique violations to the auth
// sentinel errors.
func (r *PostgresRepository) Create(ctx context.Context, user auth.NewUser) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, nickname, role_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, user.Username, user.Email, user.PasswordHash, user.Nickname, user.RoleID, user.Status).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case "users_username_key":
				return 0, auth.ErrUsernameExists
			case "users_email_key":
				return 0, auth.ErrEmailExists
			}
		}
		return 0, err
	}
	return id, nil
}

// GetByUsername fetches a user by username.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (auth.User, bool, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1 LIMIT 1`, username)
}

// GetByEmail fetches a user by email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (auth.User, bool, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 LIMIT 1`, email)
}

// GetByID fetches by primary key.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (auth.User, bool, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, id)
}

// List returns every user ordered by id.
func (r *PostgresRepository) List(ctx context.Context) ([]auth.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]auth.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// DefaultRole returns the role flagged is_default.
func (r *PostgresRepository) DefaultRole(ctx context.Context) (auth.Role, bool, error) {
	var role auth.Role
	err := r.pool.QueryRow(ctx, `
		SELECT id, name
		FROM roles
		WHERE is_default
		LIMIT 1
	`).Scan(&role.ID, &role.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Role{}, false, nil
	}
	if err != nil {
		return auth.Role{}, false, err
	}
	return role, true, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (auth.User, bool, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.User{}, false, nil
	}
	if err != nil {
		return auth.User{}, false, err
	}
	return user, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (auth.User, error) {
	var user auth.User
	var created time.Time
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Nickname,
		&user.Avatar,
		&user.RoleID,
		&user.Status,
		&created,
	); err != nil {
		return auth.User{}, err
	}
	user.CreatedAt = created.UTC()
	return user, nil
}

// Migrate applies the embedded goose migrations to the database at dsn.
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

var _ auth.Repository = (*PostgresRepository)(nil)
