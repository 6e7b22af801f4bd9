package auth

import "time"

// StatusActive marks an account allowed to sign in.
const StatusActive int16 = 1

// Config drives authentication behavior.
type Config struct {
	Secret          string
	Issuer          string
	TokenTTL        time.Duration
	RefreshTokenTTL time.Duration
	// LookupTimeout bounds each storage call; zero leaves only the request deadline.
	LookupTimeout time.Duration
	Password      PasswordPolicy
}

// User represents a persisted account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Nickname     string    `json:"nickname"`
	Avatar       *string   `json:"avatar,omitempty"`
	RoleID       *int64    `json:"roleId,omitempty"`
	Status       int16     `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Active reports whether the account may sign in.
func (u User) Active() bool {
	return u.Status == StatusActive
}

// NewUser is the record handed to the repository on registration.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Nickname     string
	RoleID       *int64
	Status       int16
}

// Role is a named permission group. Only the id travels in tokens.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are extracted from a verified token.
type Claims struct {
	UserID    int64
	Username  string
	RoleID    int64
	TokenID   string
	Issuer    string
	TokenType TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasRole reports whether the principal carries a role.
func (c Claims) HasRole() bool {
	return c.RoleID != 0
}

// RegisterRequest captures the registration payload.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,username"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Nickname string `json:"nickname" binding:"required,min=2,max=100"`
}

// RegisterResponse returns the id of the created account.
type RegisterResponse struct {
	UserID int64 `json:"user_id"`
}

// LoginRequest captures login details.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest encapsulates refresh token payload.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LoginResponse returns the signed token pair.
type LoginResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	User         UserView `json:"user_info"`
}

// UserView trims sensitive fields.
type UserView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	Avatar    *string   `json:"avatar,omitempty"`
	RoleID    *int64    `json:"role_id,omitempty"`
	Status    int16     `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
