package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/yanqian/saas-auth/pkg/errors"
	"github.com/yanqian/saas-auth/pkg/metrics"
)

// Service exposes authentication workflows.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error)
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (LoginResponse, error)
	ValidateAccessToken(ctx context.Context, token string) (Claims, error)
	Profile(ctx context.Context, userID int64) (UserView, error)
	ListUsers(ctx context.Context) ([]UserView, error)
}

type service struct {
	cfg    Config
	repo   Repository
	hasher PasswordHasher
	codec  *TokenCodec
	logger *slog.Logger
	// decoyHash is verified against when the username is unknown so both
	// rejection paths cost one hash verification.
	decoyHash string
}

// NewService constructs a Service instance. It derives one decoy hash up front.
func NewService(cfg Config, repo Repository, hasher PasswordHasher, codec *TokenCodec, logger *slog.Logger) (Service, error) {
	if cfg.Password == (PasswordPolicy{}) {
		cfg.Password = DefaultPasswordPolicy()
	}
	decoy, err := randomSecret(24)
	if err != nil {
		return nil, err
	}
	decoyHash, err := hasher.Hash(context.Background(), decoy)
	if err != nil {
		return nil, err
	}
	return &service{
		cfg:       cfg,
		repo:      repo,
		hasher:    hasher,
		codec:     codec,
		logger:    logger.With("component", "auth.service"),
		decoyHash: decoyHash,
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	resp, err := s.register(ctx, req)
	metrics.RegistrationsTotal.WithLabelValues(registrationOutcome(err)).Inc()
	return resp, err
}

func (s *service) register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	username, err := normalizeUsername(req.Username)
	if err != nil {
		return RegisterResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, err.Error(), nil)
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return RegisterResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, err.Error(), nil)
	}
	nickname, err := normalizeNickname(req.Nickname)
	if err != nil {
		return RegisterResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, err.Error(), nil)
	}
	if err := s.cfg.Password.Validate(req.Password); err != nil {
		return RegisterResponse{}, err
	}

	if _, exists, err := s.lookup(ctx, func(ctx context.Context) (User, bool, error) {
		return s.repo.GetByUsername(ctx, username)
	}); err != nil {
		return RegisterResponse{}, apperrors.Wrap(apperrors.CodeInternal, "failed to check username", err)
	} else if exists {
		return RegisterResponse{}, apperrors.Wrap(apperrors.CodeConflict, "username already exists", nil)
	}
	if _, exists, err := s.lookup(ctx, func(ctx context.Context) (User, bool, error) {
		return s.repo.GetByEmail(ctx, email)
	}); err != nil {
		return RegisterResponse{}, apperrors.Wrap(apperrors.CodeInternal, "failed to check email", err)
	} else if exists {
		return RegisterResponse{}, apperrors.Wrap(apperrors.CodeConflict, "email already exists", nil)
	}

	roleCtx, cancel := s.lookupContext(ctx)
	role, found, err := s.repo.DefaultRole(roleCtx)
	cancel()
	if err != nil {
		return RegisterResponse{}, apperrors.Wrap(apperrors.CodeInternal, "failed to load default role", err)
	}
	if !found {
		return RegisterResponse{}, apperrors.Wrap(apperrors.CodeInternal, "default role not found", nil)
	}

	hashed, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return RegisterResponse{}, apperrors.Wrap(apperrors.CodeInternal, "failed to hash password", err)
	}

	createCtx, cancel := s.lookupContext(ctx)
	defer cancel()
	id, err := s.repo.Create(createCtx, NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
		Nickname:     nickname,
		RoleID:       &role.ID,
		Status:       StatusActive,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameExists):
			return RegisterResponse{}, apperrors.Wrap(apperrors.CodeConflict, "username already exists", err)
		case errors.Is(err, ErrEmailExists):
			return RegisterResponse{}, apperrors.Wrap(apperrors.CodeConflict, "email already exists", err)
		}
		return RegisterResponse{}, apperrors.Wrap(apperrors.CodeInternal, "failed to create user", err)
	}
	s.logger.Info("user registered", "user_id", id, "username", username)
	return RegisterResponse{UserID: id}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	resp, outcome, err := s.login(ctx, req)
	metrics.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
	return resp, err
}

func (s *service) login(ctx context.Context, req LoginRequest) (LoginResponse, string, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return LoginResponse{}, metrics.OutcomeInvalidCredentials, apperrors.Wrap(apperrors.CodeInvalidInput, "username and password are required", nil)
	}
	user, found, err := s.lookup(ctx, func(ctx context.Context) (User, bool, error) {
		return s.repo.GetByUsername(ctx, username)
	})
	if err != nil {
		s.logger.Error("credential lookup failed", "username", username, "error", err)
		return LoginResponse{}, metrics.OutcomeError, apperrors.Wrap(apperrors.CodeInternal, "failed to fetch user", err)
	}
	if !found {
		_, _ = s.hasher.Verify(ctx, req.Password, s.decoyHash)
		s.logger.Warn("login rejected", "username", username, "reason", "unknown_username")
		return LoginResponse{}, metrics.OutcomeInvalidCredentials, apperrors.Wrap(apperrors.CodeUnauthorized, msgInvalidCredentials, nil)
	}
	ok, err := s.hasher.Verify(ctx, req.Password, user.PasswordHash)
	if err != nil {
		s.logger.Error("password verification failed", "user_id", user.ID, "error", err)
		return LoginResponse{}, metrics.OutcomeError, apperrors.Wrap(apperrors.CodeInternal, "failed to verify password", err)
	}
	if !ok {
		s.logger.Warn("login rejected", "user_id", user.ID, "reason", "password_mismatch")
		return LoginResponse{}, metrics.OutcomeInvalidCredentials, apperrors.Wrap(apperrors.CodeUnauthorized, msgInvalidCredentials, nil)
	}
	if !user.Active() {
		s.logger.Warn("login rejected", "user_id", user.ID, "reason", "account_disabled")
		return LoginResponse{}, metrics.OutcomeDisabled, apperrors.Wrap(apperrors.CodeForbidden, msgAccountDisabled, nil)
	}
	resp, err := s.buildLoginResponse(user)
	if err != nil {
		return LoginResponse{}, metrics.OutcomeError, err
	}
	return resp, metrics.OutcomeSuccess, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (LoginResponse, error) {
	claims, err := s.codec.ParseAndVerify(strings.TrimSpace(refreshToken))
	if err == nil {
		claims, err = RequireType(claims, TokenTypeRefresh)
	}
	if err != nil {
		// Expiry, bad signature and wrong type all look alike to the caller.
		s.logger.Warn("refresh rejected", "error", err)
		return LoginResponse{}, apperrors.Wrap(apperrors.CodeUnauthorized, msgTokenInvalid, err)
	}
	user, found, err := s.lookup(ctx, func(ctx context.Context) (User, bool, error) {
		return s.repo.GetByID(ctx, claims.UserID)
	})
	if err != nil {
		return LoginResponse{}, apperrors.Wrap(apperrors.CodeInternal, "failed to load user", err)
	}
	if !found {
		s.logger.Warn("refresh rejected", "user_id", claims.UserID, "reason", "user_missing")
		return LoginResponse{}, apperrors.Wrap(apperrors.CodeUnauthorized, msgTokenInvalid, nil)
	}
	if !user.Active() {
		return LoginResponse{}, apperrors.Wrap(apperrors.CodeForbidden, msgAccountDisabled, nil)
	}
	return s.buildLoginResponse(user)
}

func (s *service) ValidateAccessToken(ctx context.Context, token string) (Claims, error) {
	claims, err := s.validateAccessToken(token)
	outcome := metrics.OutcomeValid
	if err != nil {
		outcome = metrics.OutcomeRejected
	}
	metrics.TokenValidationsTotal.WithLabelValues(outcome).Inc()
	return claims, err
}

func (s *service) validateAccessToken(token string) (Claims, error) {
	if strings.TrimSpace(token) == "" {
		return Claims{}, apperrors.Wrap(apperrors.CodeUnauthorized, "token missing", nil)
	}
	claims, err := s.codec.ParseAndVerify(token)
	if err != nil {
		return Claims{}, err
	}
	return RequireType(claims, TokenTypeAccess)
}

func (s *service) Profile(ctx context.Context, userID int64) (UserView, error) {
	user, found, err := s.lookup(ctx, func(ctx context.Context) (User, bool, error) {
		return s.repo.GetByID(ctx, userID)
	})
	if err != nil {
		return UserView{}, apperrors.Wrap(apperrors.CodeInternal, "failed to load profile", err)
	}
	if !found {
		return UserView{}, apperrors.Wrap(apperrors.CodeNotFound, "user not found", nil)
	}
	return toView(user), nil
}

// ListUsers returns every account in id order.
func (s *service) ListUsers(ctx context.Context) ([]UserView, error) {
	ctx, cancel := s.lookupContext(ctx)
	defer cancel()
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to list users", err)
	}
	views := make([]UserView, 0, len(users))
	for _, user := range users {
		views = append(views, toView(user))
	}
	return views, nil
}

func (s *service) buildLoginResponse(user User) (LoginResponse, error) {
	var roleID int64
	if user.RoleID != nil {
		roleID = *user.RoleID
	}
	access, err := s.codec.Issue(user.ID, user.Username, roleID, TokenTypeAccess, s.cfg.TokenTTL)
	if err != nil {
		return LoginResponse{}, err
	}
	refresh, err := s.codec.Issue(user.ID, user.Username, roleID, TokenTypeRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		return LoginResponse{}, err
	}
	return LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.TokenTTL / time.Second),
		User:         toView(user),
	}, nil
}

func (s *service) lookup(ctx context.Context, fn func(context.Context) (User, bool, error)) (User, bool, error) {
	ctx, cancel := s.lookupContext(ctx)
	defer cancel()
	return fn(ctx)
}

func (s *service) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.LookupTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.LookupTimeout)
	}
	return ctx, func() {}
}

func registrationOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case apperrors.IsCode(err, apperrors.CodeConflict):
		return metrics.OutcomeConflict
	case apperrors.IsCode(err, apperrors.CodeInvalidInput):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}

func toView(user User) UserView {
	return UserView{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Nickname:  user.Nickname,
		Avatar:    user.Avatar,
		RoleID:    user.RoleID,
		Status:    user.Status,
		CreatedAt: user.CreatedAt,
	}
}

func randomSecret(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
