package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/yanqian/saas-auth/internal/domain/auth"
	apperrors "github.com/yanqian/saas-auth/pkg/errors"
)

// Handler wires the HTTP transport to the auth service.
type Handler struct {
	authSvc auth.Service
	logger  *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(authSvc auth.Service, logger *slog.Logger) *Handler {
	return &Handler{
		authSvc: authSvc,
		logger:  logger.With("component", "http.handler"),
	}
}

// Register creates an account.
func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Login exchanges credentials for a token pair.
func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh exchanges a refresh token for a new token pair.
func (h *Handler) Refresh(c *gin.Context) {
	var req auth.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Me returns the profile of the authenticated principal.
func (h *Handler) Me(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, apperrors.CodeUnauthorized, msgAuthRequired, nil))
		return
	}
	view, err := h.authSvc.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListUsers returns all accounts.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.authSvc.ListUsers(c.Request.Context())
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bindJSON decodes the body; it reports false after aborting the request.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		abortWithError(c, NewHTTPError(http.StatusUnprocessableEntity, apperrors.CodeInvalidInput, validationMessage(verrs), err))
		return false
	}
	abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "malformed request body", err))
	return false
}

func fromAppError(err error) *HTTPError {
	code := apperrors.CodeOf(err)
	return NewHTTPError(statusForCode(code), code, apperrors.MessageOf(err), err)
}

func statusForCode(code string) int {
	switch code {
	case apperrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.CodeForbidden:
		return http.StatusForbidden
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeConflict:
		return http.StatusConflict
	case apperrors.CodeInvalidInput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
