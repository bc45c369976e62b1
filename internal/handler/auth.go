package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/middleware"
	"github.com/iliyamo/civic-incident-reporting/internal/service"
)

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	Accounts *service.AccountService
	Log      *zap.SugaredLogger
}

func NewAuthHandler(accounts *service.AccountService, log *zap.SugaredLogger) *AuthHandler {
	if accounts == nil {
		panic("nil service passed to NewAuthHandler")
	}
	return &AuthHandler{Accounts: accounts, Log: nopIfNil(log)}
}

// Signup registers a user; the response never contains the password hash.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req service.SignupInput
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Accounts.Signup(ctx, req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"msg": "User created", "user": u})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	sess, err := h.Accounts.Login(ctx, req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Me returns the authenticated caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Accounts.Me(ctx, middleware.CallerFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Refresh expects the refresh token as the bearer credential and answers
// with a new access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw, ok := middleware.BearerToken(c.Request())
	if !ok {
		return fail(c, h.Log, apperr.ErrUnauthenticated)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	access, err := h.Accounts.Refresh(ctx, raw)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"access_token": access})
}

type resetRequestReq struct {
	Email string `json:"email"`
}

func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequestReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Accounts.RequestPasswordReset(ctx, req.Email); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Password reset link sent to email"})
}

type resetReq struct {
	Password string `json:"password"`
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Accounts.ResetPassword(ctx, c.Param("token"), req.Password); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Password has been reset"})
}
