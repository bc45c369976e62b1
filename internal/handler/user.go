package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/middleware"
	"github.com/iliyamo/civic-incident-reporting/internal/service"
)

// UserHandler serves point balances, redemptions and the leaderboard.
type UserHandler struct {
	Ledger *service.LedgerService
	Log    *zap.SugaredLogger
}

func NewUserHandler(ledger *service.LedgerService, log *zap.SugaredLogger) *UserHandler {
	if ledger == nil {
		panic("nil service passed to NewUserHandler")
	}
	return &UserHandler{Ledger: ledger, Log: nopIfNil(log)}
}

func (h *UserHandler) Points(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	pts, err := h.Ledger.Balance(ctx, middleware.CallerFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"points": pts})
}

func (h *UserHandler) Redeem(c echo.Context) error {
	var req service.RedeemInput
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	r, err := h.Ledger.RedeemOwn(ctx, middleware.CallerFrom(c), req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

// Leaderboard is public; ?top= defaults to 10 and is capped at 100.
func (h *UserHandler) Leaderboard(c echo.Context) error {
	top := 0
	if s := c.QueryParam("top"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fail(c, h.Log, apperr.Invalid("top", "must be an integer"))
		}
		top = n
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	board, err := h.Ledger.Leaderboard(ctx, top)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, board)
}

type creditReq struct {
	Amount int64 `json:"amount"`
}

// Credit is the admin accrual endpoint.
func (h *UserHandler) Credit(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	var req creditReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	bal, err := h.Ledger.Grant(ctx, middleware.CallerFrom(c), id, req.Amount)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": id, "points": bal})
}
