package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/auth"
	"github.com/iliyamo/civic-incident-reporting/internal/metrics"
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100
)

// Redemption describes a completed redeem. Only the resulting balance is
// stored; the description goes to the log.
type Redemption struct {
	Points      int64  `json:"points_redeemed"`
	Reward      string `json:"reward"`
	Remaining   int64  `json:"points_remaining"`
	Description string `json:"msg"`
}

// LeaderboardEntry is one row of the public ranking.
type LeaderboardEntry struct {
	ID     uint64 `json:"id"`
	Name   string `json:"name"`
	Points int64  `json:"points"`
}

// LedgerService keeps point balances. Every change is a locked
// read-modify-write on one user so balances never go negative and
// concurrent changes serialize.
type LedgerService struct {
	users UserStore
	log   *zap.SugaredLogger
}

func NewLedgerService(users UserStore, log *zap.SugaredLogger) *LedgerService {
	if users == nil {
		panic("nil dependency passed to NewLedgerService")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &LedgerService{users: users, log: log}
}

// Credit adds amount to the user's balance and returns the new balance.
func (s *LedgerService) Credit(ctx context.Context, userID uint64, amount int64) (int64, error) {
	if amount <= 0 {
		metrics.LedgerOp("credit", "invalid")
		return 0, apperr.Invalid("amount", "must be greater than zero")
	}
	bal, err := s.users.AdjustPoints(ctx, userID, func(cur int64) (int64, error) {
		if amount > math.MaxInt64-cur {
			return cur, apperr.Invalid("amount", "balance overflow")
		}
		return cur + amount, nil
	})
	s.count("credit", err)
	return bal, err
}

// Debit removes amount from the balance. It fails with
// apperr.ErrInsufficientBalance, leaving the balance alone, when amount
// exceeds it.
func (s *LedgerService) Debit(ctx context.Context, userID uint64, amount int64) (int64, error) {
	bal, err := s.debit(ctx, userID, amount)
	s.count("debit", err)
	return bal, err
}

func (s *LedgerService) debit(ctx context.Context, userID uint64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperr.Invalid("amount", "must be greater than zero")
	}
	return s.users.AdjustPoints(ctx, userID, func(cur int64) (int64, error) {
		if amount > cur {
			return cur, fmt.Errorf("%w: balance %d, requested %d", apperr.ErrInsufficientBalance, cur, amount)
		}
		return cur - amount, nil
	})
}

// Redeem is a debit with a reward description.
func (s *LedgerService) Redeem(ctx context.Context, userID uint64, amount int64, reward string) (Redemption, error) {
	in := RedeemInput{Points: amount, Reward: strings.TrimSpace(reward)}
	if err := validate(in); err != nil {
		metrics.LedgerOp("redeem", "invalid")
		return Redemption{}, err
	}
	bal, err := s.debit(ctx, userID, in.Points)
	s.count("redeem", err)
	if err != nil {
		return Redemption{}, err
	}
	r := Redemption{
		Points:      in.Points,
		Reward:      in.Reward,
		Remaining:   bal,
		Description: fmt.Sprintf("Redeemed %d points for %s", in.Points, in.Reward),
	}
	s.log.Infow("points redeemed", "user_id", userID, "points", in.Points, "reward", in.Reward, "remaining", bal)
	return r, nil
}

// Grant is the admin accrual path.
func (s *LedgerService) Grant(ctx context.Context, caller *auth.Caller, userID uint64, amount int64) (int64, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return 0, err
	}
	if err := auth.Authorize(caller, auth.ActionCreditPoints, auth.Resource{}).Err(); err != nil {
		return 0, err
	}
	bal, err := s.Credit(ctx, userID, amount)
	if err == nil {
		s.log.Infow("points credited", "user_id", userID, "amount", amount, "by", caller.ID)
	}
	return bal, err
}

// RedeemOwn redeems from the caller's own balance.
func (s *LedgerService) RedeemOwn(ctx context.Context, caller *auth.Caller, in RedeemInput) (Redemption, error) {
	if err := auth.Authorize(caller, auth.ActionRedeemPoints, auth.Resource{}).Err(); err != nil {
		return Redemption{}, err
	}
	return s.Redeem(ctx, caller.ID, in.Points, in.Reward)
}

// Balance returns the caller's current points.
func (s *LedgerService) Balance(ctx context.Context, caller *auth.Caller) (int64, error) {
	if err := auth.Authorize(caller, auth.ActionViewAccount, auth.Resource{}).Err(); err != nil {
		return 0, err
	}
	u, err := s.users.GetByID(ctx, caller.ID)
	if err != nil {
		return 0, err
	}
	return u.Points, nil
}

// Leaderboard lists the top users by points. top defaults to
// DefaultLeaderboardSize and is capped at MaxLeaderboardSize.
func (s *LedgerService) Leaderboard(ctx context.Context, top int) ([]LeaderboardEntry, error) {
	if top <= 0 {
		top = DefaultLeaderboardSize
	}
	if top > MaxLeaderboardSize {
		top = MaxLeaderboardSize
	}
	users, err := s.users.Leaderboard(ctx, top)
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardEntry, 0, len(users))
	for _, u := range users {
		out = append(out, LeaderboardEntry{ID: u.ID, Name: u.Name, Points: u.Points})
	}
	return out, nil
}

func (s *LedgerService) count(op string, err error) {
	switch {
	case err == nil:
		metrics.LedgerOp(op, "ok")
	case errors.Is(err, apperr.ErrInsufficientBalance):
		metrics.LedgerOp(op, "insufficient")
	case errors.Is(err, apperr.ErrValidation):
		metrics.LedgerOp(op, "invalid")
	default:
		metrics.LedgerOp(op, "error")
	}
}
