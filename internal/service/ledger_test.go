package service_test

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/auth"
	"github.com/iliyamo/civic-incident-reporting/internal/service"
	"github.com/iliyamo/civic-incident-reporting/internal/service/servicetest"
)

func TestDebitNeverGoesNegative(t *testing.T) {
	env := servicetest.New(t)
	ctx := context.Background()
	u := signup(t, env, "A", "a@x.com", "1")

	bal, err := env.Ledger.Credit(ctx, u.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), bal)

	_, err = env.Ledger.Debit(ctx, u.ID, 11)
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)

	got, err := env.Ledger.Balance(ctx, auth.CallerFromUser(u))
	require.NoError(t, err)
	assert.Equal(t, int64(10), got)

	bal, err = env.Ledger.Debit(ctx, u.ID, 10)
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestLedgerRejectsNonPositiveAmounts(t *testing.T) {
	env := servicetest.New(t)
	ctx := context.Background()
	u := signup(t, env, "A", "a@x.com", "1")

	for _, amount := range []int64{0, -5} {
		_, err := env.Ledger.Credit(ctx, u.ID, amount)
		assert.ErrorIs(t, err, apperr.ErrValidation)
		_, err = env.Ledger.Debit(ctx, u.ID, amount)
		assert.ErrorIs(t, err, apperr.ErrValidation)
		_, err = env.Ledger.Redeem(ctx, u.ID, amount, "mug")
		assert.ErrorIs(t, err, apperr.ErrValidation)
	}
}

func TestCreditRefusesOverflow(t *testing.T) {
	env := servicetest.New(t)
	ctx := context.Background()
	u := signup(t, env, "A", "a@x.com", "1")

	_, err := env.Ledger.Credit(ctx, u.ID, 1)
	require.NoError(t, err)

	_, err = env.Ledger.Credit(ctx, u.ID, math.MaxInt64)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := env.Ledger.Balance(ctx, auth.CallerFromUser(u))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	bal, err := env.Ledger.Credit(ctx, u.ID, math.MaxInt64-1)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), bal)
}

func TestLedgerUnknownUser(t *testing.T) {
	env := servicetest.New(t)
	_, err := env.Ledger.Credit(context.Background(), 404, 5)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConcurrentLedgerConverges(t *testing.T) {
	env := servicetest.New(t)
	ctx := context.Background()
	u := signup(t, env, "A", "a@x.com", "1")
	_, err := env.Ledger.Credit(ctx, u.ID, 100)
	require.NoError(t, err)

	// 50 credits of 3 and 50 debits of 2: any serial order of these ends at
	// 100 + 150 - 100 since the balance can never dip below zero.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := env.Ledger.Credit(ctx, u.ID, 3)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := env.Ledger.Debit(ctx, u.ID, 2)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := env.Ledger.Balance(ctx, auth.CallerFromUser(u))
	require.NoError(t, err)
	assert.Equal(t, int64(150), got)
}

func TestConcurrentOverdraftAllowsExactlyBalance(t *testing.T) {
	env := servicetest.New(t)
	ctx := context.Background()
	u := signup(t, env, "A", "a@x.com", "1")
	_, err := env.Ledger.Credit(ctx, u.ID, 10)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Ledger.Debit(ctx, u.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)
				fail++
				return
			}
			ok++
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, ok)
	assert.Equal(t, 15, fail)
}

func TestRedeem(t *testing.T) {
	env := servicetest.New(t)
	ctx := context.Background()
	u := signup(t, env, "A", "a@x.com", "1")
	caller := auth.CallerFromUser(u)
	_, err := env.Ledger.Credit(ctx, u.ID, 30)
	require.NoError(t, err)

	r, err := env.Ledger.RedeemOwn(ctx, caller, service.RedeemInput{Points: 20, Reward: "Bus pass"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), r.Remaining)
	assert.Equal(t, "Redeemed 20 points for Bus pass", r.Description)

	_, err = env.Ledger.RedeemOwn(ctx, caller, service.RedeemInput{Points: 20, Reward: "Bus pass"})
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)
	_, err = env.Ledger.RedeemOwn(ctx, caller, service.RedeemInput{Points: 1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = env.Ledger.RedeemOwn(ctx, nil, service.RedeemInput{Points: 1, Reward: "x"})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestGrantIsAdminOnly(t *testing.T) {
	env := servicetest.New(t)
	ctx := context.Background()
	u := signup(t, env, "A", "a@x.com", "1")
	admin, err := env.Accounts.SeedAdmin(ctx, service.SignupInput{Name: "Root", Email: "root@x.com", Phone: "0", Password: "p"})
	require.NoError(t, err)

	_, err = env.Ledger.Grant(ctx, auth.CallerFromUser(u), u.ID, 5)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = env.Ledger.Grant(ctx, auth.CallerFromUser(admin), 9999, 5)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	bal, err := env.Ledger.Grant(ctx, auth.CallerFromUser(admin), u.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), bal)
}

func TestLeaderboard(t *testing.T) {
	env := servicetest.New(t)
	ctx := context.Background()
	for i := 1; i <= 12; i++ {
		u := signup(t, env, fmt.Sprintf("U%d", i), fmt.Sprintf("u%d@x.com", i), fmt.Sprint(i))
		_, err := env.Ledger.Credit(ctx, u.ID, int64(i))
		require.NoError(t, err)
	}

	top, err := env.Ledger.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, service.DefaultLeaderboardSize)
	assert.Equal(t, "U12", top[0].Name)
	assert.Equal(t, int64(12), top[0].Points)

	three, err := env.Ledger.Leaderboard(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, three, 3)

	all, err := env.Ledger.Leaderboard(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, all, 12)
}
