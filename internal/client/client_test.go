package client_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/fixed-ratio-trading/internal/client"
	"github.com/lugondev/fixed-ratio-trading/internal/config"
	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/instruction"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/pda"
	"github.com/lugondev/fixed-ratio-trading/internal/program"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
	"github.com/lugondev/fixed-ratio-trading/internal/token"
)

type fixture struct {
	t         *testing.T
	ctx       context.Context
	bank      *ledger.Bank
	c         *client.Client
	authority solana.PrivateKey
	owner     solana.PrivateKey
	mintX     solana.PublicKey
	mintY     solana.PublicKey
	pool      *pda.PoolAddresses
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bank := ledger.NewBank(ledger.DefaultConfig())
	require.NoError(t, token.Install(bank))
	prog, err := program.New(program.DefaultProgramID)
	require.NoError(t, err)

	c, err := client.New(bank, prog.ID(), client.WithRetry(config.ClientConfig{
		MaxRetries:           100,
		RetryInitialInterval: time.Millisecond,
		RetryMaxElapsedTime:  10 * time.Second,
	}))
	require.NoError(t, err)

	f := &fixture{t: t, ctx: context.Background(), bank: bank, c: c}
	f.authority = f.user()
	f.owner = f.user()
	require.NoError(t, prog.Deploy(bank, f.authority.PublicKey()))
	_, err = c.InitializeProgram(f.ctx, f.authority)
	require.NoError(t, err)

	f.mintX, f.mintY = f.mint(), f.mint()
	f.pool, _, err = c.CreatePool(f.ctx, f.owner, f.mintX, f.mintY, 2, 1, 0)
	require.NoError(t, err)
	return f
}

func (f *fixture) user() solana.PrivateKey {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(f.t, err)
	f.bank.Airdrop(key.PublicKey(), 20_000_000_000)
	return key
}

func (f *fixture) mint() solana.PublicKey {
	key := solana.NewWallet().PublicKey()
	f.bank.SetAccount(key, token.NewMintAccount(f.bank.Rent(), f.authority.PublicKey(), 0, 0))
	return key
}

func (f *fixture) tokenAccount(mint, owner solana.PublicKey, amount uint64) solana.PublicKey {
	key := solana.NewWallet().PublicKey()
	f.bank.SetAccount(key, token.NewTokenAccount(f.bank.Rent(), mint, owner, amount))
	return key
}

func (f *fixture) lpMint(mint solana.PublicKey) solana.PublicKey {
	return f.pool.LpMint(mint.Equals(f.pool.TokenAMint)).Key
}

// provide deposits amount of mint for a fresh user.
func (f *fixture) provide(mint solana.PublicKey, amount uint64) (solana.PrivateKey, instruction.LiquidityAccounts, error) {
	u := f.user()
	acc := instruction.LiquidityAccounts{
		TokenAccount: f.tokenAccount(mint, u.PublicKey(), amount),
		LpAccount:    f.tokenAccount(f.lpMint(mint), u.PublicKey(), 0),
	}
	_, err := f.c.Deposit(f.ctx, u, f.pool, acc, mint, amount)
	return u, acc, err
}

func TestDepositSwapAndQuote(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.provide(f.mintY, 500_000)
	require.NoError(t, err)

	trader := f.user()
	acc := instruction.SwapAccounts{
		InputAccount:  f.tokenAccount(f.mintX, trader.PublicKey(), 10_000),
		OutputAccount: f.tokenAccount(f.mintY, trader.PublicKey(), 0),
	}
	quote, err := f.c.QuoteSwap(f.pool.PoolState.Key, f.mintX, 10_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), quote.AmountOut)

	res, err := f.c.Swap(f.ctx, trader, f.pool, acc, f.mintX, 10_000, quote.AmountOut)
	require.NoError(t, err)
	ev := res.Event("SwapExecuted")
	require.NotNil(t, ev)
	swap := ev.Data.(program.SwapExecuted)
	assert.Equal(t, quote.AmountOut, swap.AmountOut)

	out, err := token.Balance(f.bank, acc.OutputAccount)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), out)

	_, err = f.c.QuoteSwap(f.pool.PoolState.Key, f.mint(), 1)
	assert.True(t, errors.Is(err, errors.ErrInvalidTokenPair))
}

func TestProgramFailureIsNotRetried(t *testing.T) {
	f := newFixture(t)

	u, acc, err := f.provide(f.mintX, 0)
	require.True(t, errors.Is(err, errors.ErrInvalidArgument), "got %v", err)

	res, err := f.c.Deposit(f.ctx, u, f.pool, acc, f.mintX, 0)
	require.Error(t, err)
	require.NotNil(t, res, "an executed transaction is reported even when it fails")
	assert.True(t, errors.Is(res.Meta.Err, errors.ErrInvalidArgument))
}

func TestConcurrentDepositsRetryAccountInUse(t *testing.T) {
	f := newFixture(t)
	const users = 8

	var wg sync.WaitGroup
	errs := make([]error, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = f.provide(f.mintX, 1_000)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "user %d", i)
	}
	p, err := f.c.Pool(f.pool.PoolState.Key)
	require.NoError(t, err)
	assert.Equal(t, uint64(users*1_000), p.Liquidity(f.mintX.Equals(f.pool.TokenAMint)))
}

func TestReadOnlyViews(t *testing.T) {
	f := newFixture(t)

	version, err := f.c.Version(f.ctx, f.authority)
	require.NoError(t, err)
	assert.Equal(t, program.Version, version)

	info, err := f.c.PoolInfo(f.ctx, f.authority, f.pool.PoolState.Key)
	require.NoError(t, err)
	assert.Equal(t, f.owner.PublicKey(), info.Owner)
	assert.Equal(t, f.pool.RatioA, info.RatioANumerator)

	treasury, err := f.c.TreasuryInfo(f.ctx, f.authority)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), treasury.PoolCreationCount)

	onLedger, err := f.c.Treasury()
	require.NoError(t, err)
	assert.Equal(t, treasury.PoolCreationCount, onLedger.PoolCreationCount)

	status, err := f.c.ConsolidationStatus(f.ctx, f.authority, f.pool.PoolState.Key)
	require.NoError(t, err)
	require.Len(t, status.Pools, 1)
	assert.False(t, status.Pools[0].Eligible)

	sys, err := f.c.SystemState()
	require.NoError(t, err)
	assert.False(t, sys.IsPaused)

	pools := f.c.Pools()
	require.Len(t, pools, 1)
	assert.Contains(t, pools, f.pool.PoolState.Key)

	addrs, err := f.c.PoolAddresses(f.pool.PoolState.Key)
	require.NoError(t, err)
	assert.Equal(t, f.pool.TokenAVault.Key, addrs.TokenAVault.Key)
}

func TestPoolReaders(t *testing.T) {
	f := newFixture(t)
	key := f.pool.PoolState.Key
	_, _, err := f.provide(f.mintX, 40_000)
	require.NoError(t, err)

	liq, err := f.c.LiquidityInfo(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(40_000), liq.TokenALiquidity+liq.TokenBLiquidity)

	fees, err := f.c.FeeInfo(key)
	require.NoError(t, err)
	assert.Equal(t, state.DepositWithdrawalFee, fees.ContractLiquidityFee)
	assert.Equal(t, state.DepositWithdrawalFee, fees.PendingSolFees)

	bal, err := f.c.PoolSolBalance(key)
	require.NoError(t, err)
	assert.Equal(t, fees.PendingSolFees, bal.PendingSolFees)
	assert.GreaterOrEqual(t, bal.Lamports, bal.RentExempt+bal.PendingSolFees)

	a, b, err := f.c.TokenVaultPDAs(key)
	require.NoError(t, err)
	assert.Equal(t, f.pool.TokenAVault, a)
	assert.Equal(t, f.pool.TokenBVault, b)

	status, err := f.c.PoolPauseStatus(key)
	require.NoError(t, err)
	assert.Equal(t, client.PauseStatus{}, *status)

	_, err = f.c.PausePool(f.ctx, f.authority, key, state.PauseFlagSwaps)
	require.NoError(t, err)
	status, err = f.c.PoolPauseStatus(key)
	require.NoError(t, err)
	assert.Equal(t, client.PauseStatus{SwapsPaused: true}, *status)

	_, err = f.c.FeeInfo(f.mintX)
	assert.Error(t, err)
}

func TestDelegateActionID(t *testing.T) {
	f := newFixture(t)
	delegate := f.user()
	pool := f.pool.PoolState.Key

	_, err := f.c.AddDelegate(f.ctx, f.owner, pool, delegate.PublicKey())
	require.NoError(t, err)

	id, _, err := f.c.RequestDelegateAction(f.ctx, delegate, pool, state.FeeChangeParams{NewFeeBasisPoints: 10})
	require.NoError(t, err)

	_, err = f.c.ExecuteDelegateAction(f.ctx, delegate, pool, id, nil)
	assert.True(t, errors.Is(err, errors.ErrActionNotReady))

	f.bank.Warp(time.Duration(state.DefaultDelegateWait) * time.Second)
	_, err = f.c.ExecuteDelegateAction(f.ctx, delegate, pool, id, nil)
	require.NoError(t, err)

	p, err := f.c.Pool(pool)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), p.SwapFeeBasisPoints)
}
