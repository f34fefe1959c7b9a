package program

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/instruction"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/metrics"
	"github.com/lugondev/fixed-ratio-trading/internal/pda"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
	"github.com/lugondev/fixed-ratio-trading/internal/token"
	"github.com/lugondev/fixed-ratio-trading/pkg/decoder"
	txlog "github.com/lugondev/fixed-ratio-trading/pkg/log"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

type harness struct {
	t         *testing.T
	bank      *ledger.Bank
	prog      *Program
	b         *instruction.Builder
	authority solana.PrivateKey
	metrics   *metrics.LogMetrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bank := ledger.NewBank(ledger.DefaultConfig())
	require.NoError(t, token.Install(bank))

	m := metrics.NewLogMetrics(nil)
	prog, err := New(DefaultProgramID, WithMetrics(metrics.NewCollection(m)))
	require.NoError(t, err)
	b, err := instruction.NewBuilder(prog.ID())
	require.NoError(t, err)

	h := &harness{t: t, bank: bank, prog: prog, b: b, metrics: m}
	h.authority = h.newUser(10_000_000_000)
	require.NoError(t, prog.Deploy(bank, h.authority.PublicKey()))
	_, err = h.submit(h.authority, b.InitializeProgram(h.authority.PublicKey()))
	require.NoError(t, err)
	return h
}

func (h *harness) newUser(lamports uint64) solana.PrivateKey {
	h.t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(h.t, err)
	h.bank.Airdrop(key.PublicKey(), lamports)
	return key
}

func (h *harness) submit(payer solana.PrivateKey, ixs ...types.Instruction) (*types.TransactionStatusMeta, error) {
	h.t.Helper()
	tx := ledger.NewTransaction(ixs, h.bank.LatestBlockhash(), payer.PublicKey())
	require.NoError(h.t, tx.SignWith(payer))
	return h.bank.Process(context.Background(), tx)
}

func (h *harness) newMint(decimals uint8) solana.PublicKey {
	key := solana.NewWallet().PublicKey()
	h.bank.SetAccount(key, token.NewMintAccount(h.bank.Rent(), h.authority.PublicKey(), decimals, 0))
	return key
}

func (h *harness) newTokenAccount(mint, owner solana.PublicKey, amount uint64) solana.PublicKey {
	key := solana.NewWallet().PublicKey()
	h.bank.SetAccount(key, token.NewTokenAccount(h.bank.Rent(), mint, owner, amount))
	return key
}

func (h *harness) balance(key solana.PublicKey) uint64 {
	h.t.Helper()
	amount, err := token.Balance(h.bank, key)
	require.NoError(h.t, err)
	return amount
}

func (h *harness) pool(addrs *pda.PoolAddresses) *state.PoolState {
	h.t.Helper()
	acct, ok := h.bank.GetAccount(addrs.PoolState.Key)
	require.True(h.t, ok)
	p := new(state.PoolState)
	require.NoError(h.t, state.Decode(acct.Data, p))
	return p
}

func (h *harness) createPool(owner solana.PrivateKey, mint1, mint2 solana.PublicKey, ratio1, ratio2 uint64, flags state.PoolFlags) *pda.PoolAddresses {
	h.t.Helper()
	ix, addrs, err := h.b.InitializePool(owner.PublicKey(), mint1, mint2, ratio1, ratio2, flags)
	require.NoError(h.t, err)
	_, err = h.submit(owner, ix)
	require.NoError(h.t, err)
	return addrs
}

func (h *harness) pauseSystem(reason uint8) error {
	_, err := h.submit(h.authority, h.b.PauseSystem(h.authority.PublicKey(), reason))
	return err
}

// trader holds one user's token and LP accounts for both pool sides.
type trader struct {
	key          solana.PrivateKey
	tokenX       solana.PublicKey
	tokenY       solana.PublicKey
	lpX          solana.PublicKey
	lpY          solana.PublicKey
	mintX, mintY solana.PublicKey
}

func (h *harness) newTrader(addrs *pda.PoolAddresses, mintX, mintY solana.PublicKey, amountX, amountY uint64) *trader {
	key := h.newUser(10_000_000_000)
	xIsA := mintX.Equals(addrs.TokenAMint)
	return &trader{
		key:    key,
		mintX:  mintX,
		mintY:  mintY,
		tokenX: h.newTokenAccount(mintX, key.PublicKey(), amountX),
		tokenY: h.newTokenAccount(mintY, key.PublicKey(), amountY),
		lpX:    h.newTokenAccount(addrs.LpMint(xIsA).Key, key.PublicKey(), 0),
		lpY:    h.newTokenAccount(addrs.LpMint(!xIsA).Key, key.PublicKey(), 0),
	}
}

func (h *harness) deposit(tr *trader, addrs *pda.PoolAddresses, x bool, amount uint64) error {
	acc := instruction.LiquidityAccounts{User: tr.key.PublicKey(), TokenAccount: tr.tokenX, LpAccount: tr.lpX}
	mint := tr.mintX
	if !x {
		acc.TokenAccount, acc.LpAccount, mint = tr.tokenY, tr.lpY, tr.mintY
	}
	_, err := h.submit(tr.key, h.b.Deposit(addrs, acc, mint, amount))
	return err
}

func (h *harness) withdraw(tr *trader, addrs *pda.PoolAddresses, x bool, amount uint64) (*types.TransactionStatusMeta, error) {
	acc := instruction.LiquidityAccounts{User: tr.key.PublicKey(), TokenAccount: tr.tokenX, LpAccount: tr.lpX}
	mint := tr.mintX
	if !x {
		acc.TokenAccount, acc.LpAccount, mint = tr.tokenY, tr.lpY, tr.mintY
	}
	return h.submit(tr.key, h.b.Withdraw(addrs, acc, mint, amount))
}

func (h *harness) swapXForY(tr *trader, addrs *pda.PoolAddresses, amountIn, expected uint64) (*types.TransactionStatusMeta, error) {
	acc := instruction.SwapAccounts{User: tr.key.PublicKey(), InputAccount: tr.tokenX, OutputAccount: tr.tokenY}
	return h.submit(tr.key, h.b.Swap(addrs, acc, tr.mintX, amountIn, expected))
}

func (h *harness) swapYForX(tr *trader, addrs *pda.PoolAddresses, amountIn, expected uint64) (*types.TransactionStatusMeta, error) {
	acc := instruction.SwapAccounts{User: tr.key.PublicKey(), InputAccount: tr.tokenY, OutputAccount: tr.tokenX}
	return h.submit(tr.key, h.b.Swap(addrs, acc, tr.mintY, amountIn, expected))
}

func (h *harness) treasury() *state.MainTreasuryState {
	h.t.Helper()
	acct, ok := h.bank.GetAccount(h.b.Treasury)
	require.True(h.t, ok)
	tr := new(state.MainTreasuryState)
	require.NoError(h.t, state.Decode(acct.Data, tr))
	return tr
}

// requireBacked checks that each side's vault holds exactly the LP supply
// and the recorded liquidity.
func (h *harness) requireBacked(addrs *pda.PoolAddresses) {
	h.t.Helper()
	p := h.pool(addrs)
	for _, tokenA := range []bool{true, false} {
		lpMint, err := token.GetMint(h.bank, addrs.LpMint(tokenA).Key)
		require.NoError(h.t, err)
		vault := h.balance(addrs.Vault(tokenA).Key)
		require.Equal(h.t, vault, lpMint.Supply, "token A side: %v", tokenA)
		require.Equal(h.t, vault, p.Liquidity(tokenA), "token A side: %v", tokenA)
	}
}

// threeToOne creates a pool where 3 X trade for 1 Y and funds a provider
// with both sides of liquidity.
func threeToOne(t *testing.T) (*harness, *pda.PoolAddresses, *trader) {
	h, addrs, lp, _ := threeToOneWithOwner(t)
	return h, addrs, lp
}

func threeToOneWithOwner(t *testing.T) (*harness, *pda.PoolAddresses, *trader, solana.PrivateKey) {
	h := newHarness(t)
	mintX, mintY := h.newMint(0), h.newMint(0)
	owner := h.newUser(10_000_000_000)
	addrs := h.createPool(owner, mintX, mintY, 3, 1, 0)
	lp := h.newTrader(addrs, mintX, mintY, 2_000_000, 1_000_000)
	require.NoError(t, h.deposit(lp, addrs, true, 2_000_000))
	require.NoError(t, h.deposit(lp, addrs, false, 1_000_000))
	return h, addrs, lp, owner
}

// runDelegateAction requests params as delegate, waits out the default lock
// and executes it.
func (h *harness) runDelegateAction(delegate solana.PrivateKey, pool solana.PublicKey, params state.ActionParams, withdrawal *instruction.WithdrawalAccounts) error {
	h.t.Helper()
	_, err := h.submit(delegate, h.b.RequestDelegateAction(delegate.PublicKey(), pool, params))
	require.NoError(h.t, err)
	acct, ok := h.bank.GetAccount(pool)
	require.True(h.t, ok)
	p := new(state.PoolState)
	require.NoError(h.t, state.Decode(acct.Data, p))
	pending := p.Delegates.Pending()
	require.NotEmpty(h.t, pending)
	h.bank.Warp(time.Duration(state.DefaultDelegateWait) * time.Second)
	_, err = h.submit(delegate, h.b.ExecuteDelegateAction(delegate.PublicKey(), pool, pending[len(pending)-1].ActionID, withdrawal))
	return err
}

func TestInitializeProgram(t *testing.T) {
	h := newHarness(t)

	acct, ok := h.bank.GetAccount(h.b.Treasury)
	require.True(t, ok)
	treasury := new(state.MainTreasuryState)
	require.NoError(t, state.Decode(acct.Data, treasury))
	assert.Equal(t, h.bank.Rent().MinimumBalance(state.TreasuryLen), treasury.RentExemptMinimum)

	_, err := h.submit(h.authority, h.b.InitializeProgram(h.authority.PublicKey()))
	assert.True(t, errors.Is(err, errors.ErrAccountAlreadyInitialized))

	intruder := h.newUser(1_000_000_000)
	_, err = h.submit(intruder, h.b.PauseSystem(intruder.PublicKey(), 1))
	assert.True(t, errors.Is(err, errors.ErrUnauthorizedAccess))
}

func TestInitializePool(t *testing.T) {
	h := newHarness(t)
	mintX, mintY := h.newMint(0), h.newMint(0)
	owner := h.newUser(10_000_000_000)
	before := h.bank.Balance(h.b.Treasury)

	addrs := h.createPool(owner, mintX, mintY, 3, 1, state.FlagExactExchangeRequired|state.FlagLiquidityPaused)
	p := h.pool(addrs)

	assert.Equal(t, owner.PublicKey(), p.Owner)
	assert.True(t, p.Flags.Has(state.FlagSimpleRatio))
	assert.True(t, p.Flags.Has(state.FlagExactExchangeRequired))
	assert.False(t, p.LiquidityPaused(), "creation flags outside the allowed set are dropped")
	assert.Equal(t, state.RegistrationFee, h.bank.Balance(h.b.Treasury)-before)

	lpMint, err := token.GetMint(h.bank, addrs.LpTokenAMint.Key)
	require.NoError(t, err)
	assert.Equal(t, addrs.PoolState.Key, *lpMint.MintAuthority)

	ix, _, err := h.b.InitializePool(owner.PublicKey(), mintY, mintX, 1, 3, 0)
	require.NoError(t, err)
	_, err = h.submit(owner, ix)
	assert.True(t, errors.Is(err, errors.ErrAccountAlreadyInitialized), "reversed order names the same pool")

	_, _, err = h.b.InitializePool(owner.PublicKey(), mintX, mintX, 1, 1, 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidTokenPair))

	ix, _, err = h.b.InitializePool(owner.PublicKey(), mintX, mintY, 3, 7, 0)
	require.NoError(t, err)
	_, err = h.submit(owner, ix)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedRatioType))

	assert.Equal(t, uint64(1), h.metrics.Counter(metrics.MetricPoolsCreated))
}

func TestDepositAndSwap(t *testing.T) {
	h, addrs, lp := threeToOne(t)
	xIsA := lp.mintX.Equals(addrs.TokenAMint)

	assert.Equal(t, uint64(2_000_000), h.balance(lp.lpX))
	assert.Equal(t, uint64(1_000_000), h.balance(lp.lpY))

	p := h.pool(addrs)
	assert.Equal(t, 2*state.DepositWithdrawalFee, p.CollectedLiquidityFees)
	assert.Equal(t, uint64(2), p.LiquidityOpsPending)

	tr := h.newTrader(addrs, lp.mintX, lp.mintY, 300_000, 0)
	meta, err := h.swapXForY(tr, addrs, 300_000, 100_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), h.balance(tr.tokenX))
	assert.Equal(t, uint64(100_000), h.balance(tr.tokenY))

	p = h.pool(addrs)
	assert.Equal(t, uint64(2_300_000), p.Liquidity(xIsA))
	assert.Equal(t, uint64(900_000), p.Liquidity(!xIsA))
	assert.Equal(t, state.SwapContractFee, p.CollectedSwapContractFees)

	registry := decoder.NewRegistry()
	RegisterEvents(registry, h.prog.ID())
	payloads := txlog.NewParser().ProgramData(meta.LogMessages, h.prog.ID())
	require.Len(t, payloads, 1)
	event, err := registry.Decode(payloads[0], &DefaultProgramID)
	require.NoError(t, err)
	swap, ok := event.Data.(SwapExecuted)
	require.True(t, ok)
	assert.Equal(t, uint64(300_000), swap.AmountIn)
	assert.Equal(t, uint64(100_000), swap.AmountOut)
	assert.Equal(t, state.SwapContractFee, swap.ContractFee)

	summary := h.metrics.Histogram(metrics.MetricSwapAmountIn)
	assert.Equal(t, uint64(1), summary.Count)
}

func TestSwapRejections(t *testing.T) {
	h, addrs, lp := threeToOne(t)
	tr := h.newTrader(addrs, lp.mintX, lp.mintY, 10_000_000, 0)

	_, err := h.swapXForY(tr, addrs, 0, 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidSwapAmount))

	_, err = h.swapXForY(tr, addrs, 2, 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidSwapAmount), "2 X rounds down to no Y")

	_, err = h.swapXForY(tr, addrs, 300_000, 99_999)
	assert.True(t, errors.Is(err, errors.ErrAmountMismatch))

	_, err = h.swapXForY(tr, addrs, 9_000_000, 0)
	assert.True(t, errors.Is(err, errors.ErrProgramInsufficientFunds))

	_, err = h.submit(h.authority, h.b.PausePool(h.authority.PublicKey(), addrs.PoolState.Key, state.PauseFlagSwaps))
	require.NoError(t, err)
	_, err = h.swapXForY(tr, addrs, 300_000, 0)
	assert.True(t, errors.Is(err, errors.ErrPoolSwapsPaused))
}

func TestExactExchangeAndOwnerOnly(t *testing.T) {
	h := newHarness(t)
	mintX, mintY := h.newMint(0), h.newMint(0)
	owner := h.newUser(10_000_000_000)
	addrs := h.createPool(owner, mintX, mintY, 3, 1, state.FlagExactExchangeRequired)
	lp := h.newTrader(addrs, mintX, mintY, 0, 1_000_000)
	require.NoError(t, h.deposit(lp, addrs, false, 1_000_000))

	tr := h.newTrader(addrs, mintX, mintY, 1_000, 0)
	_, err := h.swapXForY(tr, addrs, 100, 0)
	assert.True(t, errors.Is(err, errors.ErrInexactExchange))
	_, err = h.swapXForY(tr, addrs, 99, 33)
	require.NoError(t, err)

	_, err = h.submit(h.authority, h.b.SetSwapOwnerOnly(h.authority.PublicKey(), addrs.PoolState.Key, true, lp.key.PublicKey()))
	require.NoError(t, err)
	_, err = h.swapXForY(tr, addrs, 99, 0)
	assert.True(t, errors.Is(err, errors.ErrSwapAccessRestricted))
}

func TestQuote(t *testing.T) {
	p := state.NewPoolState(solana.PublicKey{})
	p.RatioANumerator, p.RatioBDenominator = 3, 1
	p.SwapFeeBasisPoints = 50

	q, err := Quote(p, true, 300_000)
	require.NoError(t, err)
	assert.Equal(t, SwapQuote{AmountIn: 300_000, Gross: 100_000, Fee: 500, AmountOut: 99_500}, q)

	q, err = Quote(p, false, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), q.Gross)

	p.RatioANumerator, p.RatioBDenominator = 1, 1<<40
	_, err = Quote(p, true, 1<<40)
	assert.True(t, errors.Is(err, errors.ErrProgramArithmeticOverflow))
}

func TestWithdrawalProtection(t *testing.T) {
	h, addrs, lp := threeToOne(t)
	xIsA := lp.mintX.Equals(addrs.TokenAMint)

	meta, err := h.withdraw(lp, addrs, true, 500_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), h.balance(lp.tokenX))
	assert.Equal(t, uint64(1_500_000), h.balance(lp.lpX))

	p := h.pool(addrs)
	assert.Equal(t, uint64(1_500_000), p.Liquidity(xIsA))
	assert.False(t, p.WithdrawalProtectionActive())
	assert.False(t, p.SwapsPaused(), "protection restores the swap state")

	registry := decoder.NewRegistry()
	RegisterEvents(registry, h.prog.ID())
	events, err := registry.DecodeAll(txlog.NewParser().ProgramData(meta.LogMessages, h.prog.ID()), &DefaultProgramID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Data.(LiquidityWithdrawn).Protection)

	_, err = h.withdraw(lp, addrs, true, 10_000_000)
	assert.True(t, errors.Is(err, errors.ErrProgramInsufficientFunds))
}

func TestPoolLimits(t *testing.T) {
	h, addrs, lp := threeToOne(t)
	limits := state.VolumeLimits{MaxSwapAmount: 1_000, MinDepositAmount: 10}
	_, err := h.submit(h.authority, h.b.SetPoolLimits(h.authority.PublicKey(), addrs.PoolState.Key, limits))
	require.NoError(t, err)

	tr := h.newTrader(addrs, lp.mintX, lp.mintY, 10_000, 0)
	_, err = h.swapXForY(tr, addrs, 3_000, 0)
	assert.True(t, errors.Is(err, errors.ErrAmountOutOfRange))
	assert.True(t, errors.Is(h.deposit(lp, addrs, true, 5), errors.ErrAmountOutOfRange))

	bad := state.VolumeLimits{MinSwapAmount: 10, MaxSwapAmount: 5}
	_, err = h.submit(h.authority, h.b.SetPoolLimits(h.authority.PublicKey(), addrs.PoolState.Key, bad))
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestPausePoolIsIdempotent(t *testing.T) {
	h, addrs, lp := threeToOne(t)
	pause := func(flags uint8) error {
		_, err := h.submit(h.authority, h.b.PausePool(h.authority.PublicKey(), addrs.PoolState.Key, flags))
		return err
	}
	require.NoError(t, pause(state.PauseFlagLiquidity))
	require.NoError(t, pause(state.PauseFlagLiquidity))
	assert.True(t, errors.Is(h.deposit(lp, addrs, true, 1), errors.ErrLiquidityPaused))
	assert.True(t, errors.Is(pause(4), errors.ErrInvalidPauseFlags))
	assert.True(t, errors.Is(pause(0), errors.ErrInvalidPauseFlags))

	_, err := h.submit(h.authority, h.b.UnpausePool(h.authority.PublicKey(), addrs.PoolState.Key, state.PauseFlagAll))
	require.NoError(t, err)
	assert.Equal(t, state.FlagSimpleRatio, h.pool(addrs).Flags)
}

func TestSystemPause(t *testing.T) {
	h, addrs, lp := threeToOne(t)

	assert.True(t, errors.Is(h.pauseSystem(0), errors.ErrInvalidArgument))
	require.NoError(t, h.pauseSystem(7))
	assert.True(t, errors.Is(h.pauseSystem(7), errors.ErrSystemAlreadyPaused))

	assert.True(t, errors.Is(h.deposit(lp, addrs, true, 1_000), errors.ErrSystemPaused))
	_, err := h.submit(h.authority, h.b.UpdatePoolFees(h.authority.PublicKey(), addrs.PoolState.Key, state.FeeUpdateAll, 2_000, 2_000))
	assert.True(t, errors.Is(err, errors.ErrSystemPaused))
	_, err = h.submit(h.authority, h.b.PausePool(h.authority.PublicKey(), addrs.PoolState.Key, state.PauseFlagAll))
	assert.NoError(t, err, "pool pause stays available while the system is paused")

	_, err = h.submit(h.authority, h.b.UnpauseSystem(h.authority.PublicKey()))
	require.NoError(t, err)
	_, err = h.submit(h.authority, h.b.UnpauseSystem(h.authority.PublicKey()))
	assert.True(t, errors.Is(err, errors.ErrSystemNotPaused))
}

func TestUpdatePoolFees(t *testing.T) {
	h, addrs, _ := threeToOne(t)
	update := func(flags uint8, liquidity, swap uint64) error {
		_, err := h.submit(h.authority, h.b.UpdatePoolFees(h.authority.PublicKey(), addrs.PoolState.Key, flags, liquidity, swap))
		return err
	}
	assert.True(t, errors.Is(update(0, 2_000, 2_000), errors.ErrInvalidFeeUpdateFlags))
	assert.True(t, errors.Is(update(4, 2_000, 2_000), errors.ErrInvalidFeeUpdateFlags))
	assert.True(t, errors.Is(update(state.FeeUpdateLiquidity, 999, 0), errors.ErrInvalidLiquidityFee))
	assert.True(t, errors.Is(update(state.FeeUpdateSwap, 0, 10_000_001), errors.ErrInvalidSwapFee))

	require.NoError(t, update(state.FeeUpdateSwap, 0, 20_000))
	p := h.pool(addrs)
	assert.Equal(t, uint64(20_000), p.SwapContractFee)
	assert.Equal(t, state.DepositWithdrawalFee, p.ContractLiquidityFee)
}

func TestConsolidation(t *testing.T) {
	h, addrs, _ := threeToOne(t)
	consolidate := func(pools ...solana.PublicKey) error {
		_, err := h.submit(h.authority, h.b.ConsolidatePoolFees(h.authority.PublicKey(), pools))
		return err
	}
	assert.True(t, errors.Is(consolidate(), errors.ErrInvalidArgument))
	many := make([]solana.PublicKey, state.MaxConsolidationPools+1)
	for i := range many {
		many[i] = addrs.PoolState.Key
	}
	assert.True(t, errors.Is(consolidate(many...), errors.ErrInvalidArgument))
	assert.True(t, errors.Is(consolidate(addrs.PoolState.Key), errors.ErrPoolNotPausedForConsolidation))

	pending := h.pool(addrs).PendingSolFees()
	treasuryBefore := h.bank.Balance(h.b.Treasury)
	_, err := h.submit(h.authority, h.b.PausePool(h.authority.PublicKey(), addrs.PoolState.Key, state.PauseFlagAll))
	require.NoError(t, err)

	meta, err := h.submit(h.authority, h.b.GetConsolidationStatus([]solana.PublicKey{addrs.PoolState.Key}))
	require.NoError(t, err)
	var status instruction.ConsolidationStatus
	require.NoError(t, instruction.UnmarshalReturn(meta.ReturnData.Data, &status))
	require.Len(t, status.Pools, 1)
	assert.True(t, status.Pools[0].Eligible)
	assert.Equal(t, pending, status.TotalPending)

	require.NoError(t, consolidate(addrs.PoolState.Key))
	p := h.pool(addrs)
	assert.Zero(t, p.PendingSolFees())
	assert.Equal(t, pending, p.TotalFeesConsolidated)
	assert.Equal(t, uint64(1), p.TotalConsolidations)
	assert.Equal(t, treasuryBefore+pending, h.bank.Balance(h.b.Treasury))
	assert.Equal(t, h.bank.Rent().MinimumBalance(state.PoolStateLen), h.bank.Balance(addrs.PoolState.Key))

	meta, err = h.submit(h.authority, h.b.GetTreasuryInfo())
	require.NoError(t, err)
	treasury, err := instruction.DecodeTreasuryInfo(meta.ReturnData.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), treasury.TotalConsolidationsPerformed)
	assert.Equal(t, uint64(2), treasury.LiquidityOperationCount)
}

func TestConsolidationUnderSystemPause(t *testing.T) {
	h, addrs, _ := threeToOne(t)
	require.NoError(t, h.pauseSystem(state.PauseReasonConsolidation))
	_, err := h.submit(h.authority, h.b.ConsolidatePoolFees(h.authority.PublicKey(), []solana.PublicKey{addrs.PoolState.Key}))
	require.NoError(t, err)
	assert.Zero(t, h.pool(addrs).PendingSolFees())
}

func TestWithdrawTreasuryFees(t *testing.T) {
	h := newHarness(t)
	mintX, mintY := h.newMint(0), h.newMint(0)
	h.createPool(h.newUser(10_000_000_000), mintX, mintY, 1, 1, 0)
	dest := solana.NewWallet().PublicKey()

	_, err := h.submit(h.authority, h.b.WithdrawTreasuryFees(h.authority.PublicKey(), dest, state.RegistrationFee+1))
	assert.True(t, errors.Is(err, errors.ErrInsufficientFunds))

	_, err = h.submit(h.authority, h.b.WithdrawTreasuryFees(h.authority.PublicKey(), dest, 0))
	require.NoError(t, err)
	assert.Equal(t, state.RegistrationFee, h.bank.Balance(dest))
	assert.Equal(t, h.bank.Rent().MinimumBalance(state.TreasuryLen), h.bank.Balance(h.b.Treasury))
}

func TestDelegateTimeLock(t *testing.T) {
	h := newHarness(t)
	mintX, mintY := h.newMint(0), h.newMint(0)
	owner := h.newUser(10_000_000_000)
	addrs := h.createPool(owner, mintX, mintY, 1, 1, 0)
	delegate := h.newUser(1_000_000_000)
	pool := addrs.PoolState.Key

	_, err := h.submit(delegate, h.b.AddDelegate(delegate.PublicKey(), pool, delegate.PublicKey()))
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
	_, err = h.submit(owner, h.b.AddDelegate(owner.PublicKey(), pool, delegate.PublicKey()))
	require.NoError(t, err)

	_, err = h.submit(delegate, h.b.RequestDelegateAction(delegate.PublicKey(), pool, state.FeeChangeParams{NewFeeBasisPoints: 51}))
	assert.True(t, errors.Is(err, errors.ErrInvalidActionParameters))
	assert.Empty(t, h.pool(addrs).Delegates.Pending(), "a rejected request queues nothing")
	assert.Zero(t, h.pool(addrs).SwapFeeBasisPoints)

	_, err = h.submit(delegate, h.b.RequestDelegateAction(delegate.PublicKey(), pool, state.FeeChangeParams{NewFeeBasisPoints: 25}))
	require.NoError(t, err)
	pending := h.pool(addrs).Delegates.Pending()
	require.Len(t, pending, 1)
	id := pending[0].ActionID

	_, err = h.submit(delegate, h.b.ExecuteDelegateAction(delegate.PublicKey(), pool, id, nil))
	assert.True(t, errors.Is(err, errors.ErrActionNotReady))

	h.bank.Warp(time.Duration(state.DefaultDelegateWait) * time.Second)
	_, err = h.submit(delegate, h.b.ExecuteDelegateAction(delegate.PublicKey(), pool, id, nil))
	require.NoError(t, err)
	p := h.pool(addrs)
	assert.Equal(t, uint64(25), p.SwapFeeBasisPoints)
	assert.Empty(t, p.Delegates.Pending())

	_, err = h.submit(delegate, h.b.ExecuteDelegateAction(delegate.PublicKey(), pool, id, nil))
	assert.True(t, errors.Is(err, errors.ErrActionNotFound))
}

func TestDelegateRevokeAndPause(t *testing.T) {
	h := newHarness(t)
	mintX, mintY := h.newMint(0), h.newMint(0)
	owner := h.newUser(10_000_000_000)
	addrs := h.createPool(owner, mintX, mintY, 1, 1, 0)
	delegate := h.newUser(1_000_000_000)
	pool := addrs.PoolState.Key

	_, err := h.submit(owner, h.b.AddDelegate(owner.PublicKey(), pool, delegate.PublicKey()))
	require.NoError(t, err)
	_, err = h.submit(owner, h.b.SetDelegateWaitTime(owner.PublicKey(), pool, delegate.PublicKey(), state.ActionPausePoolSwaps, 100))
	assert.True(t, errors.Is(err, errors.ErrInvalidWaitTime))
	_, err = h.submit(owner, h.b.SetDelegateWaitTime(owner.PublicKey(), pool, delegate.PublicKey(), state.ActionPausePoolSwaps, 600))
	require.NoError(t, err)

	_, err = h.submit(delegate, h.b.RequestDelegateAction(delegate.PublicKey(), pool, state.PausePoolSwapsParams{}))
	require.NoError(t, err)
	_, err = h.submit(delegate, h.b.RequestDelegateAction(delegate.PublicKey(), pool, state.PausePoolSwapsParams{}))
	require.NoError(t, err)
	pending := h.pool(addrs).Delegates.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, pending[0].RequestTimestamp+600, pending[0].ExecutionTimestamp)

	stranger := h.newUser(1_000_000_000)
	_, err = h.submit(stranger, h.b.RevokeDelegateAction(stranger.PublicKey(), pool, pending[0].ActionID))
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
	_, err = h.submit(owner, h.b.RevokeDelegateAction(owner.PublicKey(), pool, pending[0].ActionID))
	require.NoError(t, err)

	h.bank.Warp(600 * time.Second)
	_, err = h.submit(owner, h.b.ExecuteDelegateAction(owner.PublicKey(), pool, pending[1].ActionID, nil))
	require.NoError(t, err)
	assert.True(t, h.pool(addrs).SwapsPaused())

	_, err = h.submit(owner, h.b.RemoveDelegate(owner.PublicKey(), pool, delegate.PublicKey()))
	require.NoError(t, err)
	assert.Len(t, h.pool(addrs).Delegates.Delegates(), 1)
}

func TestDelegateWithdrawal(t *testing.T) {
	h, addrs, lp, owner := threeToOneWithOwner(t)
	xIsA := lp.mintX.Equals(addrs.TokenAMint)
	pool := addrs.PoolState.Key

	delegate := h.newUser(1_000_000_000)
	_, err := h.submit(owner, h.b.AddDelegate(owner.PublicKey(), pool, delegate.PublicKey()))
	require.NoError(t, err)
	require.NoError(t, h.runDelegateAction(delegate, pool, state.FeeChangeParams{NewFeeBasisPoints: 50}, nil))

	// 50 bps of a 100_000 Y output stays in the Y vault.
	tr := h.newTrader(addrs, lp.mintX, lp.mintY, 300_000, 0)
	_, err = h.swapXForY(tr, addrs, 300_000, 99_500)
	require.NoError(t, err)
	p := h.pool(addrs)
	require.Equal(t, uint64(500), p.CollectedFeesTokenA+p.CollectedFeesTokenB)

	dest := h.newTokenAccount(lp.mintY, delegate.PublicKey(), 0)
	withdrawal := &instruction.WithdrawalAccounts{Vault: addrs.Vault(!xIsA).Key, Destination: dest}
	err = h.runDelegateAction(delegate, pool, state.WithdrawalParams{TokenMint: lp.mintY, Amount: 600}, withdrawal)
	assert.True(t, errors.Is(err, errors.ErrProgramInsufficientFunds))

	require.NoError(t, h.runDelegateAction(delegate, pool, state.WithdrawalParams{TokenMint: lp.mintY, Amount: 500}, withdrawal))
	assert.Equal(t, uint64(500), h.balance(dest))
	p = h.pool(addrs)
	assert.Zero(t, p.CollectedFeesTokenA+p.CollectedFeesTokenB)
	assert.Len(t, p.Delegates.Pending(), 1, "the failed withdrawal stays queued")
}

func TestReadOnlyQueries(t *testing.T) {
	h, addrs, _ := threeToOne(t)

	meta, err := h.submit(h.authority, h.b.GetVersion())
	require.NoError(t, err)
	var version instruction.VersionInfo
	require.NoError(t, instruction.UnmarshalReturn(meta.ReturnData.Data, &version))
	assert.Equal(t, Version, version.Version)

	meta, err = h.submit(h.authority, h.b.GetPoolInfo(addrs.PoolState.Key))
	require.NoError(t, err)
	var info instruction.PoolInfo
	require.NoError(t, instruction.UnmarshalReturn(meta.ReturnData.Data, &info))
	assert.Equal(t, h.pool(addrs).TotalTokenALiquidity, info.TotalTokenALiquidity)
	assert.Equal(t, uint8(1), info.DelegateCount)

	assert.Equal(t, uint64(1), h.metrics.Counter(metrics.InstructionCounter("get_version")))
}

func TestInitializePoolReadsDisplayRatios(t *testing.T) {
	h := newHarness(t)
	owner := h.newUser(100_000_000_000)
	cases := []struct {
		decX, decY uint8
		ratioX     uint64
		ratioY     uint64
	}{
		{6, 9, 1, 1},
		{6, 9, 3, 1},
		{6, 6, 3, 1},
	}
	var last *pda.PoolAddresses
	var mintX, mintY solana.PublicKey
	for _, tc := range cases {
		mintX, mintY = h.newMint(tc.decX), h.newMint(tc.decY)
		last = h.createPool(owner, mintX, mintY, tc.ratioX, tc.ratioY, 0)
		assert.True(t, h.pool(last).Flags.Has(state.FlagSimpleRatio), "%d:%d on %d/%d decimals", tc.ratioX, tc.ratioY, tc.decX, tc.decY)
	}

	lp := h.newTrader(last, mintX, mintY, 0, 1_000_000)
	require.NoError(t, h.deposit(lp, last, false, 1_000_000))
	tr := h.newTrader(last, mintX, mintY, 3_000_000, 0)
	_, err := h.swapXForY(tr, last, 3_000_000, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), h.balance(tr.tokenY))

	ix, _, err := h.b.InitializePool(owner.PublicKey(), h.newMint(6), h.newMint(9), 3, 2, 0)
	require.NoError(t, err)
	_, err = h.submit(owner, ix)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedRatioType))
}

func TestAnyoneMayExecuteMaturedAction(t *testing.T) {
	h := newHarness(t)
	mintX, mintY := h.newMint(0), h.newMint(0)
	owner := h.newUser(10_000_000_000)
	addrs := h.createPool(owner, mintX, mintY, 1, 1, 0)
	pool := addrs.PoolState.Key
	delegate := h.newUser(1_000_000_000)

	_, err := h.submit(owner, h.b.AddDelegate(owner.PublicKey(), pool, delegate.PublicKey()))
	require.NoError(t, err)
	_, err = h.submit(delegate, h.b.RequestDelegateAction(delegate.PublicKey(), pool, state.FeeChangeParams{NewFeeBasisPoints: 30}))
	require.NoError(t, err)
	id := h.pool(addrs).Delegates.Pending()[0].ActionID

	stranger := h.newUser(1_000_000_000)
	_, err = h.submit(stranger, h.b.ExecuteDelegateAction(stranger.PublicKey(), pool, id, nil))
	assert.True(t, errors.Is(err, errors.ErrActionNotReady))

	h.bank.Warp(time.Duration(state.DefaultDelegateWait) * time.Second)
	meta, err := h.submit(stranger, h.b.ExecuteDelegateAction(stranger.PublicKey(), pool, id, nil))
	require.NoError(t, err)
	p := h.pool(addrs)
	assert.Equal(t, uint64(30), p.SwapFeeBasisPoints)
	assert.Empty(t, p.Delegates.Pending())

	registry := decoder.NewRegistry()
	RegisterEvents(registry, h.prog.ID())
	events, err := registry.DecodeAll(txlog.NewParser().ProgramData(meta.LogMessages, h.prog.ID()), &DefaultProgramID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	executed, ok := events[0].Data.(DelegateActionExecuted)
	require.True(t, ok)
	assert.Equal(t, stranger.PublicKey(), executed.Executor)
}

func TestRoundTripNeverProfits(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := state.NewPoolState(solana.PublicKey{})
	for i := 0; i < 20_000; i++ {
		p.RatioANumerator = 1 + rng.Uint64()%1_000_000
		p.RatioBDenominator = 1 + rng.Uint64()%1_000_000
		p.SwapFeeBasisPoints = rng.Uint64() % 51
		amount := 1 + rng.Uint64()%1_000_000_000
		inputIsA := rng.Intn(2) == 0

		there, err := Quote(p, inputIsA, amount)
		if err != nil {
			continue
		}
		back, err := Quote(p, !inputIsA, there.AmountOut)
		if err != nil {
			continue
		}
		require.LessOrEqualf(t, back.AmountOut, amount, "ratio %d:%d fee %d bps, %d in",
			p.RatioANumerator, p.RatioBDenominator, p.SwapFeeBasisPoints, amount)
	}

	h, addrs, lp := threeToOne(t)
	tr := h.newTrader(addrs, lp.mintX, lp.mintY, 300_002, 0)
	_, err := h.swapXForY(tr, addrs, 300_002, 0)
	require.NoError(t, err)
	_, err = h.swapYForX(tr, addrs, h.balance(tr.tokenY), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(300_000), h.balance(tr.tokenX))
	assert.Zero(t, h.balance(tr.tokenY))
}

func TestLiquidityRoundTripConserves(t *testing.T) {
	h, addrs, lp := threeToOne(t)
	h.requireBacked(addrs)

	tr := h.newTrader(addrs, lp.mintX, lp.mintY, 123_456, 654_321)
	require.NoError(t, h.deposit(tr, addrs, true, 123_456))
	require.NoError(t, h.deposit(tr, addrs, false, 654_321))
	assert.Equal(t, uint64(123_456), h.balance(tr.lpX))
	assert.Equal(t, uint64(654_321), h.balance(tr.lpY))
	h.requireBacked(addrs)

	_, err := h.withdraw(tr, addrs, true, 123_456)
	require.NoError(t, err)
	_, err = h.withdraw(tr, addrs, false, 654_321)
	require.NoError(t, err)
	assert.Equal(t, uint64(123_456), h.balance(tr.tokenX))
	assert.Equal(t, uint64(654_321), h.balance(tr.tokenY))
	assert.Zero(t, h.balance(tr.lpX))
	assert.Zero(t, h.balance(tr.lpY))
	h.requireBacked(addrs)
}

func TestConsolidationSweepsManyPools(t *testing.T) {
	h := newHarness(t)
	owner := h.newUser(100_000_000_000)
	all := make([]*pda.PoolAddresses, 0, state.MaxConsolidationPools)
	keys := make([]solana.PublicKey, 0, state.MaxConsolidationPools)
	var pending uint64
	for i := 0; i < state.MaxConsolidationPools; i++ {
		mintX, mintY := h.newMint(0), h.newMint(0)
		addrs := h.createPool(owner, mintX, mintY, 1, 1, 0)
		tr := h.newTrader(addrs, mintX, mintY, 1_000, 0)
		require.NoError(t, h.deposit(tr, addrs, true, 1_000))
		pending += h.pool(addrs).PendingSolFees()
		all = append(all, addrs)
		keys = append(keys, addrs.PoolState.Key)
	}
	require.NoError(t, h.pauseSystem(state.PauseReasonConsolidation))

	before := h.bank.Balance(h.b.Treasury)
	_, err := h.submit(h.authority, h.b.ConsolidatePoolFees(h.authority.PublicKey(), keys))
	require.NoError(t, err)
	assert.Equal(t, before+pending, h.bank.Balance(h.b.Treasury))
	for _, addrs := range all {
		assert.Zero(t, h.pool(addrs).PendingSolFees())
	}

	treasury := h.treasury()
	assert.Equal(t, uint64(state.MaxConsolidationPools), treasury.LiquidityOperationCount)
	assert.Equal(t, pending, treasury.LiquidityOperationFees)
	assert.Zero(t, treasury.FailedOperationCount)
	assert.Equal(t, "1", treasury.SuccessRate().String())
}

func TestConsolidationRecordsShortSweep(t *testing.T) {
	h, addrs, _ := threeToOne(t)
	_, err := h.submit(h.authority, h.b.PausePool(h.authority.PublicKey(), addrs.PoolState.Key, state.PauseFlagAll))
	require.NoError(t, err)

	pending := h.pool(addrs).PendingSolFees()
	acct, ok := h.bank.GetAccount(addrs.PoolState.Key)
	require.True(t, ok)
	acct.Lamports--
	h.bank.SetAccount(addrs.PoolState.Key, acct)

	_, err = h.submit(h.authority, h.b.ConsolidatePoolFees(h.authority.PublicKey(), []solana.PublicKey{addrs.PoolState.Key}))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), h.pool(addrs).PendingSolFees())
	treasury := h.treasury()
	assert.Equal(t, uint64(1), treasury.FailedOperationCount)
	assert.Equal(t, pending-1, treasury.LiquidityOperationFees)
	assert.True(t, treasury.SuccessRate().LessThan(decimal.NewFromInt(1)))
}

type failingMetrics struct {
	*metrics.LogMetrics
}

func (failingMetrics) IncrementCounter(context.Context, string, uint64) error {
	return fmt.Errorf("backend down")
}

func TestMetricsFailuresAreLogged(t *testing.T) {
	bank := ledger.NewBank(ledger.DefaultConfig())
	prog, err := New(DefaultProgramID, WithMetrics(metrics.NewCollection(failingMetrics{metrics.NewLogMetrics(nil)})))
	require.NoError(t, err)
	var buf bytes.Buffer
	prog.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	authority, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	bank.Airdrop(authority.PublicKey(), 1_000_000_000)
	require.NoError(t, prog.Deploy(bank, authority.PublicKey()))
	b, err := instruction.NewBuilder(prog.ID())
	require.NoError(t, err)

	tx := ledger.NewTransaction([]types.Instruction{b.GetVersion()}, bank.LatestBlockhash(), authority.PublicKey())
	require.NoError(t, tx.SignWith(authority))
	_, err = bank.Process(context.Background(), tx)
	require.NoError(t, err, "metrics failures do not fail instructions")
	assert.Contains(t, buf.String(), "metrics update failed")
	assert.Contains(t, buf.String(), metrics.InstructionCounter("get_version"))
}
