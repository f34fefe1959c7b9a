package storage_test

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/fixed-ratio-trading/internal/config"
	"github.com/lugondev/fixed-ratio-trading/internal/instruction"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/metrics"
	"github.com/lugondev/fixed-ratio-trading/internal/program"
	"github.com/lugondev/fixed-ratio-trading/internal/storage"
	"github.com/lugondev/fixed-ratio-trading/internal/storage/memory"
	"github.com/lugondev/fixed-ratio-trading/internal/token"
	"github.com/lugondev/fixed-ratio-trading/pkg/decoder"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

type fixture struct {
	t         *testing.T
	bank      *ledger.Bank
	b         *instruction.Builder
	repo      *memory.Repository
	metrics   *metrics.LogMetrics
	authority solana.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := memory.New()
	registry := decoder.NewRegistry()
	program.RegisterEvents(registry, program.DefaultProgramID)
	sink := storage.NewSink(repo,
		storage.WithEvents(registry, program.DefaultProgramID),
		storage.WithInstructionNamer(instruction.Namer(program.DefaultProgramID)),
		storage.WithWorkers(2),
	)

	m := metrics.NewLogMetrics(nil)
	bank := ledger.NewBank(ledger.DefaultConfig(),
		ledger.WithCommitProcessor(sink),
		ledger.WithMetrics(metrics.NewCollection(m)),
	)
	require.NoError(t, token.Install(bank))
	prog, err := program.New(program.DefaultProgramID)
	require.NoError(t, err)
	b, err := instruction.NewBuilder(prog.ID())
	require.NoError(t, err)

	f := &fixture{t: t, bank: bank, b: b, repo: repo, metrics: m}
	f.authority = f.newUser()
	require.NoError(t, prog.Deploy(bank, f.authority.PublicKey()))
	_, err = f.submit(f.authority, b.InitializeProgram(f.authority.PublicKey()))
	require.NoError(t, err)
	return f
}

func (f *fixture) newUser() solana.PrivateKey {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(f.t, err)
	f.bank.Airdrop(key.PublicKey(), 10_000_000_000)
	return key
}

func (f *fixture) submit(payer solana.PrivateKey, ixs ...types.Instruction) (*types.TransactionStatusMeta, error) {
	tx := ledger.NewTransaction(ixs, f.bank.LatestBlockhash(), payer.PublicKey())
	require.NoError(f.t, tx.SignWith(payer))
	return f.bank.Process(context.Background(), tx)
}

func (f *fixture) newMint() solana.PublicKey {
	key := solana.NewWallet().PublicKey()
	f.bank.SetAccount(key, token.NewMintAccount(f.bank.Rent(), f.authority.PublicKey(), 0, 0))
	return key
}

func TestSinkPersistsCommittedDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.newUser()
	ix, addrs, err := f.b.InitializePool(owner.PublicKey(), f.newMint(), f.newMint(), 1, 1, 0)
	require.NoError(t, err)
	_, err = f.submit(owner, ix)
	require.NoError(t, err)

	user := f.newUser()
	tokenAcct := solana.NewWallet().PublicKey()
	f.bank.SetAccount(tokenAcct, token.NewTokenAccount(f.bank.Rent(), addrs.TokenAMint, user.PublicKey(), 5_000))
	lpAcct := solana.NewWallet().PublicKey()
	f.bank.SetAccount(lpAcct, token.NewTokenAccount(f.bank.Rent(), addrs.LpMint(true).Key, user.PublicKey(), 0))

	meta, err := f.submit(user, f.b.Deposit(addrs, instruction.LiquidityAccounts{
		User:         user.PublicKey(),
		TokenAccount: tokenAcct,
		LpAccount:    lpAcct,
	}, addrs.TokenAMint, 5_000))
	require.NoError(t, err)

	tx, err := f.repo.Transactions().FindBySignature(ctx, meta.Signature.String())
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.True(t, tx.Success)
	assert.Equal(t, 1, tx.NumInstructions)
	assert.Equal(t, meta.ComputeUnitsConsumed, tx.ComputeUnitsConsumed)
	assert.Contains(t, tx.AccountKeys, user.PublicKey().String())

	ixs, err := f.repo.Instructions().FindBySignature(ctx, meta.Signature.String())
	require.NoError(t, err)
	require.NotEmpty(t, ixs)
	assert.Equal(t, "deposit", ixs[0].Name)
	assert.False(t, ixs[0].IsInner)

	events, err := f.repo.Events().FindBySignature(ctx, meta.Signature.String())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "LiquidityDeposited", events[0].EventName)
	assert.Equal(t, addrs.PoolState.Key.String(), events[0].Data["Pool"])

	lp, err := f.repo.TokenAccounts().FindByAddress(ctx, lpAcct.String())
	require.NoError(t, err)
	require.NotNil(t, lp)
	assert.Equal(t, uint64(5_000), lp.Amount)
	assert.Equal(t, user.PublicKey().String(), lp.Owner)

	pool, err := f.repo.Accounts().FindByPubkey(ctx, addrs.PoolState.Key.String())
	require.NoError(t, err)
	require.NotNil(t, pool)
	assert.Equal(t, program.DefaultProgramID.String(), pool.Owner)

	byName, err := f.repo.Instructions().FindByName(ctx, program.DefaultProgramID.String(), "initialize_pool", 0, 0)
	require.NoError(t, err)
	assert.Len(t, byName, 1)

	created, err := f.repo.Events().FindByEventName(ctx, "PoolCreated", 10, 0)
	require.NoError(t, err)
	assert.Len(t, created, 1)

	assert.NotZero(t, f.metrics.Counter(metrics.MetricAccountsPersisted))
}

func TestSinkPersistsFailedTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A second initialization is rejected by the program.
	meta, err := f.submit(f.authority, f.b.InitializeProgram(f.authority.PublicKey()))
	require.Error(t, err)

	tx, err := f.repo.Transactions().FindBySignature(ctx, meta.Signature.String())
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.False(t, tx.Success)
	assert.NotEmpty(t, tx.ErrorMessage)

	ixs, err := f.repo.Instructions().FindBySignature(ctx, meta.Signature.String())
	require.NoError(t, err)
	require.Len(t, ixs, 1)
	assert.Equal(t, "initialize_program", ixs[0].Name)

	// Only the fee debit is committed.
	payer, err := f.repo.Accounts().FindByPubkey(ctx, f.authority.PublicKey().String())
	require.NoError(t, err)
	require.NotNil(t, payer)
	assert.Equal(t, meta.Slot, payer.Slot)

	recent, err := f.repo.Transactions().FindRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, meta.Signature.String(), recent[0].Signature)
}

func TestConnectionManagerMemory(t *testing.T) {
	ctx := context.Background()

	cm, err := storage.NewConnectionManager(&config.DatabaseConfig{Enabled: true, Type: "memory"})
	require.NoError(t, err)
	_, ok := cm.Repository()
	assert.False(t, ok)

	repo, err := cm.Connect(ctx)
	require.NoError(t, err)
	again, err := cm.Connect(ctx)
	require.NoError(t, err)
	assert.Same(t, repo, again)
	require.NoError(t, cm.Close())
	assert.ErrorIs(t, repo.Ping(ctx), storage.ErrClosed)

	_, err = storage.NewConnectionManager(&config.DatabaseConfig{Enabled: false})
	assert.Error(t, err)

	cm, err = storage.NewConnectionManager(&config.DatabaseConfig{Enabled: true, Type: "oracle"})
	require.NoError(t, err)
	_, err = cm.Connect(ctx)
	assert.Error(t, err)
}
