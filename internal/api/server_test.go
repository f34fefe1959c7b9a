package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/fixed-ratio-trading/internal/client"
	"github.com/lugondev/fixed-ratio-trading/internal/instruction"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/pda"
	"github.com/lugondev/fixed-ratio-trading/internal/program"
	"github.com/lugondev/fixed-ratio-trading/internal/storage"
	"github.com/lugondev/fixed-ratio-trading/internal/storage/memory"
	"github.com/lugondev/fixed-ratio-trading/internal/token"
	"github.com/lugondev/fixed-ratio-trading/pkg/decoder"
)

type fixture struct {
	t      *testing.T
	bank   *ledger.Bank
	server *Server
	pool   *pda.PoolAddresses
	mintX  solana.PublicKey
	lpUser solana.PrivateKey
	lpAcct solana.PublicKey
	depSig solana.Signature
}

func newFixture(t *testing.T, withStorage bool) *fixture {
	t.Helper()
	ctx := context.Background()

	var opts []ledger.Option
	var repo storage.Repository
	registry := decoder.NewRegistry()
	program.RegisterEvents(registry, program.DefaultProgramID)
	if withStorage {
		mem := memory.New()
		repo = mem
		opts = append(opts, ledger.WithCommitProcessor(storage.NewSink(mem,
			storage.WithEvents(registry, program.DefaultProgramID),
			storage.WithInstructionNamer(instruction.Namer(program.DefaultProgramID)),
		)))
	}
	bank := ledger.NewBank(ledger.DefaultConfig(), opts...)
	require.NoError(t, token.Install(bank))
	prog, err := program.New(program.DefaultProgramID)
	require.NoError(t, err)
	c, err := client.New(bank, prog.ID(), client.WithRegistry(registry))
	require.NoError(t, err)

	newUser := func() solana.PrivateKey {
		key, err := solana.NewRandomPrivateKey()
		require.NoError(t, err)
		bank.Airdrop(key.PublicKey(), 10_000_000_000)
		return key
	}
	newAccount := func(acct func(solana.PublicKey)) solana.PublicKey {
		key := solana.NewWallet().PublicKey()
		acct(key)
		return key
	}

	authority := newUser()
	require.NoError(t, prog.Deploy(bank, authority.PublicKey()))
	_, err = c.InitializeProgram(ctx, authority)
	require.NoError(t, err)

	mintX := newAccount(func(k solana.PublicKey) {
		bank.SetAccount(k, token.NewMintAccount(bank.Rent(), authority.PublicKey(), 0, 0))
	})
	mintY := newAccount(func(k solana.PublicKey) {
		bank.SetAccount(k, token.NewMintAccount(bank.Rent(), authority.PublicKey(), 0, 0))
	})
	addrs, _, err := c.CreatePool(ctx, newUser(), mintX, mintY, 4, 1, 0)
	require.NoError(t, err)

	f := &fixture{t: t, bank: bank, pool: addrs, mintX: mintX, lpUser: newUser()}
	owner := f.lpUser.PublicKey()
	acc := instruction.LiquidityAccounts{
		TokenAccount: newAccount(func(k solana.PublicKey) {
			bank.SetAccount(k, token.NewTokenAccount(bank.Rent(), mintX, owner, 8_000))
		}),
		LpAccount: newAccount(func(k solana.PublicKey) {
			bank.SetAccount(k, token.NewTokenAccount(bank.Rent(), addrs.LpMint(mintX.Equals(addrs.TokenAMint)).Key, owner, 0))
		}),
	}
	f.lpAcct = acc.LpAccount
	res, err := c.Deposit(ctx, f.lpUser, addrs, acc, mintX, 8_000)
	require.NoError(t, err)
	f.depSig = res.Signature

	f.server = NewServer(c, repo)
	return f
}

func (f *fixture) get(path string, out any) int {
	f.t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	f.server.Handler().ServeHTTP(rec, req)
	if out != nil {
		require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestPoolRoutes(t *testing.T) {
	f := newFixture(t, false)
	xIsA := f.mintX.Equals(f.pool.TokenAMint)

	var pool poolView
	require.Equal(t, http.StatusOK, f.get("/pools/"+f.pool.PoolState.Key.String(), &pool))
	assert.Equal(t, f.pool.TokenAVault.Key, pool.TokenAVault)
	if xIsA {
		assert.Equal(t, uint64(8_000), pool.TotalTokenALiquidity)
	} else {
		assert.Equal(t, uint64(8_000), pool.TotalTokenBLiquidity)
	}
	require.Len(t, pool.Delegates, 1)
	assert.Equal(t, pool.Owner, pool.Delegates[0].Address)

	var pools []poolView
	require.Equal(t, http.StatusOK, f.get("/pools", &pools))
	assert.Len(t, pools, 1)

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, f.get("/pools/not-a-key", &errBody))
	assert.Contains(t, errBody["error"], "invalid address")
	assert.Equal(t, http.StatusNotFound, f.get("/pools/"+solana.NewWallet().PublicKey().String(), nil))
}

func TestQuoteRoute(t *testing.T) {
	f := newFixture(t, false)
	path := "/pools/" + f.pool.PoolState.Key.String() + "/quote?input_mint=" + f.mintX.String() + "&amount=400"

	var quote map[string]uint64
	require.Equal(t, http.StatusOK, f.get(path, &quote))
	assert.Equal(t, uint64(100), quote["amount_out"])

	assert.Equal(t, http.StatusBadRequest, f.get("/pools/"+f.pool.PoolState.Key.String()+"/quote?input_mint=x&amount=1", nil))
}

func TestTreasuryAndSystem(t *testing.T) {
	f := newFixture(t, false)

	var treasury map[string]any
	require.Equal(t, http.StatusOK, f.get("/treasury", &treasury))
	assert.EqualValues(t, 1, treasury["pool_creation_count"])
	assert.Equal(t, "1", treasury["success_rate"])

	var sys systemView
	require.Equal(t, http.StatusOK, f.get("/system", &sys))
	assert.False(t, sys.IsPaused)
}

func TestHistoryRoutes(t *testing.T) {
	f := newFixture(t, true)

	var health map[string]any
	require.Equal(t, http.StatusOK, f.get("/health", &health))
	assert.Equal(t, "ok", health["status"])

	var tx struct {
		Transaction  storage.TransactionModel   `json:"transaction"`
		Instructions []storage.InstructionModel `json:"instructions"`
		Events       []storage.EventModel       `json:"events"`
	}
	require.Equal(t, http.StatusOK, f.get("/transactions/"+f.depSig.String(), &tx))
	assert.True(t, tx.Transaction.Success)
	require.NotEmpty(t, tx.Instructions)
	assert.Equal(t, "deposit", tx.Instructions[0].Name)
	require.Len(t, tx.Events, 1)
	assert.Equal(t, "LiquidityDeposited", tx.Events[0].EventName)

	var acct struct {
		Account      storage.AccountModel       `json:"account"`
		TokenAccount *storage.TokenAccountModel `json:"token_account"`
	}
	require.Equal(t, http.StatusOK, f.get("/accounts/"+f.lpAcct.String(), &acct))
	require.NotNil(t, acct.TokenAccount)
	assert.Equal(t, uint64(8_000), acct.TokenAccount.Amount)

	var txs []storage.TransactionModel
	require.Equal(t, http.StatusOK, f.get("/accounts/"+f.lpUser.PublicKey().String()+"/transactions", &txs))
	require.Len(t, txs, 1)
	assert.Equal(t, f.depSig.String(), txs[0].Signature)

	require.Equal(t, http.StatusOK, f.get("/transactions?limit=2", &txs))
	assert.Len(t, txs, 2)
	assert.Equal(t, http.StatusBadRequest, f.get("/transactions?limit=0", nil))

	var events []storage.EventModel
	require.Equal(t, http.StatusOK, f.get("/events?name=PoolCreated", &events))
	assert.Len(t, events, 1)

	assert.Equal(t, http.StatusNotFound, f.get("/transactions/"+solana.Signature{1}.String(), nil))

	require.Equal(t, http.StatusOK, f.get("/failures?code=1027", &txs))
	assert.Empty(t, txs)
	assert.Equal(t, http.StatusBadRequest, f.get("/failures?code=paused", nil))
}

func TestHistoryRoutesWithoutStorage(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, f.get("/transactions/"+f.depSig.String(), nil))

	var health map[string]any
	require.Equal(t, http.StatusOK, f.get("/health", &health))
	assert.Equal(t, program.DefaultProgramID.String(), health["program_id"])
}
