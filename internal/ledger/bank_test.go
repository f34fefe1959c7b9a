package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

var testProgramID = solana.MustPublicKeyFromBase58("6Q47JSFqVDgid4DiGjsUAyQFiSfmRPuYiS3LZNhMkS1F")

func newFundedKey(t *testing.T, bank *Bank, lamports uint64) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	bank.Airdrop(key.PublicKey(), lamports)
	return key
}

func submit(t *testing.T, bank *Bank, payer solana.PrivateKey, ixs []types.Instruction, signers ...solana.PrivateKey) (*types.TransactionStatusMeta, error) {
	t.Helper()
	tx := NewTransaction(ixs, bank.LatestBlockhash(), payer.PublicKey())
	require.NoError(t, tx.SignWith(append([]solana.PrivateKey{payer}, signers...)...))
	return bank.Process(context.Background(), tx)
}

func TestTransferChargesFee(t *testing.T) {
	bank := NewBank(DefaultConfig())
	alice := newFundedKey(t, bank, 1_000_000_000)
	bob := solana.NewWallet().PublicKey()

	meta, err := submit(t, bank, alice, []types.Instruction{Transfer(alice.PublicKey(), bob, 250_000_000)})
	require.NoError(t, err)
	assert.True(t, meta.IsSuccess())
	assert.Equal(t, uint64(5_000), meta.Fee)
	assert.Equal(t, uint64(750_000_000-5_000), bank.Balance(alice.PublicKey()))
	assert.Equal(t, uint64(250_000_000), bank.Balance(bob))
	assert.Contains(t, meta.LogMessages, "Program 11111111111111111111111111111111 invoke [1]")
	assert.Contains(t, meta.LogMessages, "Program 11111111111111111111111111111111 success")
}

func TestFailedTransactionKeepsOnlyFee(t *testing.T) {
	bank := NewBank(DefaultConfig())
	alice := newFundedKey(t, bank, 1_000_000)
	bob := solana.NewWallet().PublicKey()

	meta, err := submit(t, bank, alice, []types.Instruction{
		Transfer(alice.PublicKey(), bob, 100),
		Transfer(alice.PublicKey(), bob, 10_000_000),
	})
	require.Error(t, err)
	require.NotNil(t, meta)
	assert.True(t, errors.Is(err, errors.ErrInsufficientFunds))

	var ixErr *InstructionError
	require.True(t, errors.As(err, &ixErr))
	assert.Equal(t, 1, ixErr.Index)

	assert.Equal(t, uint64(1_000_000-5_000), bank.Balance(alice.PublicKey()))
	assert.Equal(t, uint64(0), bank.Balance(bob))
	assert.Equal(t, uint64(1_000_000-5_000), meta.PostBalances[0])
}

func TestRejectsReplayAndStaleBlockhash(t *testing.T) {
	bank := NewBank(DefaultConfig())
	alice := newFundedKey(t, bank, 1_000_000_000)
	bob := solana.NewWallet().PublicKey()

	tx := NewTransaction([]types.Instruction{Transfer(alice.PublicKey(), bob, 1)}, bank.LatestBlockhash(), alice.PublicKey())
	require.NoError(t, tx.SignWith(alice))
	_, err := bank.Process(context.Background(), tx)
	require.NoError(t, err)

	_, err = bank.Process(context.Background(), tx)
	assert.True(t, errors.Is(err, errors.ErrAlreadyProcessed))

	stale := NewTransaction([]types.Instruction{Transfer(alice.PublicKey(), bob, 2)}, solana.Hash{1}, alice.PublicKey())
	require.NoError(t, stale.SignWith(alice))
	_, err = bank.Process(context.Background(), stale)
	assert.True(t, errors.Is(err, errors.ErrBlockhashNotFound))
}

func TestRejectsReplayWhileInFlight(t *testing.T) {
	bank := NewBank(DefaultConfig())
	entered, release := make(chan struct{}), make(chan struct{})
	blocking := ProgramFunc(func(*InvokeContext, []*AccountInfo, []byte) error {
		close(entered)
		<-release
		return nil
	})
	require.NoError(t, bank.Deploy(testProgramID, blocking, nil))
	payer := newFundedKey(t, bank, 1_000_000_000)

	tx := NewTransaction([]types.Instruction{{ProgramID: testProgramID}}, bank.LatestBlockhash(), payer.PublicKey())
	require.NoError(t, tx.SignWith(payer))

	first := make(chan error, 1)
	go func() {
		_, err := bank.Process(context.Background(), tx)
		first <- err
	}()
	<-entered

	_, err := bank.Process(context.Background(), tx)
	assert.True(t, errors.Is(err, errors.ErrAlreadyProcessed), "got %v", err)

	close(release)
	require.NoError(t, <-first)
	_, err = bank.Process(context.Background(), tx)
	assert.True(t, errors.Is(err, errors.ErrAlreadyProcessed))
	assert.Equal(t, uint64(1_000_000_000-5_000), bank.Balance(payer.PublicKey()))
}

func TestRejectsBadSignature(t *testing.T) {
	bank := NewBank(DefaultConfig())
	alice := newFundedKey(t, bank, 1_000_000_000)
	mallory := newFundedKey(t, bank, 1_000_000_000)

	tx := NewTransaction([]types.Instruction{Transfer(alice.PublicKey(), mallory.PublicKey(), 1)}, bank.LatestBlockhash(), alice.PublicKey())
	_, err := tx.Sign(func(solana.PublicKey) *solana.PrivateKey { return &mallory })
	require.NoError(t, err)

	meta, err := bank.Process(context.Background(), tx)
	assert.Nil(t, meta)
	assert.True(t, errors.Is(err, errors.ErrSignatureFailure))
}

func TestCreateAccountRequiresRentExemption(t *testing.T) {
	bank := NewBank(DefaultConfig())
	payer := newFundedKey(t, bank, 1_000_000_000)
	newAcct, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	_, err = submit(t, bank, payer, []types.Instruction{
		CreateAccount(payer.PublicKey(), newAcct.PublicKey(), 1_000, 100, testProgramID),
	}, newAcct)
	assert.True(t, errors.Is(err, errors.ErrInsufficientFundsForRent))

	rent := bank.Rent().MinimumBalance(100)
	_, err = submit(t, bank, payer, []types.Instruction{
		CreateAccount(payer.PublicKey(), newAcct.PublicKey(), rent, 100, testProgramID),
	}, newAcct)
	require.NoError(t, err)

	acct, ok := bank.GetAccount(newAcct.PublicKey())
	require.True(t, ok)
	assert.Equal(t, testProgramID, acct.Owner)
	assert.Len(t, acct.Data, 100)
	assert.Equal(t, rent, acct.Lamports)

	_, err = submit(t, bank, payer, []types.Instruction{
		CreateAccount(payer.PublicKey(), newAcct.PublicKey(), rent, 100, testProgramID),
	}, newAcct)
	assert.True(t, errors.Is(err, errors.ErrAccountAlreadyInUse))
}

// vaultProgram creates a PDA owned by itself on tag 0 and writes a byte on tag 1.
var vaultProgram = ProgramFunc(func(ic *InvokeContext, accounts []*AccountInfo, data []byte) error {
	switch data[0] {
	case 0:
		payer, vault := accounts[0], accounts[1]
		key, bump, err := solana.FindProgramAddress([][]byte{[]byte("vault")}, ic.ProgramID())
		if err != nil {
			return err
		}
		if !key.Equals(vault.Key) {
			return errors.ErrInvalidArgument
		}
		ic.Logf("creating vault %s", vault.Key)
		ix := CreateAccount(payer.Key, vault.Key, ic.Rent().MinimumBalance(8), 8, ic.ProgramID())
		return ic.InvokeSigned(ix, [][]byte{[]byte("vault"), {bump}})
	case 1:
		return accounts[0].WriteData(func(dst []byte) error {
			dst[0] = data[1]
			return nil
		})
	case 2:
		// Tries to sign for an address it does not own.
		return ic.Invoke(Transfer(accounts[0].Key, accounts[1].Key, 1))
	}
	return errors.ErrInvalidInstructionData
})

func TestInvokeSignedCreatesProgramAddress(t *testing.T) {
	bank := NewBank(DefaultConfig())
	require.NoError(t, bank.Deploy(testProgramID, vaultProgram, nil))
	payer := newFundedKey(t, bank, 1_000_000_000)
	vault, _, err := solana.FindProgramAddress([][]byte{[]byte("vault")}, testProgramID)
	require.NoError(t, err)

	meta, err := submit(t, bank, payer, []types.Instruction{{
		ProgramID: testProgramID,
		Accounts: []types.AccountMeta{
			types.WritableSigner(payer.PublicKey()),
			types.Writable(vault),
			types.Readonly(solana.SystemProgramID),
		},
		Data: []byte{0},
	}})
	require.NoError(t, err)
	require.Len(t, meta.InnerInstructions, 1)
	assert.Equal(t, uint32(2), meta.InnerInstructions[0].Instructions[0].StackHeight)
	assert.Contains(t, meta.LogMessages, "Program 11111111111111111111111111111111 invoke [2]")

	acct, ok := bank.GetAccount(vault)
	require.True(t, ok)
	assert.Equal(t, testProgramID, acct.Owner)

	_, err = submit(t, bank, payer, []types.Instruction{{
		ProgramID: testProgramID,
		Accounts:  []types.AccountMeta{types.Writable(vault)},
		Data:      []byte{1, 42},
	}})
	require.NoError(t, err)
	acct, _ = bank.GetAccount(vault)
	assert.Equal(t, byte(42), acct.Data[0])
}

func TestInvokeRejectsPrivilegeEscalation(t *testing.T) {
	bank := NewBank(DefaultConfig())
	require.NoError(t, bank.Deploy(testProgramID, vaultProgram, nil))
	payer := newFundedKey(t, bank, 1_000_000_000)
	victim := newFundedKey(t, bank, 1_000_000_000)

	_, err := submit(t, bank, payer, []types.Instruction{{
		ProgramID: testProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(victim.PublicKey()),
			types.Writable(payer.PublicKey()),
			types.Readonly(solana.SystemProgramID),
		},
		Data: []byte{2},
	}})
	assert.True(t, errors.Is(err, errors.ErrPrivilegeEscalation))
	assert.Equal(t, uint64(1_000_000_000), bank.Balance(victim.PublicKey()))
}

func TestWriteDataRequiresOwnership(t *testing.T) {
	bank := NewBank(DefaultConfig())
	require.NoError(t, bank.Deploy(testProgramID, vaultProgram, nil))
	payer := newFundedKey(t, bank, 1_000_000_000)
	foreign := solana.NewWallet().PublicKey()
	bank.SetAccount(foreign, &types.Account{Lamports: 1_000_000_000, Data: make([]byte, 8), Owner: solana.TokenProgramID})

	_, err := submit(t, bank, payer, []types.Instruction{{
		ProgramID: testProgramID,
		Accounts:  []types.AccountMeta{types.Writable(foreign)},
		Data:      []byte{1, 7},
	}})
	assert.True(t, errors.Is(err, errors.ErrExternalAccountDataModified))
}

func TestAccountLocksConflict(t *testing.T) {
	locks := newAccountLocks()
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()

	require.NoError(t, locks.acquire([]solana.PublicKey{a}, []solana.PublicKey{b}))
	assert.True(t, errors.Is(locks.acquire([]solana.PublicKey{a}, nil), errors.ErrAccountInUse))
	assert.True(t, errors.Is(locks.acquire(nil, []solana.PublicKey{a}), errors.ErrAccountInUse))
	assert.NoError(t, locks.acquire(nil, []solana.PublicKey{b}))
	assert.True(t, errors.Is(locks.acquire([]solana.PublicKey{b}, nil), errors.ErrAccountInUse))

	locks.release([]solana.PublicKey{a}, []solana.PublicKey{b})
	locks.release(nil, []solana.PublicKey{b})
	assert.NoError(t, locks.acquire([]solana.PublicKey{a, b}, nil))
}

func TestComputeBudgetExceeded(t *testing.T) {
	cfg := DefaultConfig()
	bank := NewBank(cfg)
	greedy := ProgramFunc(func(ic *InvokeContext, _ []*AccountInfo, _ []byte) error {
		return ic.Consume(cfg.ComputeUnitLimit)
	})
	require.NoError(t, bank.Deploy(testProgramID, greedy, nil))
	payer := newFundedKey(t, bank, 1_000_000_000)

	meta, err := submit(t, bank, payer, []types.Instruction{{ProgramID: testProgramID}})
	assert.True(t, errors.Is(err, errors.ErrComputeBudgetExceeded))
	assert.Equal(t, cfg.ComputeUnitLimit, meta.ComputeUnitsConsumed)
	assert.Contains(t, meta.LogMessages, "Program "+testProgramID.String()+" failed: ComputationalBudgetExceeded")
}

func TestReturnDataAndProgramData(t *testing.T) {
	bank := NewBank(DefaultConfig())
	echo := ProgramFunc(func(ic *InvokeContext, _ []*AccountInfo, data []byte) error {
		ic.LogData([]byte("event"), data)
		return ic.SetReturnData(data)
	})
	authority := solana.NewWallet().PublicKey()
	require.NoError(t, bank.Deploy(testProgramID, echo, &authority))
	payer := newFundedKey(t, bank, 1_000_000_000)

	meta, err := submit(t, bank, payer, []types.Instruction{{ProgramID: testProgramID, Data: []byte{1, 2, 3}}})
	require.NoError(t, err)
	require.NotNil(t, meta.ReturnData)
	assert.Equal(t, []byte{1, 2, 3}, meta.ReturnData.Data)
	assert.Contains(t, meta.LogMessages, "Program data: ZXZlbnQ= AQID")

	programData, _, err := FindProgramDataAddress(testProgramID)
	require.NoError(t, err)
	acct, ok := bank.GetAccount(programData)
	require.True(t, ok)
	pd, err := ParseProgramData(acct.Data)
	require.NoError(t, err)
	require.NotNil(t, pd.UpgradeAuthority)
	assert.Equal(t, authority, *pd.UpgradeAuthority)
}

func TestSetAuthority(t *testing.T) {
	bank := NewBank(DefaultConfig())
	authority := newFundedKey(t, bank, 1_000_000_000)
	auth := authority.PublicKey()
	require.NoError(t, bank.Deploy(testProgramID, ProgramFunc(func(*InvokeContext, []*AccountInfo, []byte) error { return nil }), &auth))
	programData, _, err := FindProgramDataAddress(testProgramID)
	require.NoError(t, err)

	next := solana.NewWallet().PublicKey()
	_, err = submit(t, bank, authority, []types.Instruction{SetAuthority(programData, auth, &next)})
	require.NoError(t, err)

	acct, _ := bank.GetAccount(programData)
	pd, err := ParseProgramData(acct.Data)
	require.NoError(t, err)
	assert.Equal(t, next, *pd.UpgradeAuthority)

	_, err = submit(t, bank, authority, []types.Instruction{SetAuthority(programData, auth, nil)})
	assert.True(t, errors.Is(err, errors.ErrIncorrectAuthority))
}

func TestWarpAdvancesClock(t *testing.T) {
	bank := NewBank(DefaultConfig())
	before := bank.Clock()
	hash := bank.LatestBlockhash()

	bank.Warp(10 * time.Minute)
	after := bank.Clock()
	assert.Equal(t, before.UnixTimestamp+600, after.UnixTimestamp)
	assert.Equal(t, before.Slot+1500, after.Slot)
	assert.NotEqual(t, hash, bank.LatestBlockhash())
}

func TestRentMinimumBalance(t *testing.T) {
	r := DefaultRent()
	assert.Equal(t, uint64(890_880), r.MinimumBalance(0))
	assert.Equal(t, uint64(2_039_280), r.MinimumBalance(165))
	assert.True(t, r.IsExempt(2_039_280, 165))
	assert.False(t, r.IsExempt(2_039_279, 165))
}
