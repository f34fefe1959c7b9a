package instruction

import (
	"bytes"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
	"github.com/lugondev/fixed-ratio-trading/internal/token"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

var testProgramID = solana.MustPublicKeyFromBase58("6Q47JSFqVDgid4DiGjsUAyQFiSfmRPuYiS3LZNhMkS1F")

func TestEncodeLayout(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	data, err := Encode(&Swap{InputTokenMint: mint, AmountIn: 300_000, ExpectedAmountOut: 100_000})
	require.NoError(t, err)
	require.Len(t, data, 1+32+8+8)
	assert.Equal(t, byte(TagSwap), data[0])
	assert.Equal(t, mint[:], data[1:33])
	assert.Equal(t, []byte{0xe0, 0x93, 0x04, 0, 0, 0, 0, 0}, data[33:41])

	data, err = Encode(&InitializePool{RatioANumerator: 3, RatioBDenominator: 1, Flags: state.FlagExactExchangeRequired})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 3, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 64}, data)

	data, err = Encode(&RequestDelegateAction{Params: state.FeeChangeParams{NewFeeBasisPoints: 25}})
	require.NoError(t, err)
	assert.Len(t, data, 1+state.ActionParamsLen)
}

func TestDecode(t *testing.T) {
	delegate := solana.NewWallet().PublicKey()
	tests := []struct {
		name string
		ix   Instruction
	}{
		{"initialize program", &InitializeProgram{}},
		{"deposit", &Deposit{DepositTokenMint: delegate, Amount: 2_000_000}},
		{"withdraw", &Withdraw{WithdrawTokenMint: delegate, LpAmountToBurn: 7}},
		{"pause system", &PauseSystem{ReasonCode: 13}},
		{"update fees", &UpdatePoolFees{UpdateFlags: 3, NewLiquidityFee: 5_000, NewSwapFee: 2_000}},
		{"owner only", &SetSwapOwnerOnly{Enable: true, DesignatedOwner: delegate}},
		{"wait time", &SetDelegateWaitTime{Delegate: delegate, ActionType: state.ActionWithdrawal, WaitTime: 3600}},
		{"withdrawal request", &RequestDelegateAction{Params: state.WithdrawalParams{TokenMint: delegate, Amount: 10}}},
		{"pause swaps request", &RequestDelegateAction{Params: state.PausePoolSwapsParams{}}},
		{"limits", &SetPoolLimits{Limits: state.VolumeLimits{MaxSwapAmount: 9, MinDepositAmount: 2}}},
		{"version", &GetVersion{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MustEncode(tt.ix)
			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.ix, got)
			assert.Equal(t, tt.ix.Tag(), got.Tag())
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode(nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidInstructionData))

	_, err = Decode([]byte{99})
	assert.True(t, errors.Is(err, errors.ErrInvalidInstructionData))

	_, err = Decode([]byte{byte(TagDeposit), 1, 2, 3})
	assert.True(t, errors.Is(err, errors.ErrInvalidInstructionData))

	data := append(MustEncode(&ExecuteDelegateAction{ActionID: 4}), 0)
	_, err = Decode(data)
	assert.True(t, errors.Is(err, errors.ErrInvalidInstructionData))

	bad := MustEncode(&RequestDelegateAction{Params: state.FeeChangeParams{}})
	bad[1] = 9
	_, err = Decode(bad)
	assert.True(t, errors.Is(err, errors.ErrInvalidInstructionData))
}

func TestTagString(t *testing.T) {
	assert.Equal(t, "swap", TagSwap.String())
	assert.Equal(t, "set_pool_limits", TagSetPoolLimits.String())
	assert.Equal(t, "unknown(42)", Tag(42).String())
}

func TestInitializePoolAccounts(t *testing.T) {
	b, err := NewBuilder(testProgramID)
	require.NoError(t, err)

	user := solana.NewWallet().PublicKey()
	m1 := solana.NewWallet().PublicKey()
	m2 := solana.NewWallet().PublicKey()
	if bytes.Compare(m1[:], m2[:]) < 0 {
		m1, m2 = m2, m1
	}

	ix, pool, err := b.InitializePool(user, m1, m2, 3, 1, 0)
	require.NoError(t, err)
	require.Len(t, ix.Accounts, 12)
	assert.True(t, pool.Swapped)
	assert.Equal(t, m2, pool.TokenAMint)
	assert.Equal(t, uint64(1), pool.RatioA)
	assert.Equal(t, uint64(3), pool.RatioB)

	assert.Equal(t, types.WritableSigner(user), ix.Accounts[0])
	assert.Equal(t, pool.PoolState.Key, ix.Accounts[3].Pubkey)
	assert.Equal(t, token.ProgramID, ix.Accounts[4].Pubkey)
	assert.Equal(t, b.Treasury, ix.Accounts[5].Pubkey)
	// mints stay in caller order
	assert.Equal(t, m1, ix.Accounts[6].Pubkey)
	assert.Equal(t, m2, ix.Accounts[7].Pubkey)
	assert.Equal(t, pool.LpTokenBMint.Key, ix.Accounts[11].Pubkey)

	decoded, err := Decode(ix.Data)
	require.NoError(t, err)
	assert.Equal(t, &InitializePool{RatioANumerator: 3, RatioBDenominator: 1}, decoded)

	_, _, err = b.InitializePool(user, m1, m1, 1, 1, 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidTokenPair))
}

func TestConsolidationAccounts(t *testing.T) {
	b, err := NewBuilder(testProgramID)
	require.NoError(t, err)
	pools := make([]solana.PublicKey, 3)
	for i := range pools {
		pools[i] = solana.NewWallet().PublicKey()
	}
	ix := b.ConsolidatePoolFees(solana.NewWallet().PublicKey(), pools)
	require.Len(t, ix.Accounts, 4+3)
	assert.True(t, ix.Accounts[6].IsWritable)
	assert.Equal(t, []byte{byte(TagConsolidatePoolFees), 3}, ix.Data)

	ix = b.ExecuteDelegateAction(solana.NewWallet().PublicKey(), pools[0], 1, &WithdrawalAccounts{Vault: pools[1], Destination: pools[2]})
	require.Len(t, ix.Accounts, 6)
	assert.Equal(t, token.ProgramID, ix.Accounts[3].Pubkey)
}

func TestReturnDataFitsLimit(t *testing.T) {
	status := &ConsolidationStatus{SystemPaused: true, PauseReason: state.PauseReasonConsolidation}
	for i := 0; i < state.MaxConsolidationPools; i++ {
		status.Pools = append(status.Pools, PoolConsolidation{CollectedLiquidityFees: uint64(i), Eligible: i%2 == 0})
	}
	data, err := MarshalReturn(status)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(data), ledger.MaxReturnDataLen)

	var got ConsolidationStatus
	require.NoError(t, UnmarshalReturn(data, &got))
	assert.Equal(t, status.Pools, got.Pools)
	assert.Equal(t, 10, got.EligibleCount())

	info := NewPoolInfo(state.NewPoolState(solana.NewWallet().PublicKey()))
	data, err = MarshalReturn(&info)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(data), ledger.MaxReturnDataLen)
	var gotInfo PoolInfo
	require.NoError(t, UnmarshalReturn(data, &gotInfo))
	assert.Equal(t, info, gotInfo)
	assert.Equal(t, uint8(1), gotInfo.DelegateCount)
}
