package pda

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
)

var testProgramID = solana.MustPublicKeyFromBase58("6Q47JSFqVDgid4DiGjsUAyQFiSfmRPuYiS3LZNhMkS1F")

func TestNormalizeTokenOrder(t *testing.T) {
	low := solana.PublicKey{1}
	high := solana.PublicKey{2}

	a, b, swapped := NormalizeTokenOrder(high, low)
	assert.Equal(t, low, a)
	assert.Equal(t, high, b)
	assert.True(t, swapped)

	a, b, swapped = NormalizeTokenOrder(low, high)
	assert.Equal(t, low, a)
	assert.Equal(t, high, b)
	assert.False(t, swapped)
}

func TestDerivePoolIsOrderIndependent(t *testing.T) {
	low := solana.PublicKey{1}
	high := solana.PublicKey{2}

	forward, err := DerivePool(testProgramID, low, high, 3, 1)
	require.NoError(t, err)
	reverse, err := DerivePool(testProgramID, high, low, 1, 3)
	require.NoError(t, err)

	assert.Equal(t, forward.PoolState, reverse.PoolState)
	assert.Equal(t, uint64(3), reverse.RatioA)
	assert.Equal(t, uint64(1), reverse.RatioB)
	assert.True(t, reverse.Swapped)
	assert.False(t, forward.Swapped)
}

func TestDerivePoolRatioChangesAddress(t *testing.T) {
	low := solana.PublicKey{1}
	high := solana.PublicKey{2}

	p1, err := DerivePool(testProgramID, low, high, 3, 1)
	require.NoError(t, err)
	p2, err := DerivePool(testProgramID, low, high, 1, 3)
	require.NoError(t, err)

	assert.NotEqual(t, p1.PoolState.Key, p2.PoolState.Key)
	assert.NotEqual(t, p1.TokenAVault.Key, p1.TokenBVault.Key)
	assert.NotEqual(t, p1.LpTokenAMint.Key, p1.LpTokenBMint.Key)
}

func TestDerivePoolRejectsIdenticalMints(t *testing.T) {
	mint := solana.PublicKey{7}
	_, err := DerivePool(testProgramID, mint, mint, 1, 1)
	assert.ErrorIs(t, err, errors.ErrInvalidTokenPair)
}

func TestSignerSeedsRecreateAddress(t *testing.T) {
	p, err := DerivePool(testProgramID, solana.PublicKey{1}, solana.PublicKey{2}, 10, 1)
	require.NoError(t, err)

	key, err := solana.CreateProgramAddress(p.PoolSignerSeeds(), testProgramID)
	require.NoError(t, err)
	assert.Equal(t, p.PoolState.Key, key)
}

func TestSingletons(t *testing.T) {
	treasury, err := FindMainTreasury(testProgramID)
	require.NoError(t, err)
	system, err := FindSystemState(testProgramID)
	require.NoError(t, err)
	again, err := FindMainTreasury(testProgramID)
	require.NoError(t, err)

	assert.Equal(t, treasury, again)
	assert.NotEqual(t, treasury.Key, system.Key)
}

func TestVerify(t *testing.T) {
	k := solana.PublicKey{9}
	assert.NoError(t, Verify("pool", k, k))

	err := Verify("pool", k, solana.PublicKey{8})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestPoolFromStateMatchesDerivation(t *testing.T) {
	derived, err := DerivePool(testProgramID, solana.PublicKey{4}, solana.PublicKey{3}, 1, 5)
	require.NoError(t, err)

	p := state.NewPoolState(solana.PublicKey{9})
	p.TokenAMint = derived.TokenAMint
	p.TokenBMint = derived.TokenBMint
	p.RatioANumerator = derived.RatioA
	p.RatioBDenominator = derived.RatioB
	p.Bumps = derived.Bumps()

	rebuilt, err := PoolFromState(testProgramID, p)
	require.NoError(t, err)
	assert.Equal(t, derived.PoolState, rebuilt.PoolState)
	assert.Equal(t, derived.Vault(false), rebuilt.TokenBVault)
	assert.Equal(t, derived.LpMint(true), rebuilt.LpTokenAMint)
}
