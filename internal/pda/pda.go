// Package pda derives every program-owned address used by the fixed-ratio
// trading program. Derivation is pure: the same seeds and program id always
// yield the same (address, bump) pair, and every instruction handler re-derives
// the addresses it is given and rejects the instruction on any mismatch.
package pda

import (
	"bytes"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
)

// Seed prefixes.
var Seed = struct {
	PoolState    []byte
	TokenAVault  []byte
	TokenBVault  []byte
	LpTokenAMint []byte
	LpTokenBMint []byte
	MainTreasury []byte
	SystemState  []byte
}{
	PoolState:    []byte("pool_state"),
	TokenAVault:  []byte("token_a_vault"),
	TokenBVault:  []byte("token_b_vault"),
	LpTokenAMint: []byte("lp_token_a_mint"),
	LpTokenBMint: []byte("lp_token_b_mint"),
	MainTreasury: []byte("main_treasury"),
	SystemState:  []byte("system_state"),
}

// Address is a derived address together with its bump seed.
type Address struct {
	Key  solana.PublicKey
	Bump uint8
}

// SignerSeeds returns seeds with the bump appended, ready for a signed invocation.
func (a Address) SignerSeeds(seeds [][]byte) [][]byte {
	out := make([][]byte, 0, len(seeds)+1)
	out = append(out, seeds...)
	return append(out, []byte{a.Bump})
}

func find(programID solana.PublicKey, seeds ...[]byte) (Address, error) {
	key, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return Address{}, errors.ErrInvalidSeeds.WithCause(err)
	}
	return Address{Key: key, Bump: bump}, nil
}

// Create re-derives an address from seeds and a bump already known to be
// valid, skipping the bump search.
func Create(programID solana.PublicKey, bump uint8, seeds ...[]byte) (Address, error) {
	bumped := make([][]byte, 0, len(seeds)+1)
	bumped = append(bumped, seeds...)
	bumped = append(bumped, []byte{bump})
	key, err := solana.CreateProgramAddress(bumped, programID)
	if err != nil {
		return Address{}, errors.ErrInvalidSeeds.WithCause(err)
	}
	return Address{Key: key, Bump: bump}, nil
}

// LE encodes v as 8 little-endian bytes.
func LE(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// NormalizeTokenOrder orders two mints so the lexicographically smaller one
// comes first. swapped reports whether the inputs were reversed.
func NormalizeTokenOrder(mint1, mint2 solana.PublicKey) (a, b solana.PublicKey, swapped bool) {
	if bytes.Compare(mint1[:], mint2[:]) > 0 {
		return mint2, mint1, true
	}
	return mint1, mint2, false
}

// PoolStateSeeds returns the unbumped pool-state seeds for normalized mints.
func PoolStateSeeds(tokenA, tokenB solana.PublicKey, ratioA, ratioB uint64) [][]byte {
	return [][]byte{Seed.PoolState, tokenA[:], tokenB[:], LE(ratioA), LE(ratioB)}
}

// FindPoolState derives the pool-state address for normalized mints.
func FindPoolState(programID, tokenA, tokenB solana.PublicKey, ratioA, ratioB uint64) (Address, error) {
	return find(programID, PoolStateSeeds(tokenA, tokenB, ratioA, ratioB)...)
}

// FindTokenAVault derives the token A vault of a pool.
func FindTokenAVault(programID, pool solana.PublicKey) (Address, error) {
	return find(programID, Seed.TokenAVault, pool[:])
}

// FindTokenBVault derives the token B vault of a pool.
func FindTokenBVault(programID, pool solana.PublicKey) (Address, error) {
	return find(programID, Seed.TokenBVault, pool[:])
}

// FindLpTokenAMint derives the LP mint representing token A deposits.
func FindLpTokenAMint(programID, pool solana.PublicKey) (Address, error) {
	return find(programID, Seed.LpTokenAMint, pool[:])
}

// FindLpTokenBMint derives the LP mint representing token B deposits.
func FindLpTokenBMint(programID, pool solana.PublicKey) (Address, error) {
	return find(programID, Seed.LpTokenBMint, pool[:])
}

// FindMainTreasury derives the singleton treasury address.
func FindMainTreasury(programID solana.PublicKey) (Address, error) {
	return find(programID, Seed.MainTreasury)
}

// FindSystemState derives the singleton system-state address.
func FindSystemState(programID solana.PublicKey) (Address, error) {
	return find(programID, Seed.SystemState)
}

// FindProgramData derives the loader's program-data record for programID.
func FindProgramData(programID solana.PublicKey) (Address, error) {
	return find(ledger.LoaderProgramID, programID[:])
}

// PoolAddresses bundles every address of one pool.
type PoolAddresses struct {
	TokenAMint solana.PublicKey
	TokenBMint solana.PublicKey
	RatioA     uint64
	RatioB     uint64
	// Swapped reports whether the caller's mint order was reversed.
	Swapped bool

	PoolState    Address
	TokenAVault  Address
	TokenBVault  Address
	LpTokenAMint Address
	LpTokenBMint Address
}

// DerivePool normalizes a (mint, ratio) pair and derives all pool addresses.
// ratio1 belongs to mint1 and ratio2 to mint2; they travel with their mints
// when the order is normalized.
func DerivePool(programID, mint1, mint2 solana.PublicKey, ratio1, ratio2 uint64) (*PoolAddresses, error) {
	if mint1.Equals(mint2) {
		return nil, errors.ErrInvalidTokenPair
	}
	a, b, swapped := NormalizeTokenOrder(mint1, mint2)
	ratioA, ratioB := ratio1, ratio2
	if swapped {
		ratioA, ratioB = ratio2, ratio1
	}

	out := &PoolAddresses{TokenAMint: a, TokenBMint: b, RatioA: ratioA, RatioB: ratioB, Swapped: swapped}

	var err error
	if out.PoolState, err = FindPoolState(programID, a, b, ratioA, ratioB); err != nil {
		return nil, err
	}
	pool := out.PoolState.Key
	if out.TokenAVault, err = FindTokenAVault(programID, pool); err != nil {
		return nil, err
	}
	if out.TokenBVault, err = FindTokenBVault(programID, pool); err != nil {
		return nil, err
	}
	if out.LpTokenAMint, err = FindLpTokenAMint(programID, pool); err != nil {
		return nil, err
	}
	if out.LpTokenBMint, err = FindLpTokenBMint(programID, pool); err != nil {
		return nil, err
	}
	return out, nil
}

// PoolFromState rebuilds the addresses of an initialized pool from the bumps
// recorded in its state.
func PoolFromState(programID solana.PublicKey, p *state.PoolState) (*PoolAddresses, error) {
	out := &PoolAddresses{
		TokenAMint: p.TokenAMint,
		TokenBMint: p.TokenBMint,
		RatioA:     p.RatioANumerator,
		RatioB:     p.RatioBDenominator,
	}
	var err error
	seeds := PoolStateSeeds(p.TokenAMint, p.TokenBMint, p.RatioANumerator, p.RatioBDenominator)
	if out.PoolState, err = Create(programID, p.Bumps.PoolAuthority, seeds...); err != nil {
		return nil, err
	}
	pool := out.PoolState.Key
	if out.TokenAVault, err = Create(programID, p.Bumps.TokenAVault, Seed.TokenAVault, pool[:]); err != nil {
		return nil, err
	}
	if out.TokenBVault, err = Create(programID, p.Bumps.TokenBVault, Seed.TokenBVault, pool[:]); err != nil {
		return nil, err
	}
	if out.LpTokenAMint, err = Create(programID, p.Bumps.LpTokenAMint, Seed.LpTokenAMint, pool[:]); err != nil {
		return nil, err
	}
	if out.LpTokenBMint, err = Create(programID, p.Bumps.LpTokenBMint, Seed.LpTokenBMint, pool[:]); err != nil {
		return nil, err
	}
	return out, nil
}

// Bumps returns the bump of every pool address in state layout.
func (p *PoolAddresses) Bumps() state.PoolBumps {
	return state.PoolBumps{
		PoolAuthority: p.PoolState.Bump,
		TokenAVault:   p.TokenAVault.Bump,
		TokenBVault:   p.TokenBVault.Bump,
		LpTokenAMint:  p.LpTokenAMint.Bump,
		LpTokenBMint:  p.LpTokenBMint.Bump,
	}
}

// Vault returns the vault of side A or B.
func (p *PoolAddresses) Vault(tokenA bool) Address {
	if tokenA {
		return p.TokenAVault
	}
	return p.TokenBVault
}

// LpMint returns the LP mint of side A or B.
func (p *PoolAddresses) LpMint(tokenA bool) Address {
	if tokenA {
		return p.LpTokenAMint
	}
	return p.LpTokenBMint
}

// PoolSignerSeeds returns the bumped pool-state seeds used to sign for the pool.
func (p *PoolAddresses) PoolSignerSeeds() [][]byte {
	return p.PoolState.SignerSeeds(PoolStateSeeds(p.TokenAMint, p.TokenBMint, p.RatioA, p.RatioB))
}

// Verify rejects a supplied account whose address is not the derived one.
func Verify(what string, expected, supplied solana.PublicKey) error {
	if !expected.Equals(supplied) {
		return errors.ErrInvalidArgument.Withf("%s: expected %s, got %s", what, expected, supplied)
	}
	return nil
}
