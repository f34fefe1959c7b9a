// Package view reads single fields straight out of packed account bytes
// without decoding the whole layout. Views alias the buffer they wrap; they
// are meant for hot checks (token balances, pool flags) and listings.
package view

import (
	"encoding/binary"
	"errors"
	"unsafe"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrInvalidBuffer      = errors.New("invalid buffer size")
	ErrInvalidAccountData = errors.New("invalid account data")
)

func key(buf []byte, offset int) solana.PublicKey {
	return *(*solana.PublicKey)(unsafe.Pointer(&buf[offset]))
}

func optionalKey(buf []byte, offset int) *solana.PublicKey {
	if binary.LittleEndian.Uint32(buf[offset:offset+4]) == 0 {
		return nil
	}
	k := key(buf, offset+4)
	return &k
}

// SPL token account layout.
const (
	tokenAccountLen     = 165
	tokenMintOffset     = 0
	tokenOwnerOffset    = 32
	tokenAmountOffset   = 64
	tokenDelegateOffset = 72
	tokenStateOffset    = 108
)

// TokenAccountView reads an SPL token account.
type TokenAccountView struct {
	buffer []byte
}

// NewTokenAccountView wraps buffer, rejecting short or uninitialized accounts.
func NewTokenAccountView(buffer []byte) (*TokenAccountView, error) {
	if len(buffer) < tokenAccountLen {
		return nil, ErrInvalidBuffer
	}
	if buffer[tokenStateOffset] == 0 {
		return nil, ErrInvalidAccountData
	}
	return &TokenAccountView{buffer: buffer}, nil
}

func (v *TokenAccountView) Mint() solana.PublicKey  { return key(v.buffer, tokenMintOffset) }
func (v *TokenAccountView) Owner() solana.PublicKey { return key(v.buffer, tokenOwnerOffset) }

func (v *TokenAccountView) Amount() uint64 {
	return binary.LittleEndian.Uint64(v.buffer[tokenAmountOffset : tokenAmountOffset+8])
}

func (v *TokenAccountView) Delegate() *solana.PublicKey {
	return optionalKey(v.buffer, tokenDelegateOffset)
}

// IsFrozen reports the frozen account state.
func (v *TokenAccountView) IsFrozen() bool { return v.buffer[tokenStateOffset] == 2 }

// SPL mint layout.
const (
	mintLen              = 82
	mintAuthorityOffset  = 0
	mintSupplyOffset     = 36
	mintDecimalsOffset   = 44
	mintInitializedIndex = 45
)

// MintView reads an SPL mint.
type MintView struct {
	buffer []byte
}

// NewMintView wraps buffer, rejecting short or uninitialized mints.
func NewMintView(buffer []byte) (*MintView, error) {
	if len(buffer) < mintLen {
		return nil, ErrInvalidBuffer
	}
	if buffer[mintInitializedIndex] == 0 {
		return nil, ErrInvalidAccountData
	}
	return &MintView{buffer: buffer}, nil
}

func (v *MintView) MintAuthority() *solana.PublicKey {
	return optionalKey(v.buffer, mintAuthorityOffset)
}

func (v *MintView) Supply() uint64 {
	return binary.LittleEndian.Uint64(v.buffer[mintSupplyOffset : mintSupplyOffset+8])
}

func (v *MintView) Decimals() uint8 { return v.buffer[mintDecimalsOffset] }

// Packed pool-state offsets, after the 8-byte discriminator.
const (
	poolOwnerOffset       = 8
	poolTokenAMintOffset  = 40
	poolTokenBMintOffset  = 72
	poolRatioAOffset      = 264
	poolRatioBOffset      = 272
	poolLiquidityAOffset  = 280
	poolLiquidityBOffset  = 288
	poolInitializedOffset = 301
	poolFlagsOffset       = 302
	poolCollectedLiqFees  = 343
	poolCollectedSwapFees = 351
	poolFixedLen          = 359
)

// PoolView reads the fixed head of a packed pool state.
type PoolView struct {
	buffer []byte
}

// NewPoolView wraps buffer. discriminator must match the first 8 bytes.
func NewPoolView(buffer []byte, discriminator [8]byte) (*PoolView, error) {
	if len(buffer) < poolFixedLen {
		return nil, ErrInvalidBuffer
	}
	if [8]byte(buffer[:8]) != discriminator {
		return nil, ErrInvalidAccountData
	}
	return &PoolView{buffer: buffer}, nil
}

func (v *PoolView) u64(offset int) uint64 {
	return binary.LittleEndian.Uint64(v.buffer[offset : offset+8])
}

func (v *PoolView) Owner() solana.PublicKey      { return key(v.buffer, poolOwnerOffset) }
func (v *PoolView) TokenAMint() solana.PublicKey { return key(v.buffer, poolTokenAMintOffset) }
func (v *PoolView) TokenBMint() solana.PublicKey { return key(v.buffer, poolTokenBMintOffset) }

// Ratio returns the token A numerator and token B denominator.
func (v *PoolView) Ratio() (a, b uint64) {
	return v.u64(poolRatioAOffset), v.u64(poolRatioBOffset)
}

// Liquidity returns the tracked token A and token B liquidity.
func (v *PoolView) Liquidity() (a, b uint64) {
	return v.u64(poolLiquidityAOffset), v.u64(poolLiquidityBOffset)
}

func (v *PoolView) IsInitialized() bool { return v.buffer[poolInitializedOffset] != 0 }
func (v *PoolView) Flags() uint8        { return v.buffer[poolFlagsOffset] }

// PendingSolFees is the unconsolidated lamport fee balance.
func (v *PoolView) PendingSolFees() uint64 {
	return v.u64(poolCollectedLiqFees) + v.u64(poolCollectedSwapFees)
}

// EventView splits a program event payload into its discriminator and body.
type EventView struct {
	buffer        []byte
	discriminator [8]byte
}

func NewEventView(buffer []byte) (*EventView, error) {
	if len(buffer) < 8 {
		return nil, ErrInvalidBuffer
	}

	var disc [8]byte
	copy(disc[:], buffer[:8])

	return &EventView{
		buffer:        buffer,
		discriminator: disc,
	}, nil
}

func (v *EventView) Discriminator() [8]byte {
	return v.discriminator
}

func (v *EventView) Data() []byte {
	if len(v.buffer) <= 8 {
		return nil
	}
	return v.buffer[8:]
}

func (v *EventView) FullData() []byte {
	return v.buffer
}
