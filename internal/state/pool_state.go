package state

import (
	"math/bits"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
)

// PoolStateLen is the packed size of a PoolState account.
const PoolStateLen = 8 + // discriminator
	8*32 + // owner, mints, vaults, lp mints, swap owner
	4*8 + // ratio and liquidity totals
	5 + // bumps
	1 + 1 + // is_initialized, flags
	12*8 + // fees, counters, timestamp
	6*8 + // volume limits
	DelegateManagementLen

// PoolBumps holds the bump seed of every pool PDA.
type PoolBumps struct {
	PoolAuthority uint8
	TokenAVault   uint8
	TokenBVault   uint8
	LpTokenAMint  uint8
	LpTokenBMint  uint8
}

// VolumeLimits bounds per-operation amounts. Zero means unlimited.
type VolumeLimits struct {
	MaxSwapAmount       uint64
	MinSwapAmount       uint64
	MaxDepositAmount    uint64
	MinDepositAmount    uint64
	MaxWithdrawalAmount uint64
	MinWithdrawalAmount uint64
}

func checkRange(amount, min, max uint64) error {
	if min != 0 && amount < min {
		return errors.ErrAmountOutOfRange.Withf("amount %d below minimum %d", amount, min)
	}
	if max != 0 && amount > max {
		return errors.ErrAmountOutOfRange.Withf("amount %d above maximum %d", amount, max)
	}
	return nil
}

// CheckSwap validates a swap input amount.
func (l VolumeLimits) CheckSwap(amount uint64) error {
	return checkRange(amount, l.MinSwapAmount, l.MaxSwapAmount)
}

// CheckDeposit validates a deposit amount.
func (l VolumeLimits) CheckDeposit(amount uint64) error {
	return checkRange(amount, l.MinDepositAmount, l.MaxDepositAmount)
}

// CheckWithdrawal validates a withdrawal amount.
func (l VolumeLimits) CheckWithdrawal(amount uint64) error {
	return checkRange(amount, l.MinWithdrawalAmount, l.MaxWithdrawalAmount)
}

// PoolState is the per-pool record.
type PoolState struct {
	Owner        solana.PublicKey
	TokenAMint   solana.PublicKey
	TokenBMint   solana.PublicKey
	TokenAVault  solana.PublicKey
	TokenBVault  solana.PublicKey
	LpTokenAMint solana.PublicKey
	LpTokenBMint solana.PublicKey
	// SwapOwner is the only trader allowed while FlagSwapForOwnersOnly is set.
	SwapOwner solana.PublicKey

	RatioANumerator   uint64
	RatioBDenominator uint64

	TotalTokenALiquidity uint64
	TotalTokenBLiquidity uint64

	Bumps         PoolBumps
	IsInitialized bool
	Flags         PoolFlags

	ContractLiquidityFee uint64
	SwapContractFee      uint64
	SwapFeeBasisPoints   uint64

	// Token fees retained in the vaults, owed to the owner and delegates.
	CollectedFeesTokenA uint64
	CollectedFeesTokenB uint64

	// Pending SOL fees, held in the pool-state account until consolidated.
	CollectedLiquidityFees    uint64
	CollectedSwapContractFees uint64
	LiquidityOpsPending       uint64
	SwapOpsPending            uint64

	TotalFeesConsolidated      uint64
	TotalConsolidations        uint64
	LastConsolidationTimestamp int64

	Limits VolumeLimits

	Delegates DelegateManagement
}

// NewPoolState returns an initialized pool with zeroed counters and default fees.
func NewPoolState(owner solana.PublicKey) *PoolState {
	return &PoolState{
		Owner:                owner,
		SwapOwner:            owner,
		IsInitialized:        true,
		ContractLiquidityFee: DepositWithdrawalFee,
		SwapContractFee:      SwapContractFee,
		Delegates:            NewDelegateManagement(owner),
	}
}

func (p *PoolState) Len() int { return PoolStateLen }

// MarshalWithEncoder writes the packed layout.
func (p *PoolState) MarshalWithEncoder(enc *bin.Encoder) error {
	w := &writer{enc: enc}
	w.disc(PoolStateDiscriminator)
	w.key(p.Owner)
	w.key(p.TokenAMint)
	w.key(p.TokenBMint)
	w.key(p.TokenAVault)
	w.key(p.TokenBVault)
	w.key(p.LpTokenAMint)
	w.key(p.LpTokenBMint)
	w.key(p.SwapOwner)
	w.u64(p.RatioANumerator)
	w.u64(p.RatioBDenominator)
	w.u64(p.TotalTokenALiquidity)
	w.u64(p.TotalTokenBLiquidity)
	w.u8(p.Bumps.PoolAuthority)
	w.u8(p.Bumps.TokenAVault)
	w.u8(p.Bumps.TokenBVault)
	w.u8(p.Bumps.LpTokenAMint)
	w.u8(p.Bumps.LpTokenBMint)
	w.boolean(p.IsInitialized)
	w.u8(uint8(p.Flags))
	w.u64(p.ContractLiquidityFee)
	w.u64(p.SwapContractFee)
	w.u64(p.SwapFeeBasisPoints)
	w.u64(p.CollectedFeesTokenA)
	w.u64(p.CollectedFeesTokenB)
	w.u64(p.CollectedLiquidityFees)
	w.u64(p.CollectedSwapContractFees)
	w.u64(p.LiquidityOpsPending)
	w.u64(p.SwapOpsPending)
	w.u64(p.TotalFeesConsolidated)
	w.u64(p.TotalConsolidations)
	w.i64(p.LastConsolidationTimestamp)
	w.u64(p.Limits.MaxSwapAmount)
	w.u64(p.Limits.MinSwapAmount)
	w.u64(p.Limits.MaxDepositAmount)
	w.u64(p.Limits.MinDepositAmount)
	w.u64(p.Limits.MaxWithdrawalAmount)
	w.u64(p.Limits.MinWithdrawalAmount)
	if w.err != nil {
		return w.err
	}
	return p.Delegates.MarshalWithEncoder(enc)
}

// UnmarshalWithDecoder reads the packed layout.
func (p *PoolState) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := &reader{dec: dec}
	r.disc(PoolStateDiscriminator)
	p.Owner = r.key()
	p.TokenAMint = r.key()
	p.TokenBMint = r.key()
	p.TokenAVault = r.key()
	p.TokenBVault = r.key()
	p.LpTokenAMint = r.key()
	p.LpTokenBMint = r.key()
	p.SwapOwner = r.key()
	p.RatioANumerator = r.u64()
	p.RatioBDenominator = r.u64()
	p.TotalTokenALiquidity = r.u64()
	p.TotalTokenBLiquidity = r.u64()
	p.Bumps.PoolAuthority = r.u8()
	p.Bumps.TokenAVault = r.u8()
	p.Bumps.TokenBVault = r.u8()
	p.Bumps.LpTokenAMint = r.u8()
	p.Bumps.LpTokenBMint = r.u8()
	p.IsInitialized = r.boolean()
	p.Flags = PoolFlags(r.u8())
	p.ContractLiquidityFee = r.u64()
	p.SwapContractFee = r.u64()
	p.SwapFeeBasisPoints = r.u64()
	p.CollectedFeesTokenA = r.u64()
	p.CollectedFeesTokenB = r.u64()
	p.CollectedLiquidityFees = r.u64()
	p.CollectedSwapContractFees = r.u64()
	p.LiquidityOpsPending = r.u64()
	p.SwapOpsPending = r.u64()
	p.TotalFeesConsolidated = r.u64()
	p.TotalConsolidations = r.u64()
	p.LastConsolidationTimestamp = r.i64()
	p.Limits.MaxSwapAmount = r.u64()
	p.Limits.MinSwapAmount = r.u64()
	p.Limits.MaxDepositAmount = r.u64()
	p.Limits.MinDepositAmount = r.u64()
	p.Limits.MaxWithdrawalAmount = r.u64()
	p.Limits.MinWithdrawalAmount = r.u64()
	if r.err != nil {
		return r.err
	}
	return p.Delegates.UnmarshalWithDecoder(dec)
}

func (p *PoolState) LiquidityPaused() bool { return p.Flags.Has(FlagLiquidityPaused) }
func (p *PoolState) SwapsPaused() bool     { return p.Flags.Has(FlagSwapsPaused) }

// FullyPaused reports whether both liquidity and swaps are paused.
func (p *PoolState) FullyPaused() bool {
	return p.Flags.Has(FlagLiquidityPaused | FlagSwapsPaused)
}

// WithdrawalProtectionActive reports the transient withdrawal guard.
func (p *PoolState) WithdrawalProtectionActive() bool {
	return p.Flags.Has(FlagWithdrawalProtection)
}

// IsTokenA reports whether mint is the pool's token A; ok is false when the
// mint belongs to neither side.
func (p *PoolState) IsTokenA(mint solana.PublicKey) (isA, ok bool) {
	switch {
	case mint.Equals(p.TokenAMint):
		return true, true
	case mint.Equals(p.TokenBMint):
		return false, true
	}
	return false, false
}

// PendingSolFees is the unconsolidated SOL fee balance.
func (p *PoolState) PendingSolFees() uint64 {
	return p.CollectedLiquidityFees + p.CollectedSwapContractFees
}

func addChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, errors.ErrArithmeticOverflow
	}
	return sum, nil
}

func subChecked(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, errors.ErrArithmeticOverflow
	}
	return diff, nil
}

// AddLiquidityFee records a collected deposit/withdraw fee.
func (p *PoolState) AddLiquidityFee(amount uint64) error {
	v, err := addChecked(p.CollectedLiquidityFees, amount)
	if err != nil {
		return err
	}
	p.CollectedLiquidityFees = v
	p.LiquidityOpsPending++
	return nil
}

// AddSwapContractFee records a collected swap fee.
func (p *PoolState) AddSwapContractFee(amount uint64) error {
	v, err := addChecked(p.CollectedSwapContractFees, amount)
	if err != nil {
		return err
	}
	p.CollectedSwapContractFees = v
	p.SwapOpsPending++
	return nil
}

// AddLiquidity increases the matching side's liquidity.
func (p *PoolState) AddLiquidity(tokenA bool, amount uint64) error {
	if tokenA {
		v, err := addChecked(p.TotalTokenALiquidity, amount)
		if err != nil {
			return err
		}
		p.TotalTokenALiquidity = v
		return nil
	}
	v, err := addChecked(p.TotalTokenBLiquidity, amount)
	if err != nil {
		return err
	}
	p.TotalTokenBLiquidity = v
	return nil
}

// RemoveLiquidity decreases the matching side's liquidity. Underflow is fatal.
func (p *PoolState) RemoveLiquidity(tokenA bool, amount uint64) error {
	if tokenA {
		v, err := subChecked(p.TotalTokenALiquidity, amount)
		if err != nil {
			return err
		}
		p.TotalTokenALiquidity = v
		return nil
	}
	v, err := subChecked(p.TotalTokenBLiquidity, amount)
	if err != nil {
		return err
	}
	p.TotalTokenBLiquidity = v
	return nil
}

// Liquidity returns the matching side's liquidity.
func (p *PoolState) Liquidity(tokenA bool) uint64 {
	if tokenA {
		return p.TotalTokenALiquidity
	}
	return p.TotalTokenBLiquidity
}

// AddCollectedTokenFee records a token fee retained in a vault.
func (p *PoolState) AddCollectedTokenFee(tokenA bool, amount uint64) error {
	target := &p.CollectedFeesTokenB
	if tokenA {
		target = &p.CollectedFeesTokenA
	}
	v, err := addChecked(*target, amount)
	if err != nil {
		return err
	}
	*target = v
	return nil
}

// WithdrawCollectedTokenFee releases token fees for a delegate withdrawal.
func (p *PoolState) WithdrawCollectedTokenFee(tokenA bool, amount uint64) error {
	target := &p.CollectedFeesTokenB
	if tokenA {
		target = &p.CollectedFeesTokenA
	}
	if *target < amount {
		return errors.ErrProgramInsufficientFunds.Withf("collected token fees %d below requested %d", *target, amount)
	}
	*target -= amount
	return nil
}

// ConsolidationShare is the part of a pool's pending fees moved by one sweep.
type ConsolidationShare struct {
	Total         uint64
	LiquidityFees uint64
	LiquidityOps  uint64
	SwapFees      uint64
	SwapOps       uint64
}

// PlanConsolidation splits available lamports across the pending fee buckets,
// liquidity fees first. Operation counts move only with a fully drained bucket.
func (p *PoolState) PlanConsolidation(available uint64) ConsolidationShare {
	var s ConsolidationShare
	s.LiquidityFees = min(available, p.CollectedLiquidityFees)
	s.SwapFees = min(available-s.LiquidityFees, p.CollectedSwapContractFees)
	s.Total = s.LiquidityFees + s.SwapFees
	if s.LiquidityFees == p.CollectedLiquidityFees {
		s.LiquidityOps = p.LiquidityOpsPending
	}
	if s.SwapFees == p.CollectedSwapContractFees {
		s.SwapOps = p.SwapOpsPending
	}
	return s
}

// ApplyConsolidation moves a planned share out of the pending counters.
func (p *PoolState) ApplyConsolidation(s ConsolidationShare, now int64) error {
	p.CollectedLiquidityFees -= s.LiquidityFees
	p.CollectedSwapContractFees -= s.SwapFees
	p.LiquidityOpsPending -= s.LiquidityOps
	p.SwapOpsPending -= s.SwapOps
	total, err := addChecked(p.TotalFeesConsolidated, s.Total)
	if err != nil {
		return err
	}
	p.TotalFeesConsolidated = total
	p.TotalConsolidations++
	p.LastConsolidationTimestamp = now
	return nil
}

// Validate checks the structural invariants of an initialized pool.
func (p *PoolState) Validate() error {
	if !p.IsInitialized {
		return errors.ErrUninitializedPool
	}
	if p.TokenAMint.Equals(p.TokenBMint) {
		return errors.ErrInvalidTokenPair
	}
	if p.RatioANumerator == 0 || p.RatioBDenominator == 0 {
		return errors.ErrInvalidRatio
	}
	return nil
}
