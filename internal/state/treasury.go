package state

import (
	bin "github.com/gagliardetto/binary"
	"github.com/shopspring/decimal"
)

// TreasuryLen is the packed size of MainTreasuryState.
const TreasuryLen = 8 + 12*8 + 2*8

// MainTreasuryState is the protocol-wide fee ledger.
type MainTreasuryState struct {
	TotalBalance      uint64
	RentExemptMinimum uint64
	TotalWithdrawn    uint64

	PoolCreationCount       uint64
	PoolCreationFees        uint64
	LiquidityOperationCount uint64
	LiquidityOperationFees  uint64
	RegularSwapCount        uint64
	RegularSwapFees         uint64
	TreasuryWithdrawalCount uint64
	FailedOperationCount    uint64

	TotalConsolidationsPerformed uint64
	LastConsolidationTimestamp   int64
	LastUpdateTimestamp          int64
}

func (t *MainTreasuryState) Len() int { return TreasuryLen }

// MarshalWithEncoder writes the packed layout.
func (t *MainTreasuryState) MarshalWithEncoder(enc *bin.Encoder) error {
	w := &writer{enc: enc}
	w.disc(TreasuryDiscriminator)
	w.u64(t.TotalBalance)
	w.u64(t.RentExemptMinimum)
	w.u64(t.TotalWithdrawn)
	w.u64(t.PoolCreationCount)
	w.u64(t.PoolCreationFees)
	w.u64(t.LiquidityOperationCount)
	w.u64(t.LiquidityOperationFees)
	w.u64(t.RegularSwapCount)
	w.u64(t.RegularSwapFees)
	w.u64(t.TreasuryWithdrawalCount)
	w.u64(t.FailedOperationCount)
	w.u64(t.TotalConsolidationsPerformed)
	w.i64(t.LastConsolidationTimestamp)
	w.i64(t.LastUpdateTimestamp)
	return w.err
}

// UnmarshalWithDecoder reads the packed layout.
func (t *MainTreasuryState) UnmarshalWithDecoder(dec *bin.Decoder) error {
	r := &reader{dec: dec}
	r.disc(TreasuryDiscriminator)
	t.TotalBalance = r.u64()
	t.RentExemptMinimum = r.u64()
	t.TotalWithdrawn = r.u64()
	t.PoolCreationCount = r.u64()
	t.PoolCreationFees = r.u64()
	t.LiquidityOperationCount = r.u64()
	t.LiquidityOperationFees = r.u64()
	t.RegularSwapCount = r.u64()
	t.RegularSwapFees = r.u64()
	t.TreasuryWithdrawalCount = r.u64()
	t.FailedOperationCount = r.u64()
	t.TotalConsolidationsPerformed = r.u64()
	t.LastConsolidationTimestamp = r.i64()
	t.LastUpdateTimestamp = r.i64()
	return r.err
}

func (t *MainTreasuryState) AddPoolCreationFee(amount uint64, now int64) {
	t.PoolCreationCount++
	t.PoolCreationFees += amount
	t.LastUpdateTimestamp = now
}

// AddLiquidityFee books ops deposit/withdraw operations and their fees.
// Liquidity fees accrue on the pool and reach the treasury when consolidated.
func (t *MainTreasuryState) AddLiquidityFee(amount, ops uint64, now int64) {
	t.LiquidityOperationCount += ops
	t.LiquidityOperationFees += amount
	t.LastUpdateTimestamp = now
}

// AddSwapContractFee books ops swaps and their contract fees.
func (t *MainTreasuryState) AddSwapContractFee(amount, ops uint64, now int64) {
	t.RegularSwapCount += ops
	t.RegularSwapFees += amount
	t.LastUpdateTimestamp = now
}

// AddConsolidatedFees credits one pool's consolidated share.
func (t *MainTreasuryState) AddConsolidatedFees(s ConsolidationShare, now int64) {
	t.AddLiquidityFee(s.LiquidityFees, s.LiquidityOps, now)
	t.AddSwapContractFee(s.SwapFees, s.SwapOps, now)
}

// RecordFailedOperation counts a pool sweep that left fees behind.
func (t *MainTreasuryState) RecordFailedOperation(now int64) {
	t.FailedOperationCount++
	t.LastUpdateTimestamp = now
}

// RecordConsolidation marks the end of one consolidation sweep.
func (t *MainTreasuryState) RecordConsolidation(now int64) {
	t.TotalConsolidationsPerformed++
	t.LastConsolidationTimestamp = now
	t.LastUpdateTimestamp = now
}

// SyncBalance reconciles TotalBalance with the account's lamports.
func (t *MainTreasuryState) SyncBalance(lamports uint64) {
	t.TotalBalance = lamports
}

// AvailableForWithdrawal is the balance above the rent-exempt minimum.
func (t *MainTreasuryState) AvailableForWithdrawal() uint64 {
	if t.TotalBalance <= t.RentExemptMinimum {
		return 0
	}
	return t.TotalBalance - t.RentExemptMinimum
}

// RecordWithdrawal books a withdrawal of amount lamports.
func (t *MainTreasuryState) RecordWithdrawal(amount uint64, now int64) {
	t.TotalWithdrawn += amount
	t.TreasuryWithdrawalCount++
	t.LastUpdateTimestamp = now
}

// TotalFeesCollected sums every fee category.
func (t *MainTreasuryState) TotalFeesCollected() uint64 {
	return t.PoolCreationFees + t.LiquidityOperationFees + t.RegularSwapFees
}

// TotalOperations sums every fee-bearing operation.
func (t *MainTreasuryState) TotalOperations() uint64 {
	return t.PoolCreationCount + t.LiquidityOperationCount + t.RegularSwapCount
}

// SuccessRate is successful operations over all attempts, as a fraction.
// With no recorded attempts the rate is one.
func (t *MainTreasuryState) SuccessRate() decimal.Decimal {
	ok := t.TotalOperations()
	total := ok + t.FailedOperationCount
	if total == 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromUint64(ok).DivRound(decimal.NewFromUint64(total), 6)
}

func average(fees, count uint64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return decimal.NewFromUint64(fees).DivRound(decimal.NewFromUint64(count), 2)
}

// AverageFees reports the mean fee per operation for each category, in lamports.
func (t *MainTreasuryState) AverageFees() (poolCreation, liquidity, swap decimal.Decimal) {
	return average(t.PoolCreationFees, t.PoolCreationCount),
		average(t.LiquidityOperationFees, t.LiquidityOperationCount),
		average(t.RegularSwapFees, t.RegularSwapCount)
}
