package state

// Fee schedule, in lamports unless noted.
const (
	RegistrationFee      uint64 = 1_150_000_000
	DepositWithdrawalFee uint64 = 1_300_000
	SwapContractFee      uint64 = 12_500

	MinLiquidityFee uint64 = 1_000
	MaxLiquidityFee uint64 = 100_000_000
	MinSwapFee      uint64 = 1_000
	MaxSwapFee      uint64 = 10_000_000

	// MaxSwapFeeBasisPoints caps the token-denominated swap fee.
	MaxSwapFeeBasisPoints       uint64 = 50
	FeeBasisPointsDenominator   uint64 = 10_000
	WithdrawalProtectionPercent uint64 = 5
)

// Delegate limits.
const (
	MaxDelegates          = 3
	MaxPendingActions     = 10
	MinDelegateWaitTime   = 300
	MaxDelegateWaitTime   = 259_200
	DefaultDelegateWait   = MinDelegateWaitTime
	MaxConsolidationPools = 20
)

// Pause flags carried by PausePool and UnpausePool.
const (
	PauseFlagLiquidity uint8 = 1
	PauseFlagSwaps     uint8 = 2
	PauseFlagAll             = PauseFlagLiquidity | PauseFlagSwaps
)

// Fee update flags carried by UpdatePoolFees.
const (
	FeeUpdateLiquidity uint8 = 1
	FeeUpdateSwap      uint8 = 2
	FeeUpdateAll             = FeeUpdateLiquidity | FeeUpdateSwap
)

// PauseReasonConsolidation marks a system pause taken to consolidate fees;
// while it is active every pool is eligible for consolidation.
const PauseReasonConsolidation uint8 = 13
