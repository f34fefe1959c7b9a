package api

import (
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/lugondev/fixed-ratio-trading/internal/state"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

type delegateView struct {
	Address        solana.PublicKey `json:"address"`
	FeeChangeWait  uint64           `json:"fee_change_wait"`
	WithdrawalWait uint64           `json:"withdrawal_wait"`
	PoolPauseWait  uint64           `json:"pool_pause_wait"`
}

type pendingActionView struct {
	ActionID           uint64             `json:"action_id"`
	Delegate           solana.PublicKey   `json:"delegate"`
	Type               string             `json:"type"`
	Params             state.ActionParams `json:"params"`
	RequestTimestamp   int64              `json:"request_timestamp"`
	ExecutionTimestamp int64              `json:"execution_timestamp"`
}

type poolView struct {
	Address      solana.PublicKey `json:"address"`
	Owner        solana.PublicKey `json:"owner"`
	SwapOwner    solana.PublicKey `json:"swap_owner"`
	TokenAMint   solana.PublicKey `json:"token_a_mint"`
	TokenBMint   solana.PublicKey `json:"token_b_mint"`
	TokenAVault  solana.PublicKey `json:"token_a_vault"`
	TokenBVault  solana.PublicKey `json:"token_b_vault"`
	LpTokenAMint solana.PublicKey `json:"lp_token_a_mint"`
	LpTokenBMint solana.PublicKey `json:"lp_token_b_mint"`

	RatioANumerator      uint64 `json:"ratio_a_numerator"`
	RatioBDenominator    uint64 `json:"ratio_b_denominator"`
	TotalTokenALiquidity uint64 `json:"total_token_a_liquidity"`
	TotalTokenBLiquidity uint64 `json:"total_token_b_liquidity"`

	Flags      string `json:"flags"`
	FlagsValue uint8  `json:"flags_value"`

	ContractLiquidityFee      uint64 `json:"contract_liquidity_fee"`
	SwapContractFee           uint64 `json:"swap_contract_fee"`
	SwapFeeBasisPoints        uint64 `json:"swap_fee_basis_points"`
	CollectedFeesTokenA       uint64 `json:"collected_fees_token_a"`
	CollectedFeesTokenB       uint64 `json:"collected_fees_token_b"`
	CollectedLiquidityFees    uint64 `json:"collected_liquidity_fees"`
	CollectedSwapContractFees uint64 `json:"collected_swap_contract_fees"`
	PendingSolFees            uint64 `json:"pending_sol_fees"`
	TotalFeesConsolidated     uint64 `json:"total_fees_consolidated"`
	TotalConsolidations       uint64 `json:"total_consolidations"`

	Limits         state.VolumeLimits  `json:"limits"`
	Delegates      []delegateView      `json:"delegates"`
	PendingActions []pendingActionView `json:"pending_actions"`
}

func newPoolView(address solana.PublicKey, p *state.PoolState) poolView {
	v := poolView{
		Address:                   address,
		Owner:                     p.Owner,
		SwapOwner:                 p.SwapOwner,
		TokenAMint:                p.TokenAMint,
		TokenBMint:                p.TokenBMint,
		TokenAVault:               p.TokenAVault,
		TokenBVault:               p.TokenBVault,
		LpTokenAMint:              p.LpTokenAMint,
		LpTokenBMint:              p.LpTokenBMint,
		RatioANumerator:           p.RatioANumerator,
		RatioBDenominator:         p.RatioBDenominator,
		TotalTokenALiquidity:      p.TotalTokenALiquidity,
		TotalTokenBLiquidity:      p.TotalTokenBLiquidity,
		Flags:                     p.Flags.String(),
		FlagsValue:                uint8(p.Flags),
		ContractLiquidityFee:      p.ContractLiquidityFee,
		SwapContractFee:           p.SwapContractFee,
		SwapFeeBasisPoints:        p.SwapFeeBasisPoints,
		CollectedFeesTokenA:       p.CollectedFeesTokenA,
		CollectedFeesTokenB:       p.CollectedFeesTokenB,
		CollectedLiquidityFees:    p.CollectedLiquidityFees,
		CollectedSwapContractFees: p.CollectedSwapContractFees,
		PendingSolFees:            p.PendingSolFees(),
		TotalFeesConsolidated:     p.TotalFeesConsolidated,
		TotalConsolidations:       p.TotalConsolidations,
		Limits:                    p.Limits,
		Delegates:                 []delegateView{},
		PendingActions:            []pendingActionView{},
	}
	for _, d := range p.Delegates.Delegates() {
		limits, _ := p.Delegates.TimeLimits(d)
		v.Delegates = append(v.Delegates, delegateView{
			Address:        d,
			FeeChangeWait:  limits.WaitFor(state.ActionFeeChange),
			WithdrawalWait: limits.WaitFor(state.ActionWithdrawal),
			PoolPauseWait:  limits.WaitFor(state.ActionPausePoolSwaps),
		})
	}
	for _, a := range p.Delegates.Pending() {
		v.PendingActions = append(v.PendingActions, pendingActionView{
			ActionID:           a.ActionID,
			Delegate:           a.Delegate,
			Type:               a.Params.Type().String(),
			Params:             a.Params,
			RequestTimestamp:   a.RequestTimestamp,
			ExecutionTimestamp: a.ExecutionTimestamp,
		})
	}
	return v
}

// treasuryView carries the raw counters plus derived analytics. Decimal
// fields are rendered as strings.
type treasuryView struct {
	Address           solana.PublicKey `json:"address"`
	TotalBalance      uint64           `json:"total_balance"`
	TotalBalanceSOL   decimal.Decimal  `json:"total_balance_sol"`
	RentExemptMinimum uint64           `json:"rent_exempt_minimum"`
	TotalWithdrawn    uint64           `json:"total_withdrawn"`

	PoolCreationCount       uint64 `json:"pool_creation_count"`
	PoolCreationFees        uint64 `json:"pool_creation_fees"`
	LiquidityOperationCount uint64 `json:"liquidity_operation_count"`
	LiquidityOperationFees  uint64 `json:"liquidity_operation_fees"`
	RegularSwapCount        uint64 `json:"regular_swap_count"`
	RegularSwapFees         uint64 `json:"regular_swap_fees"`
	TreasuryWithdrawalCount uint64 `json:"treasury_withdrawal_count"`
	FailedOperationCount    uint64 `json:"failed_operation_count"`

	TotalConsolidationsPerformed uint64 `json:"total_consolidations_performed"`
	LastConsolidationTimestamp   int64  `json:"last_consolidation_timestamp"`
	LastUpdateTimestamp          int64  `json:"last_update_timestamp"`

	AvailableForWithdrawal uint64          `json:"available_for_withdrawal"`
	TotalFeesCollected     uint64          `json:"total_fees_collected"`
	TotalOperations        uint64          `json:"total_operations"`
	SuccessRate            decimal.Decimal `json:"success_rate"`
	AveragePoolCreationFee decimal.Decimal `json:"average_pool_creation_fee"`
	AverageLiquidityFee    decimal.Decimal `json:"average_liquidity_fee"`
	AverageSwapFee         decimal.Decimal `json:"average_swap_fee"`
}

func newTreasuryView(address solana.PublicKey, t *state.MainTreasuryState) treasuryView {
	poolCreation, liquidity, swap := t.AverageFees()
	return treasuryView{
		Address:                      address,
		TotalBalance:                 t.TotalBalance,
		TotalBalanceSOL:              types.LamportsToSOL(t.TotalBalance),
		RentExemptMinimum:            t.RentExemptMinimum,
		TotalWithdrawn:               t.TotalWithdrawn,
		PoolCreationCount:            t.PoolCreationCount,
		PoolCreationFees:             t.PoolCreationFees,
		LiquidityOperationCount:      t.LiquidityOperationCount,
		LiquidityOperationFees:       t.LiquidityOperationFees,
		RegularSwapCount:             t.RegularSwapCount,
		RegularSwapFees:              t.RegularSwapFees,
		TreasuryWithdrawalCount:      t.TreasuryWithdrawalCount,
		FailedOperationCount:         t.FailedOperationCount,
		TotalConsolidationsPerformed: t.TotalConsolidationsPerformed,
		LastConsolidationTimestamp:   t.LastConsolidationTimestamp,
		LastUpdateTimestamp:          t.LastUpdateTimestamp,
		AvailableForWithdrawal:       t.AvailableForWithdrawal(),
		TotalFeesCollected:           t.TotalFeesCollected(),
		TotalOperations:              t.TotalOperations(),
		SuccessRate:                  t.SuccessRate(),
		AveragePoolCreationFee:       poolCreation,
		AverageLiquidityFee:          liquidity,
		AverageSwapFee:               swap,
	}
}

type systemView struct {
	Address         solana.PublicKey `json:"address"`
	IsPaused        bool             `json:"is_paused"`
	PauseReasonCode uint8            `json:"pause_reason_code"`
	PauseTimestamp  int64            `json:"pause_timestamp"`
}
