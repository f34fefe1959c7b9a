package program

import (
	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/instruction"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/metrics"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
)

func (p *Program) pauseSystem(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	ix := raw.(*instruction.PauseSystem)
	if err := need(accounts, 3); err != nil {
		return err
	}
	authority, systemInfo := accounts[0], accounts[1]
	if err := p.requireAuthority(authority, accounts[2]); err != nil {
		return err
	}
	if ix.ReasonCode == 0 {
		return errors.ErrInvalidArgument.Withf("pause reason must be non-zero")
	}
	sys, err := p.loadSystemState(systemInfo)
	if err != nil {
		return err
	}
	if sys.IsPaused {
		return errors.ErrSystemAlreadyPaused.Withf("paused since %d with reason %d", sys.PauseTimestamp, sys.PauseReasonCode)
	}
	now := ic.Clock().UnixTimestamp
	sys.Pause(ix.ReasonCode, now)
	if err := save(systemInfo, sys); err != nil {
		return err
	}
	ic.Logf("System paused with reason %d", ix.ReasonCode)
	emit(ic, SystemPaused{Authority: authority.Key, ReasonCode: ix.ReasonCode, Timestamp: now})
	return nil
}

func (p *Program) unpauseSystem(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, _ instruction.Instruction) error {
	if err := need(accounts, 3); err != nil {
		return err
	}
	authority, systemInfo := accounts[0], accounts[1]
	if err := p.requireAuthority(authority, accounts[2]); err != nil {
		return err
	}
	sys, err := p.loadSystemState(systemInfo)
	if err != nil {
		return err
	}
	if !sys.IsPaused {
		return errors.ErrSystemNotPaused
	}
	sys.Unpause()
	if err := save(systemInfo, sys); err != nil {
		return err
	}
	ic.Logf("System unpaused")
	emit(ic, SystemUnpaused{Authority: authority.Key, Timestamp: ic.Clock().UnixTimestamp})
	return nil
}

func (p *Program) withdrawTreasuryFees(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	ix := raw.(*instruction.WithdrawTreasuryFees)
	if err := need(accounts, 4); err != nil {
		return err
	}
	authority, treasuryInfo, destination := accounts[0], accounts[1], accounts[2]
	if err := p.requireAuthority(authority, accounts[3]); err != nil {
		return err
	}
	treasury, err := p.loadTreasury(treasuryInfo)
	if err != nil {
		return err
	}
	treasury.SyncBalance(treasuryInfo.Lamports())
	available := treasury.AvailableForWithdrawal()
	amount := ix.Amount
	if amount == 0 {
		amount = available
	}
	if amount == 0 || amount > available {
		return errors.ErrInsufficientFunds.Withf("requested %d, available %d", ix.Amount, available)
	}
	if err := ledger.TransferLamports(treasuryInfo, destination, amount); err != nil {
		return err
	}
	now := ic.Clock().UnixTimestamp
	treasury.RecordWithdrawal(amount, now)
	treasury.SyncBalance(treasuryInfo.Lamports())
	if err := save(treasuryInfo, treasury); err != nil {
		return err
	}
	metrics.LogError(p.GetLogger(), metrics.MetricTreasuryBalance, p.metrics.UpdateGauge(ic.Context(), metrics.MetricTreasuryBalance, float64(treasury.TotalBalance)))
	ic.Logf("Treasury withdrawal of %d to %s", amount, destination.Key)
	emit(ic, TreasuryWithdrawn{Destination: destination.Key, Amount: amount, Remaining: treasury.AvailableForWithdrawal()})
	return nil
}

// getTreasuryInfo returns the treasury account as stored. An unreadable
// treasury reports the zero state rather than failing the query.
func (p *Program) getTreasuryInfo(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, _ instruction.Instruction) error {
	if err := need(accounts, 1); err != nil {
		return err
	}
	treasury, err := p.loadTreasury(accounts[0])
	if err != nil {
		ic.Logf("Treasury unreadable, reporting defaults: %v", err)
		treasury = new(state.MainTreasuryState)
	}
	data, err := instruction.MarshalReturn(treasury)
	if err != nil {
		return err
	}
	return ic.SetReturnData(data)
}

// consolidationEligible reports whether pool fees may be swept: either the
// whole system is paused for consolidation or the pool itself is fully paused.
func consolidationEligible(sys *state.SystemState, pool *state.PoolState) bool {
	if sys.IsPaused && sys.PauseReasonCode == state.PauseReasonConsolidation {
		return true
	}
	return pool.FullyPaused()
}

func consolidationCount(n uint8, accounts []*ledger.AccountInfo, fixed int) error {
	if n == 0 || int(n) > state.MaxConsolidationPools {
		return errors.ErrInvalidArgument.Withf("pool count %d outside [1, %d]", n, state.MaxConsolidationPools)
	}
	if len(accounts) != fixed+int(n) {
		return errors.ErrInvalidArgument.Withf("pool count %d does not match %d pool accounts", n, len(accounts)-fixed)
	}
	return nil
}

func (p *Program) consolidatePoolFees(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	ix := raw.(*instruction.ConsolidatePoolFees)
	if err := need(accounts, 4); err != nil {
		return err
	}
	authority, systemInfo, treasuryInfo := accounts[0], accounts[1], accounts[2]
	if err := p.requireAuthority(authority, accounts[3]); err != nil {
		return err
	}
	if err := consolidationCount(ix.PoolCount, accounts, 4); err != nil {
		return err
	}
	sys, err := p.loadSystemState(systemInfo)
	if err != nil {
		return err
	}
	treasury, err := p.loadTreasury(treasuryInfo)
	if err != nil {
		return err
	}

	now := ic.Clock().UnixTimestamp
	reserve := ic.Rent().MinimumBalance(state.PoolStateLen)
	var moved uint64
	for _, poolInfo := range accounts[4:] {
		pool, _, err := p.loadPool(poolInfo)
		if err != nil {
			return err
		}
		if !consolidationEligible(sys, pool) {
			return errors.ErrPoolNotPausedForConsolidation.Withf("pool %s", poolInfo.Key)
		}
		var available uint64
		if poolInfo.Lamports() > reserve {
			available = poolInfo.Lamports() - reserve
		}
		pending := pool.PendingSolFees()
		share := pool.PlanConsolidation(available)
		if share.Total < pending {
			ic.Logf("Pool %s can cover %d of %d pending lamports", poolInfo.Key, share.Total, pending)
			treasury.RecordFailedOperation(now)
		}
		if share.Total == 0 {
			continue
		}
		if err := ledger.TransferLamports(poolInfo, treasuryInfo, share.Total); err != nil {
			return err
		}
		if err := pool.ApplyConsolidation(share, now); err != nil {
			return err
		}
		if err := save(poolInfo, pool); err != nil {
			return err
		}
		treasury.AddConsolidatedFees(share, now)
		moved += share.Total
		emit(ic, PoolFeesConsolidated{
			Pool:      poolInfo.Key,
			Amount:    share.Total,
			Remaining: pool.PendingSolFees(),
			Timestamp: now,
		})
	}

	treasury.RecordConsolidation(now)
	treasury.SyncBalance(treasuryInfo.Lamports())
	if err := save(treasuryInfo, treasury); err != nil {
		return err
	}
	metrics.LogError(p.GetLogger(), metrics.MetricTreasuryBalance, p.metrics.UpdateGauge(ic.Context(), metrics.MetricTreasuryBalance, float64(treasury.TotalBalance)))
	ic.Logf("Consolidated %d lamports from %d pools", moved, ix.PoolCount)
	return nil
}

func (p *Program) getConsolidationStatus(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	ix := raw.(*instruction.GetConsolidationStatus)
	if err := need(accounts, 1); err != nil {
		return err
	}
	if err := consolidationCount(ix.PoolCount, accounts, 1); err != nil {
		return err
	}
	sys, err := p.loadSystemState(accounts[0])
	if err != nil {
		return err
	}
	status := &instruction.ConsolidationStatus{
		SystemPaused: sys.IsPaused,
		PauseReason:  sys.PauseReasonCode,
		Pools:        make([]instruction.PoolConsolidation, 0, ix.PoolCount),
	}
	for _, poolInfo := range accounts[1:] {
		pool, _, err := p.loadPool(poolInfo)
		if err != nil {
			return err
		}
		entry := instruction.PoolConsolidation{
			CollectedLiquidityFees:    pool.CollectedLiquidityFees,
			CollectedSwapContractFees: pool.CollectedSwapContractFees,
			LiquidityOpsPending:       pool.LiquidityOpsPending,
			SwapOpsPending:            pool.SwapOpsPending,
			Eligible:                  consolidationEligible(sys, pool),
		}
		status.TotalPending += entry.PendingFees()
		status.Pools = append(status.Pools, entry)
	}
	data, err := instruction.MarshalReturn(status)
	if err != nil {
		return err
	}
	return ic.SetReturnData(data)
}
