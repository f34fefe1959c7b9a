package program

import (
	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/instruction"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
)

// adminPool runs the program-authority check shared by the pool admin
// instructions and loads the pool. The system must be active unless
// allowPaused is set.
func (p *Program) adminPool(accounts []*ledger.AccountInfo, allowPaused bool) (*ledger.AccountInfo, *state.PoolState, error) {
	if err := need(accounts, 4); err != nil {
		return nil, nil, err
	}
	if err := p.requireAuthority(accounts[0], accounts[3]); err != nil {
		return nil, nil, err
	}
	if allowPaused {
		if _, err := p.loadSystemState(accounts[1]); err != nil {
			return nil, nil, err
		}
	} else if err := p.requireSystemActive(accounts[1]); err != nil {
		return nil, nil, err
	}
	pool, _, err := p.loadPool(accounts[2])
	if err != nil {
		return nil, nil, err
	}
	return accounts[2], pool, nil
}

// poolPauseFlags maps the 1/2/3 instruction flags onto pool flags.
func poolPauseFlags(flags uint8) (state.PoolFlags, error) {
	var f state.PoolFlags
	if flags == 0 || flags&^state.PauseFlagAll != 0 {
		return 0, errors.ErrInvalidPauseFlags.Withf("flags %d", flags)
	}
	if flags&state.PauseFlagLiquidity != 0 {
		f |= state.FlagLiquidityPaused
	}
	if flags&state.PauseFlagSwaps != 0 {
		f |= state.FlagSwapsPaused
	}
	return f, nil
}

func (p *Program) setPoolPause(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, flags uint8, paused bool) error {
	f, err := poolPauseFlags(flags)
	if err != nil {
		return err
	}
	info, pool, err := p.adminPool(accounts, true)
	if err != nil {
		return err
	}
	pool.Flags.Set(f, paused)
	if err := save(info, pool); err != nil {
		return err
	}
	ic.Logf("Pool %s flags now %s", info.Key, pool.Flags)
	emit(ic, PoolPauseChanged{Pool: info.Key, Flags: uint8(pool.Flags)})
	return nil
}

func (p *Program) pausePool(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	return p.setPoolPause(ic, accounts, raw.(*instruction.PausePool).PauseFlags, true)
}

func (p *Program) unpausePool(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	return p.setPoolPause(ic, accounts, raw.(*instruction.UnpausePool).UnpauseFlags, false)
}

func (p *Program) updatePoolFees(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	ix := raw.(*instruction.UpdatePoolFees)
	if ix.UpdateFlags == 0 || ix.UpdateFlags&^state.FeeUpdateAll != 0 {
		return errors.ErrInvalidFeeUpdateFlags.Withf("flags %d", ix.UpdateFlags)
	}
	updateLiquidity := ix.UpdateFlags&state.FeeUpdateLiquidity != 0
	updateSwap := ix.UpdateFlags&state.FeeUpdateSwap != 0
	if updateLiquidity && (ix.NewLiquidityFee < state.MinLiquidityFee || ix.NewLiquidityFee > state.MaxLiquidityFee) {
		return errors.ErrInvalidLiquidityFee.Withf("%d outside [%d, %d]", ix.NewLiquidityFee, state.MinLiquidityFee, state.MaxLiquidityFee)
	}
	if updateSwap && (ix.NewSwapFee < state.MinSwapFee || ix.NewSwapFee > state.MaxSwapFee) {
		return errors.ErrInvalidSwapFee.Withf("%d outside [%d, %d]", ix.NewSwapFee, state.MinSwapFee, state.MaxSwapFee)
	}
	info, pool, err := p.adminPool(accounts, false)
	if err != nil {
		return err
	}
	if updateLiquidity {
		pool.ContractLiquidityFee = ix.NewLiquidityFee
	}
	if updateSwap {
		pool.SwapContractFee = ix.NewSwapFee
	}
	if err := save(info, pool); err != nil {
		return err
	}
	ic.Logf("Pool %s fees: liquidity %d, swap %d", info.Key, pool.ContractLiquidityFee, pool.SwapContractFee)
	return nil
}

func (p *Program) setSwapOwnerOnly(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	ix := raw.(*instruction.SetSwapOwnerOnly)
	info, pool, err := p.adminPool(accounts, false)
	if err != nil {
		return err
	}
	pool.Flags.Set(state.FlagSwapForOwnersOnly, ix.Enable)
	if ix.Enable {
		pool.SwapOwner = ix.DesignatedOwner
	} else {
		pool.SwapOwner = pool.Owner
	}
	if err := save(info, pool); err != nil {
		return err
	}
	ic.Logf("Pool %s owner-only swaps %t (%s)", info.Key, ix.Enable, pool.SwapOwner)
	return nil
}

func (p *Program) setPoolLimits(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	ix := raw.(*instruction.SetPoolLimits)
	l := ix.Limits
	for _, r := range [][2]uint64{
		{l.MinSwapAmount, l.MaxSwapAmount},
		{l.MinDepositAmount, l.MaxDepositAmount},
		{l.MinWithdrawalAmount, l.MaxWithdrawalAmount},
	} {
		if r[1] != 0 && r[0] > r[1] {
			return errors.ErrInvalidArgument.Withf("minimum %d above maximum %d", r[0], r[1])
		}
	}
	info, pool, err := p.adminPool(accounts, false)
	if err != nil {
		return err
	}
	pool.Limits = ix.Limits
	if err := save(info, pool); err != nil {
		return err
	}
	ic.Logf("Pool %s limits updated", info.Key)
	return nil
}

func (p *Program) getPoolInfo(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, _ instruction.Instruction) error {
	if err := need(accounts, 1); err != nil {
		return err
	}
	pool, _, err := p.loadPool(accounts[0])
	if err != nil {
		return err
	}
	info := instruction.NewPoolInfo(pool)
	data, err := instruction.MarshalReturn(&info)
	if err != nil {
		return err
	}
	return ic.SetReturnData(data)
}

func (p *Program) getVersion(ic *ledger.InvokeContext, _ []*ledger.AccountInfo, _ instruction.Instruction) error {
	data, err := instruction.MarshalReturn(&instruction.VersionInfo{Version: Version})
	if err != nil {
		return err
	}
	return ic.SetReturnData(data)
}
