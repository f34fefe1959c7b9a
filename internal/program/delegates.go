package program

import (
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/instruction"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/pda"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
	"github.com/lugondev/fixed-ratio-trading/internal/token"
)

// poolSigner loads the pool behind the 0 signer, 1 system state, 2 pool
// account list and requires an active system.
func (p *Program) poolSigner(accounts []*ledger.AccountInfo) (*ledger.AccountInfo, *state.PoolState, *pda.PoolAddresses, error) {
	if err := need(accounts, 3); err != nil {
		return nil, nil, nil, err
	}
	if err := requireSigner(accounts[0]); err != nil {
		return nil, nil, nil, err
	}
	if err := p.requireSystemActive(accounts[1]); err != nil {
		return nil, nil, nil, err
	}
	pool, addrs, err := p.loadPool(accounts[2])
	if err != nil {
		return nil, nil, nil, err
	}
	return accounts[2], pool, addrs, nil
}

func requireOwner(signer *ledger.AccountInfo, pool *state.PoolState) error {
	if !signer.Key.Equals(pool.Owner) {
		return errors.ErrUnauthorized.Withf("%s is not the pool owner", signer.Key)
	}
	return nil
}

func (p *Program) addDelegate(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	ix := raw.(*instruction.AddDelegate)
	info, pool, _, err := p.poolSigner(accounts)
	if err != nil {
		return err
	}
	if err := requireOwner(accounts[0], pool); err != nil {
		return err
	}
	if err := pool.Delegates.Add(ix.Delegate); err != nil {
		return err
	}
	if err := save(info, pool); err != nil {
		return err
	}
	ic.Logf("Delegate %s added to %s", ix.Delegate, info.Key)
	return nil
}

func (p *Program) removeDelegate(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	ix := raw.(*instruction.RemoveDelegate)
	info, pool, _, err := p.poolSigner(accounts)
	if err != nil {
		return err
	}
	if err := requireOwner(accounts[0], pool); err != nil {
		return err
	}
	if err := pool.Delegates.Remove(ix.Delegate); err != nil {
		return err
	}
	if err := save(info, pool); err != nil {
		return err
	}
	ic.Logf("Delegate %s removed from %s", ix.Delegate, info.Key)
	return nil
}

func (p *Program) setDelegateWaitTime(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	ix := raw.(*instruction.SetDelegateWaitTime)
	info, pool, _, err := p.poolSigner(accounts)
	if err != nil {
		return err
	}
	if err := requireOwner(accounts[0], pool); err != nil {
		return err
	}
	if err := pool.Delegates.SetWaitTime(ix.Delegate, ix.ActionType, ix.WaitTime); err != nil {
		return err
	}
	if err := save(info, pool); err != nil {
		return err
	}
	ic.Logf("Delegate %s waits %ds for %s", ix.Delegate, ix.WaitTime, ix.ActionType)
	return nil
}

func (p *Program) requestDelegateAction(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	ix := raw.(*instruction.RequestDelegateAction)
	info, pool, _, err := p.poolSigner(accounts)
	if err != nil {
		return err
	}
	if w, ok := ix.Params.(state.WithdrawalParams); ok {
		if _, ok := pool.IsTokenA(w.TokenMint); !ok {
			return errors.ErrInvalidActionParameters.Withf("mint %s is not part of pool %s", w.TokenMint, info.Key)
		}
	}
	action, err := pool.Delegates.Request(accounts[0].Key, ix.Params, ic.Clock().UnixTimestamp)
	if err != nil {
		return err
	}
	if err := save(info, pool); err != nil {
		return err
	}
	ic.Logf("Delegate action %d (%s) executable at %d", action.ActionID, action.Params.Type(), action.ExecutionTimestamp)
	emit(ic, DelegateActionRequested{
		Pool:               info.Key,
		Delegate:           action.Delegate,
		ActionID:           action.ActionID,
		ActionType:         uint8(action.Params.Type()),
		ExecutionTimestamp: action.ExecutionTimestamp,
	})
	return nil
}

func (p *Program) executeDelegateAction(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	ix := raw.(*instruction.ExecuteDelegateAction)
	info, pool, addrs, err := p.poolSigner(accounts)
	if err != nil {
		return err
	}
	// Any signer may execute a matured action. Withdrawals still pay out to
	// the requesting delegate.
	executor := accounts[0]
	pending, ok := pool.Delegates.Find(ix.ActionID)
	if !ok {
		return errors.ErrActionNotFound.Withf("action %d", ix.ActionID)
	}
	now := ic.Clock().UnixTimestamp
	if !pending.Executable(now) {
		return errors.ErrActionNotReady.Withf("action %d executable at %d, now %d", ix.ActionID, pending.ExecutionTimestamp, now)
	}
	action, err := pool.Delegates.Take(ix.ActionID)
	if err != nil {
		return err
	}

	switch params := action.Params.(type) {
	case state.FeeChangeParams:
		pool.SwapFeeBasisPoints = params.NewFeeBasisPoints
	case state.WithdrawalParams:
		if err := p.withdrawTokenFees(ic, accounts, pool, addrs, action.Delegate, params); err != nil {
			return err
		}
	case state.PausePoolSwapsParams:
		pool.Flags.Set(state.FlagSwapsPaused, true)
	case state.UnpausePoolSwapsParams:
		pool.Flags.Set(state.FlagSwapsPaused, false)
	default:
		return errors.ErrInvalidActionType.Withf("action %d", ix.ActionID)
	}

	if err := save(info, pool); err != nil {
		return err
	}
	ic.Logf("Delegate action %d (%s) executed by %s", action.ActionID, action.Params.Type(), executor.Key)
	emit(ic, DelegateActionExecuted{
		Pool:       info.Key,
		Executor:   executor.Key,
		ActionID:   action.ActionID,
		ActionType: uint8(action.Params.Type()),
	})
	return nil
}

// withdrawTokenFees pays collected token fees out of a vault to a token
// account of the delegate that requested the withdrawal.
func (p *Program) withdrawTokenFees(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, pool *state.PoolState, addrs *pda.PoolAddresses, delegate solana.PublicKey, params state.WithdrawalParams) error {
	if err := need(accounts, 6); err != nil {
		return err
	}
	vault, destination := accounts[4], accounts[5]
	tokenA, ok := pool.IsTokenA(params.TokenMint)
	if !ok {
		return errors.ErrInvalidActionParameters.Withf("mint %s is not part of the pool", params.TokenMint)
	}
	if err := pda.Verify("vault", addrs.Vault(tokenA).Key, vault.Key); err != nil {
		return err
	}
	if _, err := tokenAccount(destination, params.TokenMint, &delegate); err != nil {
		return err
	}
	if err := pool.WithdrawCollectedTokenFee(tokenA, params.Amount); err != nil {
		return err
	}
	out := token.Transfer(vault.Key, destination.Key, addrs.PoolState.Key, params.Amount)
	return ic.InvokeSigned(out, addrs.PoolSignerSeeds())
}

func (p *Program) revokeDelegateAction(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, raw instruction.Instruction) error {
	ix := raw.(*instruction.RevokeDelegateAction)
	if err := need(accounts, 2); err != nil {
		return err
	}
	signer, info := accounts[0], accounts[1]
	if err := requireSigner(signer); err != nil {
		return err
	}
	pool, _, err := p.loadPool(info)
	if err != nil {
		return err
	}
	pending, ok := pool.Delegates.Find(ix.ActionID)
	if !ok {
		return errors.ErrActionNotFound.Withf("action %d", ix.ActionID)
	}
	if !signer.Key.Equals(pool.Owner) && !signer.Key.Equals(pending.Delegate) {
		return errors.ErrUnauthorized.Withf("%s may not revoke action %d", signer.Key, ix.ActionID)
	}
	if _, err := pool.Delegates.Take(ix.ActionID); err != nil {
		return err
	}
	if err := save(info, pool); err != nil {
		return err
	}
	ic.Logf("Delegate action %d revoked by %s", ix.ActionID, signer.Key)
	emit(ic, DelegateActionRevoked{Pool: info.Key, Revoker: signer.Key, ActionID: ix.ActionID})
	return nil
}
