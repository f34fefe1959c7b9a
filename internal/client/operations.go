package client

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/instruction"
	"github.com/lugondev/fixed-ratio-trading/internal/pda"
	"github.com/lugondev/fixed-ratio-trading/internal/program"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
)

// InitializeProgram creates the system-state and treasury accounts.
func (c *Client) InitializeProgram(ctx context.Context, authority solana.PrivateKey) (*Result, error) {
	return c.Send(ctx, authority, nil, c.builder.InitializeProgram(authority.PublicKey()))
}

// CreatePool registers a pool for mint1:mint2 at ratio1:ratio2. The owner
// pays the registration fee.
func (c *Client) CreatePool(ctx context.Context, owner solana.PrivateKey, mint1, mint2 solana.PublicKey, ratio1, ratio2 uint64, flags state.PoolFlags) (*pda.PoolAddresses, *Result, error) {
	ix, addrs, err := c.builder.InitializePool(owner.PublicKey(), mint1, mint2, ratio1, ratio2, flags)
	if err != nil {
		return nil, nil, err
	}
	res, err := c.Send(ctx, owner, nil, ix)
	return addrs, res, err
}

func (c *Client) Deposit(ctx context.Context, user solana.PrivateKey, pool *pda.PoolAddresses, acc instruction.LiquidityAccounts, mint solana.PublicKey, amount uint64) (*Result, error) {
	acc.User = user.PublicKey()
	return c.Send(ctx, user, nil, c.builder.Deposit(pool, acc, mint, amount))
}

func (c *Client) Withdraw(ctx context.Context, user solana.PrivateKey, pool *pda.PoolAddresses, acc instruction.LiquidityAccounts, mint solana.PublicKey, lpAmount uint64) (*Result, error) {
	acc.User = user.PublicKey()
	return c.Send(ctx, user, nil, c.builder.Withdraw(pool, acc, mint, lpAmount))
}

// Swap trades amountIn of inputMint. A non-zero expectedOut makes the
// program reject any other output amount.
func (c *Client) Swap(ctx context.Context, user solana.PrivateKey, pool *pda.PoolAddresses, acc instruction.SwapAccounts, inputMint solana.PublicKey, amountIn, expectedOut uint64) (*Result, error) {
	acc.User = user.PublicKey()
	return c.Send(ctx, user, nil, c.builder.Swap(pool, acc, inputMint, amountIn, expectedOut))
}

// QuoteSwap prices a swap against the pool's current state without
// submitting anything.
func (c *Client) QuoteSwap(pool solana.PublicKey, inputMint solana.PublicKey, amountIn uint64) (program.SwapQuote, error) {
	p, err := c.Pool(pool)
	if err != nil {
		return program.SwapQuote{}, err
	}
	isA, ok := p.IsTokenA(inputMint)
	if !ok {
		return program.SwapQuote{}, errors.ErrInvalidTokenPair.Withf("%s is not traded by pool %s", inputMint, pool)
	}
	return program.Quote(p, isA, amountIn)
}

func (c *Client) PauseSystem(ctx context.Context, authority solana.PrivateKey, reason uint8) (*Result, error) {
	return c.Send(ctx, authority, nil, c.builder.PauseSystem(authority.PublicKey(), reason))
}

func (c *Client) UnpauseSystem(ctx context.Context, authority solana.PrivateKey) (*Result, error) {
	return c.Send(ctx, authority, nil, c.builder.UnpauseSystem(authority.PublicKey()))
}

// WithdrawTreasuryFees moves amount lamports, or everything available when
// amount is 0, from the treasury to destination.
func (c *Client) WithdrawTreasuryFees(ctx context.Context, authority solana.PrivateKey, destination solana.PublicKey, amount uint64) (*Result, error) {
	return c.Send(ctx, authority, nil, c.builder.WithdrawTreasuryFees(authority.PublicKey(), destination, amount))
}

func (c *Client) ConsolidatePoolFees(ctx context.Context, authority solana.PrivateKey, pools ...solana.PublicKey) (*Result, error) {
	return c.Send(ctx, authority, nil, c.builder.ConsolidatePoolFees(authority.PublicKey(), pools))
}

func (c *Client) PausePool(ctx context.Context, authority solana.PrivateKey, pool solana.PublicKey, flags uint8) (*Result, error) {
	return c.Send(ctx, authority, nil, c.builder.PausePool(authority.PublicKey(), pool, flags))
}

func (c *Client) UnpausePool(ctx context.Context, authority solana.PrivateKey, pool solana.PublicKey, flags uint8) (*Result, error) {
	return c.Send(ctx, authority, nil, c.builder.UnpausePool(authority.PublicKey(), pool, flags))
}

func (c *Client) UpdatePoolFees(ctx context.Context, authority solana.PrivateKey, pool solana.PublicKey, flags uint8, liquidityFee, swapFee uint64) (*Result, error) {
	return c.Send(ctx, authority, nil, c.builder.UpdatePoolFees(authority.PublicKey(), pool, flags, liquidityFee, swapFee))
}

func (c *Client) SetSwapOwnerOnly(ctx context.Context, authority solana.PrivateKey, pool solana.PublicKey, enable bool, owner solana.PublicKey) (*Result, error) {
	return c.Send(ctx, authority, nil, c.builder.SetSwapOwnerOnly(authority.PublicKey(), pool, enable, owner))
}

func (c *Client) SetPoolLimits(ctx context.Context, authority solana.PrivateKey, pool solana.PublicKey, limits state.VolumeLimits) (*Result, error) {
	return c.Send(ctx, authority, nil, c.builder.SetPoolLimits(authority.PublicKey(), pool, limits))
}

func (c *Client) AddDelegate(ctx context.Context, owner solana.PrivateKey, pool, delegate solana.PublicKey) (*Result, error) {
	return c.Send(ctx, owner, nil, c.builder.AddDelegate(owner.PublicKey(), pool, delegate))
}

func (c *Client) RemoveDelegate(ctx context.Context, owner solana.PrivateKey, pool, delegate solana.PublicKey) (*Result, error) {
	return c.Send(ctx, owner, nil, c.builder.RemoveDelegate(owner.PublicKey(), pool, delegate))
}

func (c *Client) SetDelegateWaitTime(ctx context.Context, owner solana.PrivateKey, pool, delegate solana.PublicKey, action state.ActionType, seconds uint64) (*Result, error) {
	return c.Send(ctx, owner, nil, c.builder.SetDelegateWaitTime(owner.PublicKey(), pool, delegate, action, seconds))
}

// RequestDelegateAction queues a time-locked action and returns its id,
// read from the DelegateActionRequested event.
func (c *Client) RequestDelegateAction(ctx context.Context, delegate solana.PrivateKey, pool solana.PublicKey, params state.ActionParams) (uint64, *Result, error) {
	res, err := c.Send(ctx, delegate, nil, c.builder.RequestDelegateAction(delegate.PublicKey(), pool, params))
	if err != nil {
		return 0, res, err
	}
	ev := res.Event("DelegateActionRequested")
	if ev == nil {
		return 0, res, fmt.Errorf("transaction %s emitted no DelegateActionRequested event", res.Signature)
	}
	requested, ok := ev.Data.(program.DelegateActionRequested)
	if !ok {
		return 0, res, fmt.Errorf("unexpected event payload %T", ev.Data)
	}
	return requested.ActionID, res, nil
}

// ExecuteDelegateAction runs a matured action. withdrawal is required for
// Withdrawal actions and ignored otherwise.
func (c *Client) ExecuteDelegateAction(ctx context.Context, executor solana.PrivateKey, pool solana.PublicKey, actionID uint64, withdrawal *instruction.WithdrawalAccounts) (*Result, error) {
	return c.Send(ctx, executor, nil, c.builder.ExecuteDelegateAction(executor.PublicKey(), pool, actionID, withdrawal))
}

func (c *Client) RevokeDelegateAction(ctx context.Context, signer solana.PrivateKey, pool solana.PublicKey, actionID uint64) (*Result, error) {
	return c.Send(ctx, signer, nil, c.builder.RevokeDelegateAction(signer.PublicKey(), pool, actionID))
}

// PoolInfo asks the program for a pool summary. payer funds the fee.
func (c *Client) PoolInfo(ctx context.Context, payer solana.PrivateKey, pool solana.PublicKey) (*instruction.PoolInfo, error) {
	info := new(instruction.PoolInfo)
	if err := c.view(ctx, payer, info, c.builder.GetPoolInfo(pool)); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) ConsolidationStatus(ctx context.Context, payer solana.PrivateKey, pools ...solana.PublicKey) (*instruction.ConsolidationStatus, error) {
	status := new(instruction.ConsolidationStatus)
	if err := c.view(ctx, payer, status, c.builder.GetConsolidationStatus(pools)); err != nil {
		return nil, err
	}
	return status, nil
}

func (c *Client) Version(ctx context.Context, payer solana.PrivateKey) (string, error) {
	v := new(instruction.VersionInfo)
	if err := c.view(ctx, payer, v, c.builder.GetVersion()); err != nil {
		return "", err
	}
	return v.Version, nil
}

// TreasuryInfo returns the treasury state as the program reports it.
func (c *Client) TreasuryInfo(ctx context.Context, payer solana.PrivateKey) (*state.MainTreasuryState, error) {
	res, err := c.Send(ctx, payer, nil, c.builder.GetTreasuryInfo())
	if err != nil {
		return nil, err
	}
	data, err := res.ReturnData(c.programID)
	if err != nil {
		return nil, err
	}
	return instruction.DecodeTreasuryInfo(data)
}
