package client

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/instruction"
	"github.com/lugondev/fixed-ratio-trading/internal/pda"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

type returnValue interface {
	MarshalWithEncoder(e *bin.Encoder) error
	UnmarshalWithDecoder(d *bin.Decoder) error
}

// view runs a read-only instruction and decodes its return data into v.
func (c *Client) view(ctx context.Context, payer solana.PrivateKey, v returnValue, ix types.Instruction) error {
	res, err := c.Send(ctx, payer, nil, ix)
	if err != nil {
		return err
	}
	data, err := res.ReturnData(c.programID)
	if err != nil {
		return err
	}
	return instruction.UnmarshalReturn(data, v)
}

func (c *Client) load(key solana.PublicKey, what string, v state.Account) error {
	acct, ok := c.bank.GetAccount(key)
	if !ok {
		return fmt.Errorf("%s %s not found", what, key)
	}
	if !acct.Owner.Equals(c.programID) {
		return fmt.Errorf("%s %s is owned by %s", what, key, acct.Owner)
	}
	return state.Decode(acct.Data, v)
}

// Pool reads a pool's state straight from the ledger.
func (c *Client) Pool(key solana.PublicKey) (*state.PoolState, error) {
	p := new(state.PoolState)
	if err := c.load(key, "pool", p); err != nil {
		return nil, err
	}
	return p, nil
}

// PoolAddresses rebuilds the address bundle of an existing pool.
func (c *Client) PoolAddresses(key solana.PublicKey) (*pda.PoolAddresses, error) {
	p, err := c.Pool(key)
	if err != nil {
		return nil, err
	}
	return pda.PoolFromState(c.programID, p)
}

// Pools returns every initialized pool the program owns, keyed by address.
func (c *Client) Pools() map[solana.PublicKey]*state.PoolState {
	out := make(map[solana.PublicKey]*state.PoolState)
	for _, ka := range c.bank.ProgramAccounts(c.programID) {
		if len(ka.Account.Data) != state.PoolStateLen {
			continue
		}
		p := new(state.PoolState)
		if err := state.Decode(ka.Account.Data, p); err != nil || !p.IsInitialized {
			continue
		}
		out[ka.Key] = p
	}
	return out
}

func (c *Client) Treasury() (*state.MainTreasuryState, error) {
	addr, err := pda.FindMainTreasury(c.programID)
	if err != nil {
		return nil, err
	}
	t := new(state.MainTreasuryState)
	if err := c.load(addr.Key, "treasury", t); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *Client) SystemState() (*state.SystemState, error) {
	addr, err := pda.FindSystemState(c.programID)
	if err != nil {
		return nil, err
	}
	s := new(state.SystemState)
	if err := c.load(addr.Key, "system state", s); err != nil {
		return nil, err
	}
	return s, nil
}

// PauseStatus is the pause state seen by a pool's callers.
type PauseStatus struct {
	LiquidityPaused bool
	SwapsPaused     bool
	SystemPaused    bool
}

// PoolPauseStatus combines a pool's pause flags with the system pause.
func (c *Client) PoolPauseStatus(key solana.PublicKey) (*PauseStatus, error) {
	p, err := c.Pool(key)
	if err != nil {
		return nil, err
	}
	sys, err := c.SystemState()
	if err != nil {
		return nil, err
	}
	return &PauseStatus{
		LiquidityPaused: p.LiquidityPaused(),
		SwapsPaused:     p.SwapsPaused(),
		SystemPaused:    sys.IsPaused,
	}, nil
}

type LiquidityInfo struct {
	TokenAMint      solana.PublicKey
	TokenBMint      solana.PublicKey
	TokenALiquidity uint64
	TokenBLiquidity uint64
}

func (c *Client) LiquidityInfo(key solana.PublicKey) (*LiquidityInfo, error) {
	p, err := c.Pool(key)
	if err != nil {
		return nil, err
	}
	return &LiquidityInfo{
		TokenAMint:      p.TokenAMint,
		TokenBMint:      p.TokenBMint,
		TokenALiquidity: p.TotalTokenALiquidity,
		TokenBLiquidity: p.TotalTokenBLiquidity,
	}, nil
}

// FeeInfo lists a pool's fee rates and the fees it holds.
type FeeInfo struct {
	ContractLiquidityFee uint64
	SwapContractFee      uint64
	SwapFeeBasisPoints   uint64
	CollectedFeesTokenA  uint64
	CollectedFeesTokenB  uint64
	PendingSolFees       uint64
}

func (c *Client) FeeInfo(key solana.PublicKey) (*FeeInfo, error) {
	p, err := c.Pool(key)
	if err != nil {
		return nil, err
	}
	return &FeeInfo{
		ContractLiquidityFee: p.ContractLiquidityFee,
		SwapContractFee:      p.SwapContractFee,
		SwapFeeBasisPoints:   p.SwapFeeBasisPoints,
		CollectedFeesTokenA:  p.CollectedFeesTokenA,
		CollectedFeesTokenB:  p.CollectedFeesTokenB,
		PendingSolFees:       p.PendingSolFees(),
	}, nil
}

// SolBalance is the lamport balance of a pool-state account.
type SolBalance struct {
	Lamports       uint64
	RentExempt     uint64
	PendingSolFees uint64
}

func (c *Client) PoolSolBalance(key solana.PublicKey) (*SolBalance, error) {
	p, err := c.Pool(key)
	if err != nil {
		return nil, err
	}
	acct, ok := c.bank.GetAccount(key)
	if !ok {
		return nil, fmt.Errorf("pool %s not found", key)
	}
	return &SolBalance{
		Lamports:       acct.Lamports,
		RentExempt:     c.bank.Rent().MinimumBalance(len(acct.Data)),
		PendingSolFees: p.PendingSolFees(),
	}, nil
}

// TokenVaultPDAs returns the token A and token B vault addresses of a pool.
func (c *Client) TokenVaultPDAs(key solana.PublicKey) (pda.Address, pda.Address, error) {
	addrs, err := c.PoolAddresses(key)
	if err != nil {
		return pda.Address{}, pda.Address{}, err
	}
	return addrs.TokenAVault, addrs.TokenBVault, nil
}
