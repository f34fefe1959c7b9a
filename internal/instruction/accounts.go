package instruction

import (
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/pda"
	"github.com/lugondev/fixed-ratio-trading/internal/state"
	"github.com/lugondev/fixed-ratio-trading/internal/token"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

// Builder assembles instructions with the account list each variant expects.
// The singleton addresses are derived once.
type Builder struct {
	ProgramID   solana.PublicKey
	SystemState solana.PublicKey
	Treasury    solana.PublicKey
	ProgramData solana.PublicKey
}

// NewBuilder derives the singleton addresses of programID.
func NewBuilder(programID solana.PublicKey) (*Builder, error) {
	systemState, err := pda.FindSystemState(programID)
	if err != nil {
		return nil, err
	}
	treasury, err := pda.FindMainTreasury(programID)
	if err != nil {
		return nil, err
	}
	programData, err := pda.FindProgramData(programID)
	if err != nil {
		return nil, err
	}
	return &Builder{
		ProgramID:   programID,
		SystemState: systemState.Key,
		Treasury:    treasury.Key,
		ProgramData: programData.Key,
	}, nil
}

func (b *Builder) build(ix Instruction, metas ...types.AccountMeta) types.Instruction {
	return types.Instruction{
		ProgramID: b.ProgramID,
		Accounts:  metas,
		Data:      MustEncode(ix),
	}
}

// InitializeProgram accounts:
//
//	0 authority (w, s)   1 system program   2 system state (w)
//	3 treasury (w)       4 program data
func (b *Builder) InitializeProgram(authority solana.PublicKey) types.Instruction {
	return b.build(&InitializeProgram{},
		types.WritableSigner(authority),
		types.Readonly(solana.SystemProgramID),
		types.Writable(b.SystemState),
		types.Writable(b.Treasury),
		types.Readonly(b.ProgramData),
	)
}

// InitializePool accounts:
//
//	0 user (w, s)      1 system program   2 system state   3 pool state (w)
//	4 token program    5 treasury (w)     6 mint 1         7 mint 2
//	8 vault A (w)      9 vault B (w)      10 LP A mint (w) 11 LP B mint (w)
//
// ratio1 belongs to mint1 and ratio2 to mint2. The returned addresses are the
// normalized pool identity.
func (b *Builder) InitializePool(user, mint1, mint2 solana.PublicKey, ratio1, ratio2 uint64, flags state.PoolFlags) (types.Instruction, *pda.PoolAddresses, error) {
	pool, err := pda.DerivePool(b.ProgramID, mint1, mint2, ratio1, ratio2)
	if err != nil {
		return types.Instruction{}, nil, err
	}
	ix := b.build(&InitializePool{RatioANumerator: ratio1, RatioBDenominator: ratio2, Flags: flags},
		types.WritableSigner(user),
		types.Readonly(solana.SystemProgramID),
		types.Readonly(b.SystemState),
		types.Writable(pool.PoolState.Key),
		types.Readonly(token.ProgramID),
		types.Writable(b.Treasury),
		types.Readonly(mint1),
		types.Readonly(mint2),
		types.Writable(pool.TokenAVault.Key),
		types.Writable(pool.TokenBVault.Key),
		types.Writable(pool.LpTokenAMint.Key),
		types.Writable(pool.LpTokenBMint.Key),
	)
	return ix, pool, nil
}

// LiquidityAccounts are the user-side accounts of a deposit or withdrawal.
type LiquidityAccounts struct {
	User         solana.PublicKey
	TokenAccount solana.PublicKey
	LpAccount    solana.PublicKey
}

func (b *Builder) liquidity(ix Instruction, pool *pda.PoolAddresses, acc LiquidityAccounts) types.Instruction {
	return b.build(ix,
		types.WritableSigner(acc.User),
		types.Readonly(solana.SystemProgramID),
		types.Readonly(b.SystemState),
		types.Writable(pool.PoolState.Key),
		types.Readonly(token.ProgramID),
		types.Writable(pool.TokenAVault.Key),
		types.Writable(pool.TokenBVault.Key),
		types.Writable(acc.TokenAccount),
		types.Writable(acc.LpAccount),
		types.Writable(pool.LpTokenAMint.Key),
		types.Writable(pool.LpTokenBMint.Key),
	)
}

// Deposit accounts:
//
//	0 user (w, s)        1 system program        2 system state     3 pool state (w)
//	4 token program      5 vault A (w)           6 vault B (w)      7 user token account (w)
//	8 user LP account (w) 9 LP A mint (w)        10 LP B mint (w)
func (b *Builder) Deposit(pool *pda.PoolAddresses, acc LiquidityAccounts, mint solana.PublicKey, amount uint64) types.Instruction {
	return b.liquidity(&Deposit{DepositTokenMint: mint, Amount: amount}, pool, acc)
}

// Withdraw takes the same accounts as Deposit.
func (b *Builder) Withdraw(pool *pda.PoolAddresses, acc LiquidityAccounts, mint solana.PublicKey, lpAmount uint64) types.Instruction {
	return b.liquidity(&Withdraw{WithdrawTokenMint: mint, LpAmountToBurn: lpAmount}, pool, acc)
}

// SwapAccounts are the trader-side accounts of a swap.
type SwapAccounts struct {
	User          solana.PublicKey
	InputAccount  solana.PublicKey
	OutputAccount solana.PublicKey
}

// Swap accounts:
//
//	0 user (w, s)     1 system program   2 system state    3 pool state (w)
//	4 token program   5 vault A (w)      6 vault B (w)     7 user input account (w)
//	8 user output account (w)
func (b *Builder) Swap(pool *pda.PoolAddresses, acc SwapAccounts, inputMint solana.PublicKey, amountIn, expectedOut uint64) types.Instruction {
	return b.build(&Swap{InputTokenMint: inputMint, AmountIn: amountIn, ExpectedAmountOut: expectedOut},
		types.WritableSigner(acc.User),
		types.Readonly(solana.SystemProgramID),
		types.Readonly(b.SystemState),
		types.Writable(pool.PoolState.Key),
		types.Readonly(token.ProgramID),
		types.Writable(pool.TokenAVault.Key),
		types.Writable(pool.TokenBVault.Key),
		types.Writable(acc.InputAccount),
		types.Writable(acc.OutputAccount),
	)
}

// PauseSystem accounts: 0 authority (s), 1 system state (w), 2 program data.
func (b *Builder) PauseSystem(authority solana.PublicKey, reason uint8) types.Instruction {
	return b.build(&PauseSystem{ReasonCode: reason},
		types.ReadonlySigner(authority),
		types.Writable(b.SystemState),
		types.Readonly(b.ProgramData),
	)
}

// UnpauseSystem takes the same accounts as PauseSystem.
func (b *Builder) UnpauseSystem(authority solana.PublicKey) types.Instruction {
	return b.build(&UnpauseSystem{},
		types.ReadonlySigner(authority),
		types.Writable(b.SystemState),
		types.Readonly(b.ProgramData),
	)
}

// WithdrawTreasuryFees accounts:
//
//	0 authority (s)   1 treasury (w)   2 destination (w)   3 program data
func (b *Builder) WithdrawTreasuryFees(authority, destination solana.PublicKey, amount uint64) types.Instruction {
	return b.build(&WithdrawTreasuryFees{Amount: amount},
		types.ReadonlySigner(authority),
		types.Writable(b.Treasury),
		types.Writable(destination),
		types.Readonly(b.ProgramData),
	)
}

// GetTreasuryInfo accounts: 0 treasury.
func (b *Builder) GetTreasuryInfo() types.Instruction {
	return b.build(&GetTreasuryInfo{}, types.Readonly(b.Treasury))
}

// ConsolidatePoolFees accounts:
//
//	0 authority (s)   1 system state   2 treasury (w)   3 program data
//	4.. pool states (w), one per pool
func (b *Builder) ConsolidatePoolFees(authority solana.PublicKey, pools []solana.PublicKey) types.Instruction {
	metas := []types.AccountMeta{
		types.ReadonlySigner(authority),
		types.Readonly(b.SystemState),
		types.Writable(b.Treasury),
		types.Readonly(b.ProgramData),
	}
	for _, p := range pools {
		metas = append(metas, types.Writable(p))
	}
	return b.build(&ConsolidatePoolFees{PoolCount: uint8(len(pools))}, metas...)
}

// GetConsolidationStatus accounts: 0 system state, 1.. pool states.
func (b *Builder) GetConsolidationStatus(pools []solana.PublicKey) types.Instruction {
	metas := []types.AccountMeta{types.Readonly(b.SystemState)}
	for _, p := range pools {
		metas = append(metas, types.Readonly(p))
	}
	return b.build(&GetConsolidationStatus{PoolCount: uint8(len(pools))}, metas...)
}

// admin accounts: 0 authority (s), 1 system state, 2 pool state (w), 3 program data.
func (b *Builder) admin(ix Instruction, authority, pool solana.PublicKey) types.Instruction {
	return b.build(ix,
		types.ReadonlySigner(authority),
		types.Readonly(b.SystemState),
		types.Writable(pool),
		types.Readonly(b.ProgramData),
	)
}

func (b *Builder) PausePool(authority, pool solana.PublicKey, flags uint8) types.Instruction {
	return b.admin(&PausePool{PauseFlags: flags}, authority, pool)
}

func (b *Builder) UnpausePool(authority, pool solana.PublicKey, flags uint8) types.Instruction {
	return b.admin(&UnpausePool{UnpauseFlags: flags}, authority, pool)
}

func (b *Builder) UpdatePoolFees(authority, pool solana.PublicKey, flags uint8, liquidityFee, swapFee uint64) types.Instruction {
	return b.admin(&UpdatePoolFees{UpdateFlags: flags, NewLiquidityFee: liquidityFee, NewSwapFee: swapFee}, authority, pool)
}

func (b *Builder) SetSwapOwnerOnly(authority, pool solana.PublicKey, enable bool, owner solana.PublicKey) types.Instruction {
	return b.admin(&SetSwapOwnerOnly{Enable: enable, DesignatedOwner: owner}, authority, pool)
}

func (b *Builder) SetPoolLimits(authority, pool solana.PublicKey, limits state.VolumeLimits) types.Instruction {
	return b.admin(&SetPoolLimits{Limits: limits}, authority, pool)
}

// owner-gated accounts: 0 signer (s), 1 system state, 2 pool state (w).
func (b *Builder) poolSigner(ix Instruction, signer, pool solana.PublicKey) types.Instruction {
	return b.build(ix,
		types.ReadonlySigner(signer),
		types.Readonly(b.SystemState),
		types.Writable(pool),
	)
}

func (b *Builder) AddDelegate(owner, pool, delegate solana.PublicKey) types.Instruction {
	return b.poolSigner(&AddDelegate{Delegate: delegate}, owner, pool)
}

func (b *Builder) RemoveDelegate(owner, pool, delegate solana.PublicKey) types.Instruction {
	return b.poolSigner(&RemoveDelegate{Delegate: delegate}, owner, pool)
}

func (b *Builder) SetDelegateWaitTime(owner, pool, delegate solana.PublicKey, action state.ActionType, seconds uint64) types.Instruction {
	return b.poolSigner(&SetDelegateWaitTime{Delegate: delegate, ActionType: action, WaitTime: seconds}, owner, pool)
}

func (b *Builder) RequestDelegateAction(delegate, pool solana.PublicKey, params state.ActionParams) types.Instruction {
	return b.poolSigner(&RequestDelegateAction{Params: params}, delegate, pool)
}

// WithdrawalAccounts are the extra accounts an executed Withdrawal action moves
// tokens through. Destination must be a token account owned by the delegate
// that requested the action.
type WithdrawalAccounts struct {
	Vault       solana.PublicKey
	Destination solana.PublicKey
}

// ExecuteDelegateAction accounts:
//
//	0 executor (s)   1 system state   2 pool state (w)
//
// and, for a Withdrawal action, 3 token program, 4 vault (w), 5 destination (w).
func (b *Builder) ExecuteDelegateAction(executor, pool solana.PublicKey, actionID uint64, withdrawal *WithdrawalAccounts) types.Instruction {
	ix := b.poolSigner(&ExecuteDelegateAction{ActionID: actionID}, executor, pool)
	if withdrawal != nil {
		ix.Accounts = append(ix.Accounts,
			types.Readonly(token.ProgramID),
			types.Writable(withdrawal.Vault),
			types.Writable(withdrawal.Destination),
		)
	}
	return ix
}

// RevokeDelegateAction accounts: 0 signer (s), 1 pool state (w).
func (b *Builder) RevokeDelegateAction(signer, pool solana.PublicKey, actionID uint64) types.Instruction {
	return b.build(&RevokeDelegateAction{ActionID: actionID},
		types.ReadonlySigner(signer),
		types.Writable(pool),
	)
}

// GetPoolInfo accounts: 0 pool state.
func (b *Builder) GetPoolInfo(pool solana.PublicKey) types.Instruction {
	return b.build(&GetPoolInfo{}, types.Readonly(pool))
}

// GetVersion takes no accounts.
func (b *Builder) GetVersion() types.Instruction {
	return b.build(&GetVersion{})
}
