// Package program implements the fixed-ratio trading program: pool creation,
// 1:1 liquidity, fixed-ratio swaps, the delegate time-lock, pausing, fee
// consolidation and the protocol treasury. It runs on the host ledger as a
// deployed ledger.Program.
package program

import (
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/common"
	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/instruction"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/internal/metrics"
	"github.com/lugondev/fixed-ratio-trading/internal/pda"
)

// Version is reported by GetVersion.
const Version = "0.9.1"

// DefaultProgramID is the address the program is deployed at unless
// configured otherwise.
var DefaultProgramID = solana.MustPublicKeyFromBase58("5JP3Asnf5W9GaJknbLGCE3KtA4ABb3HY6S4Tinph7xQX")

// Program is the fixed-ratio trading program.
type Program struct {
	common.LoggerMixin

	id          solana.PublicKey
	systemState pda.Address
	treasury    pda.Address
	programData solana.PublicKey
	metrics     *metrics.Collection
}

// Option configures a Program.
type Option func(*Program)

// WithMetrics sets the metrics collection. Without it the program reports to
// a collection with no backends.
func WithMetrics(m *metrics.Collection) Option {
	return func(p *Program) { p.metrics = m }
}

// New creates the program for programID and derives its singleton addresses.
func New(programID solana.PublicKey, opts ...Option) (*Program, error) {
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
	p := &Program{
		LoggerMixin: common.NewLoggerMixin(),
		id:          programID,
		systemState: systemState,
		treasury:    treasury,
		programData: programData.Key,
		metrics:     metrics.NewCollection(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ID returns the program id.
func (p *Program) ID() solana.PublicKey { return p.id }

// Deploy installs the program on bank with the given upgrade authority.
func (p *Program) Deploy(bank *ledger.Bank, upgradeAuthority solana.PublicKey) error {
	return bank.Deploy(p.id, p, &upgradeAuthority)
}

type handler func(p *Program, ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, ix instruction.Instruction) error

var handlers = map[instruction.Tag]handler{
	instruction.TagInitializeProgram:      (*Program).initializeProgram,
	instruction.TagInitializePool:         (*Program).initializePool,
	instruction.TagDeposit:                (*Program).deposit,
	instruction.TagWithdraw:               (*Program).withdraw,
	instruction.TagSwap:                   (*Program).swap,
	instruction.TagPauseSystem:            (*Program).pauseSystem,
	instruction.TagUnpauseSystem:          (*Program).unpauseSystem,
	instruction.TagWithdrawTreasuryFees:   (*Program).withdrawTreasuryFees,
	instruction.TagGetTreasuryInfo:        (*Program).getTreasuryInfo,
	instruction.TagConsolidatePoolFees:    (*Program).consolidatePoolFees,
	instruction.TagGetConsolidationStatus: (*Program).getConsolidationStatus,
	instruction.TagPausePool:              (*Program).pausePool,
	instruction.TagUnpausePool:            (*Program).unpausePool,
	instruction.TagUpdatePoolFees:         (*Program).updatePoolFees,
	instruction.TagSetSwapOwnerOnly:       (*Program).setSwapOwnerOnly,
	instruction.TagAddDelegate:            (*Program).addDelegate,
	instruction.TagRemoveDelegate:         (*Program).removeDelegate,
	instruction.TagSetDelegateWaitTime:    (*Program).setDelegateWaitTime,
	instruction.TagRequestDelegateAction:  (*Program).requestDelegateAction,
	instruction.TagExecuteDelegateAction:  (*Program).executeDelegateAction,
	instruction.TagRevokeDelegateAction:   (*Program).revokeDelegateAction,
	instruction.TagGetPoolInfo:            (*Program).getPoolInfo,
	instruction.TagGetVersion:             (*Program).getVersion,
	instruction.TagSetPoolLimits:          (*Program).setPoolLimits,
}

// Process implements ledger.Program.
func (p *Program) Process(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	if !ic.ProgramID().Equals(p.id) {
		return errors.ErrIncorrectProgramID.Withf("program %s invoked as %s", p.id, ic.ProgramID())
	}
	ix, err := instruction.Decode(data)
	if err != nil {
		return err
	}
	name := ix.Tag().String()
	h, ok := handlers[ix.Tag()]
	if !ok {
		return errors.ErrInvalidInstructionData.Withf("no handler for %s", name)
	}

	ctx := ic.Context()
	if err := h(p, ic, accounts, ix); err != nil {
		metrics.LogError(p.GetLogger(), metrics.MetricInstructionsFailed, p.metrics.IncrementCounter(ctx, metrics.MetricInstructionsFailed, 1))
		p.GetLogger().Debug("instruction failed", "instruction", name, "error", errors.LogString(err))
		return err
	}
	metrics.LogError(p.GetLogger(), metrics.InstructionCounter(name), p.metrics.IncrementCounter(ctx, metrics.InstructionCounter(name), 1))
	return nil
}
