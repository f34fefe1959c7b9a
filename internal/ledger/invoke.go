package ledger

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

// Program processes instructions addressed to it.
type Program interface {
	Process(ic *InvokeContext, accounts []*AccountInfo, data []byte) error
}

// ProgramFunc adapts a function to the Program interface.
type ProgramFunc func(ic *InvokeContext, accounts []*AccountInfo, data []byte) error

// Process implements Program.
func (f ProgramFunc) Process(ic *InvokeContext, accounts []*AccountInfo, data []byte) error {
	return f(ic, accounts, data)
}

// Runtime limits and compute costs.
const (
	MaxInvokeDepth     = 5
	MaxLogBytes        = 10_000
	MaxReturnDataLen   = 1024
	InvokeUnits        = 1_000
	LogUnits           = 100
	CreateAddressUnits = 1_500
)

// execution is the state shared by every frame of one transaction.
type execution struct {
	ctx    context.Context
	bank   *Bank
	ws     *workingSet
	clock  Clock
	rent   Rent
	limit  uint64
	used   uint64
	logs   []string
	logLen int
	capped bool

	returnData *types.TransactionReturnData
	inner      []types.InnerInstruction
}

func (e *execution) log(line string) {
	if e.capped {
		return
	}
	if e.logLen+len(line) > MaxLogBytes {
		e.logs = append(e.logs, "Log truncated")
		e.capped = true
		return
	}
	e.logLen += len(line)
	e.logs = append(e.logs, line)
}

func (e *execution) consume(units uint64) error {
	if e.limit-e.used < units {
		e.used = e.limit
		return errors.ErrComputeBudgetExceeded
	}
	e.used += units
	return nil
}

// InvokeContext is handed to a program for one invocation.
type InvokeContext struct {
	exec      *execution
	programID solana.PublicKey
	accounts  []*AccountInfo
	depth     int
}

// Context returns the context of the transaction being processed.
func (c *InvokeContext) Context() context.Context { return c.exec.ctx }

// ProgramID is the id of the running program.
func (c *InvokeContext) ProgramID() solana.PublicKey { return c.programID }

// Clock returns the ledger clock at the start of the transaction.
func (c *InvokeContext) Clock() Clock { return c.exec.clock }

// Rent returns the rent schedule.
func (c *InvokeContext) Rent() Rent { return c.exec.rent }

// StackHeight is 1 for a top-level instruction and grows with each nested call.
func (c *InvokeContext) StackHeight() int { return c.depth }

// Logf writes a "Program log:" line.
func (c *InvokeContext) Logf(format string, args ...any) {
	if c.exec.consume(LogUnits) != nil {
		return
	}
	c.exec.log("Program log: " + fmt.Sprintf(format, args...))
}

// LogData writes a "Program data:" line with every field base64 encoded.
func (c *InvokeContext) LogData(fields ...[]byte) {
	if c.exec.consume(LogUnits) != nil {
		return
	}
	enc := make([]string, len(fields))
	for i, f := range fields {
		enc[i] = base64.StdEncoding.EncodeToString(f)
	}
	c.exec.log("Program data: " + strings.Join(enc, " "))
}

// SetReturnData publishes data as the transaction's return data.
func (c *InvokeContext) SetReturnData(data []byte) error {
	if len(data) > MaxReturnDataLen {
		return errors.ErrInvalidArgument.Withf("return data of %d bytes exceeds %d", len(data), MaxReturnDataLen)
	}
	c.exec.returnData = &types.TransactionReturnData{
		ProgramID: c.programID,
		Data:      append([]byte(nil), data...),
	}
	c.exec.log(fmt.Sprintf("Program return: %s %s", c.programID, base64.StdEncoding.EncodeToString(data)))
	return nil
}

// ReturnData returns the most recently set return data, if any.
func (c *InvokeContext) ReturnData() (solana.PublicKey, []byte) {
	if c.exec.returnData == nil {
		return solana.PublicKey{}, nil
	}
	return c.exec.returnData.ProgramID, c.exec.returnData.Data
}

// Consume charges compute units to the transaction.
func (c *InvokeContext) Consume(units uint64) error { return c.exec.consume(units) }

// RemainingUnits returns the compute units left in the transaction budget.
func (c *InvokeContext) RemainingUnits() uint64 { return c.exec.limit - c.exec.used }

// Invoke calls another program with the caller's privileges.
func (c *InvokeContext) Invoke(ix types.Instruction) error {
	return c.InvokeSigned(ix)
}

// InvokeSigned calls another program. Each seed set is a program-derived
// address of the caller that is treated as a signer for the call.
func (c *InvokeContext) InvokeSigned(ix types.Instruction, signerSeeds ...[][]byte) error {
	if c.depth+1 > MaxInvokeDepth {
		return errors.ErrCallDepth
	}

	pdaSigners := make(map[solana.PublicKey]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		if err := c.exec.consume(CreateAddressUnits); err != nil {
			return err
		}
		key, err := solana.CreateProgramAddress(seeds, c.programID)
		if err != nil {
			return errors.ErrInvalidSeeds.WithCause(err)
		}
		pdaSigners[key] = true
	}

	callerSigner := make(map[solana.PublicKey]bool)
	callerWritable := make(map[solana.PublicKey]bool)
	for _, a := range c.accounts {
		if a.IsSigner {
			callerSigner[a.Key] = true
		}
		if a.IsWritable {
			callerWritable[a.Key] = true
		}
	}
	for _, m := range ix.Accounts {
		if m.IsSigner && !callerSigner[m.Pubkey] && !pdaSigners[m.Pubkey] {
			return errors.ErrPrivilegeEscalation.Withf("signer privilege escalated for %s", m.Pubkey)
		}
		if m.IsWritable && !callerWritable[m.Pubkey] {
			return errors.ErrPrivilegeEscalation.Withf("writable privilege escalated for %s", m.Pubkey)
		}
	}

	c.exec.inner = append(c.exec.inner, types.InnerInstruction{
		Instruction: ix,
		StackHeight: uint32(c.depth + 1),
	})
	return c.exec.invoke(ix, c.depth+1)
}

// invoke runs ix at the given stack height, writing the invoke/result log lines.
func (e *execution) invoke(ix types.Instruction, depth int) error {
	program, builtin, ok := e.bank.program(ix.ProgramID)
	if !ok {
		return errors.ErrUnsupportedProgramID.Withf("program %s is not deployed", ix.ProgramID)
	}
	accounts := make([]*AccountInfo, len(ix.Accounts))
	for i, m := range ix.Accounts {
		acct, ok := e.ws.accounts[m.Pubkey]
		if !ok {
			return errors.ErrMissingAccount.Withf("account %s is not part of the transaction", m.Pubkey)
		}
		accounts[i] = &AccountInfo{
			Key:        m.Pubkey,
			IsSigner:   m.IsSigner,
			IsWritable: m.IsWritable,
			acct:       acct,
			program:    ix.ProgramID,
		}
	}

	e.log(fmt.Sprintf("Program %s invoke [%d]", ix.ProgramID, depth))
	if err := e.consume(InvokeUnits); err != nil {
		e.log(fmt.Sprintf("Program %s failed: %s", ix.ProgramID, errors.LogString(err)))
		return err
	}

	ic := &InvokeContext{exec: e, programID: ix.ProgramID, accounts: accounts, depth: depth}
	start := e.limit - e.used
	err := program.Process(ic, accounts, ix.Data)
	if !builtin {
		e.log(fmt.Sprintf("Program %s consumed %d of %d compute units", ix.ProgramID, start-(e.limit-e.used), start))
	}
	if err != nil {
		e.log(fmt.Sprintf("Program %s failed: %s", ix.ProgramID, errors.LogString(err)))
		return err
	}
	e.log(fmt.Sprintf("Program %s success", ix.ProgramID))
	return nil
}
