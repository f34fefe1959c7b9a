// Package types provides the ledger value types shared by the runtime, the
// programs it hosts and their clients. Key types alias solana-go so addresses
// and signatures interoperate with the wider Solana tooling.
package types

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Pubkey is a Solana public key (32 bytes).
type Pubkey = solana.PublicKey

// Signature is a Solana transaction signature (64 bytes).
type Signature = solana.Signature

// Hash is a Solana hash (32 bytes).
type Hash = solana.Hash

// Account represents a ledger account with its data and metadata.
type Account struct {
	// Lamports is the number of lamports owned by this account.
	Lamports uint64 `json:"lamports"`

	// Data is the data held in this account.
	Data []byte `json:"data"`

	// Owner is the program that owns this account.
	Owner Pubkey `json:"owner"`

	// Executable indicates if the account contains a program.
	Executable bool `json:"executable"`

	// RentEpoch is the epoch at which this account will next owe rent.
	RentEpoch uint64 `json:"rent_epoch"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return &c
}

// Equal reports whether two accounts hold identical state.
func (a *Account) Equal(b *Account) bool {
	return a.Lamports == b.Lamports &&
		a.Owner.Equals(b.Owner) &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}

// IsEmpty reports whether the account holds neither lamports nor data.
func (a *Account) IsEmpty() bool {
	return a.Lamports == 0 && len(a.Data) == 0
}

// AccountMeta describes a single account involved in an instruction.
type AccountMeta struct {
	// Pubkey is the public key of the account.
	Pubkey Pubkey `json:"pubkey"`

	// IsSigner indicates if the account is a signer.
	IsSigner bool `json:"is_signer"`

	// IsWritable indicates if the account is writable.
	IsWritable bool `json:"is_writable"`
}

// NewAccountMeta creates an AccountMeta.
func NewAccountMeta(pubkey Pubkey, writable, signer bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsWritable: writable, IsSigner: signer}
}

// Writable returns a writable, non-signer meta.
func Writable(pubkey Pubkey) AccountMeta { return NewAccountMeta(pubkey, true, false) }

// Readonly returns a read-only, non-signer meta.
func Readonly(pubkey Pubkey) AccountMeta { return NewAccountMeta(pubkey, false, false) }

// WritableSigner returns a writable signer meta.
func WritableSigner(pubkey Pubkey) AccountMeta { return NewAccountMeta(pubkey, true, true) }

// ReadonlySigner returns a read-only signer meta.
func ReadonlySigner(pubkey Pubkey) AccountMeta { return NewAccountMeta(pubkey, false, true) }

// ToSolanaAccountMeta converts to solana-go AccountMeta.
func (am *AccountMeta) ToSolanaAccountMeta() *solana.AccountMeta {
	return &solana.AccountMeta{
		PublicKey:  am.Pubkey,
		IsSigner:   am.IsSigner,
		IsWritable: am.IsWritable,
	}
}

// FromSolanaAccountMeta creates AccountMeta from solana-go AccountMeta.
func FromSolanaAccountMeta(meta *solana.AccountMeta) AccountMeta {
	return AccountMeta{
		Pubkey:     meta.PublicKey,
		IsSigner:   meta.IsSigner,
		IsWritable: meta.IsWritable,
	}
}

// Instruction represents a program instruction.
type Instruction struct {
	// ProgramID is the program that will process this instruction.
	ProgramID Pubkey `json:"program_id"`

	// Accounts is the list of accounts to pass to the program.
	Accounts []AccountMeta `json:"accounts"`

	// Data is the instruction data.
	Data []byte `json:"data"`
}

// InnerInstruction is a cross-program invocation recorded during execution.
type InnerInstruction struct {
	// Instruction is the invoked instruction.
	Instruction Instruction `json:"instruction"`

	// StackHeight is the call stack depth of this instruction.
	StackHeight uint32 `json:"stack_height"`
}

// InnerInstructions groups the inner instructions of one outer instruction.
type InnerInstructions struct {
	// Index is the index of the outer instruction in the transaction.
	Index uint8 `json:"index"`

	// Instructions is the list of inner instructions.
	Instructions []InnerInstruction `json:"instructions"`
}

// TransactionReturnData represents the return data from a transaction.
type TransactionReturnData struct {
	// ProgramID is the program that returned the data.
	ProgramID Pubkey `json:"program_id"`

	// Data is the returned data.
	Data []byte `json:"data"`
}

// TransactionStatusMeta contains metadata about a transaction's execution status.
type TransactionStatusMeta struct {
	// Signature is the fee payer's signature over the transaction.
	Signature Signature `json:"signature"`

	// Slot is the slot the transaction was processed in.
	Slot uint64 `json:"slot"`

	// Err is the error if the transaction failed, nil if successful.
	Err error `json:"err,omitempty"`

	// Fee is the fee charged for this transaction.
	Fee uint64 `json:"fee"`

	// AccountKeys lists every account referenced by the transaction, in first-seen order.
	AccountKeys []Pubkey `json:"account_keys"`

	// PreBalances is the list of account balances before the transaction.
	PreBalances []uint64 `json:"pre_balances"`

	// PostBalances is the list of account balances after the transaction.
	PostBalances []uint64 `json:"post_balances"`

	// InnerInstructions is the list of inner instructions executed.
	InnerInstructions []InnerInstructions `json:"inner_instructions,omitempty"`

	// LogMessages is the list of log messages produced during execution.
	LogMessages []string `json:"log_messages,omitempty"`

	// ReturnData is the data returned by the transaction.
	ReturnData *TransactionReturnData `json:"return_data,omitempty"`

	// ComputeUnitsConsumed is the number of compute units consumed.
	ComputeUnitsConsumed uint64 `json:"compute_units_consumed"`
}

// IsSuccess returns true if the transaction was successful.
func (m *TransactionStatusMeta) IsSuccess() bool {
	return m.Err == nil
}

// LamportsPerSOL is the number of lamports per SOL.
const LamportsPerSOL uint64 = 1_000_000_000

// LamportsToSOL converts lamports to an exact SOL amount.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Shift(-9)
}

// FormatSOL renders lamports as a SOL string with trailing zeros trimmed.
func FormatSOL(lamports uint64) string {
	return LamportsToSOL(lamports).String() + " SOL"
}
