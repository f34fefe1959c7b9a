package ledger

import (
	"math/bits"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

// MaxPermittedDataLength bounds the size of a single account.
const MaxPermittedDataLength = 10 * 1024 * 1024

// AccountInfo is a program's view of one account during an invocation. Every
// frame referencing the same key shares the underlying account, so changes
// made by a cross-program call are visible to the caller when it returns.
type AccountInfo struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool

	acct    *types.Account
	program solana.PublicKey
}

func (a *AccountInfo) Lamports() uint64        { return a.acct.Lamports }
func (a *AccountInfo) Owner() solana.PublicKey { return a.acct.Owner }
func (a *AccountInfo) DataLen() int            { return len(a.acct.Data) }
func (a *AccountInfo) Executable() bool        { return a.acct.Executable }

// Data returns the account data. The slice must be treated as read-only; use
// WriteData to modify it.
func (a *AccountInfo) Data() []byte { return a.acct.Data }

// IsOwnedBy reports whether program owns the account.
func (a *AccountInfo) IsOwnedBy(program solana.PublicKey) bool {
	return a.acct.Owner.Equals(program)
}

// IsEmpty reports whether the account holds neither lamports nor data.
func (a *AccountInfo) IsEmpty() bool { return a.acct.IsEmpty() }

// Snapshot returns a copy of the account's current state.
func (a *AccountInfo) Snapshot() *types.Account { return a.acct.Clone() }

func (a *AccountInfo) checkDataWrite() error {
	if !a.IsWritable {
		return errors.ErrReadonlyDataModified.Withf("account %s is not writable", a.Key)
	}
	if !a.acct.Owner.Equals(a.program) {
		return errors.ErrExternalAccountDataModified.Withf("account %s is owned by %s", a.Key, a.acct.Owner)
	}
	if a.acct.Executable {
		return errors.ErrReadonlyDataModified.Withf("account %s is executable", a.Key)
	}
	return nil
}

// WriteData lets fn modify the account data in place. Only the owning program
// may write, and only to a writable account.
func (a *AccountInfo) WriteData(fn func(dst []byte) error) error {
	if err := a.checkDataWrite(); err != nil {
		return err
	}
	return fn(a.acct.Data)
}

// SetData replaces the account data with a copy of data of the same length.
func (a *AccountInfo) SetData(data []byte) error {
	if err := a.checkDataWrite(); err != nil {
		return err
	}
	if len(data) != len(a.acct.Data) {
		return errors.ErrAccountDataTooSmall.Withf("account %s holds %d bytes, got %d", a.Key, len(a.acct.Data), len(data))
	}
	copy(a.acct.Data, data)
	return nil
}

// Credit adds lamports to a writable account. Any program may credit.
func (a *AccountInfo) Credit(lamports uint64) error {
	if !a.IsWritable {
		return errors.ErrReadonlyDataModified.Withf("cannot credit read-only account %s", a.Key)
	}
	sum, carry := bits.Add64(a.acct.Lamports, lamports, 0)
	if carry != 0 {
		return errors.ErrArithmeticOverflow
	}
	a.acct.Lamports = sum
	return nil
}

// Debit removes lamports from a writable account owned by the running program.
func (a *AccountInfo) Debit(lamports uint64) error {
	if !a.IsWritable {
		return errors.ErrReadonlyDataModified.Withf("cannot debit read-only account %s", a.Key)
	}
	if !a.acct.Owner.Equals(a.program) {
		return errors.ErrExternalLamportSpend.Withf("account %s is owned by %s", a.Key, a.acct.Owner)
	}
	if a.acct.Lamports < lamports {
		return errors.ErrInsufficientFunds.Withf("account %s holds %d lamports, needs %d", a.Key, a.acct.Lamports, lamports)
	}
	a.acct.Lamports -= lamports
	return nil
}

// TransferLamports moves lamports between two accounts in one step.
func TransferLamports(from, to *AccountInfo, lamports uint64) error {
	if err := from.Debit(lamports); err != nil {
		return err
	}
	if err := to.Credit(lamports); err != nil {
		from.acct.Lamports += lamports
		return err
	}
	return nil
}

// assign and allocate bypass the owner check; the system program enforces its
// own rules before calling them.
func (a *AccountInfo) assign(owner solana.PublicKey) { a.acct.Owner = owner }

func (a *AccountInfo) allocate(space uint64) {
	a.acct.Data = make([]byte, space)
}
