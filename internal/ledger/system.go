package ledger

import (
	"bytes"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

// System program instruction tags.
const (
	SystemCreateAccount uint32 = 0
	SystemAssign        uint32 = 1
	SystemTransfer      uint32 = 2
	SystemAllocate      uint32 = 8
)

// CreateAccount builds a system CreateAccount instruction. Both from and
// newAccount must sign; newAccount may be a program-derived address signed
// through InvokeSigned.
func CreateAccount(from, newAccount solana.PublicKey, lamports, space uint64, owner solana.PublicKey) types.Instruction {
	data := systemData(SystemCreateAccount, func(enc *bin.Encoder) error {
		if err := enc.WriteUint64(lamports, binary.LittleEndian); err != nil {
			return err
		}
		if err := enc.WriteUint64(space, binary.LittleEndian); err != nil {
			return err
		}
		return enc.WriteBytes(owner[:], false)
	})
	return types.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts:  []types.AccountMeta{types.WritableSigner(from), types.WritableSigner(newAccount)},
		Data:      data,
	}
}

// Transfer builds a system Transfer instruction.
func Transfer(from, to solana.PublicKey, lamports uint64) types.Instruction {
	data := systemData(SystemTransfer, func(enc *bin.Encoder) error {
		return enc.WriteUint64(lamports, binary.LittleEndian)
	})
	return types.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts:  []types.AccountMeta{types.WritableSigner(from), types.Writable(to)},
		Data:      data,
	}
}

// Assign builds a system Assign instruction.
func Assign(account, owner solana.PublicKey) types.Instruction {
	data := systemData(SystemAssign, func(enc *bin.Encoder) error {
		return enc.WriteBytes(owner[:], false)
	})
	return types.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts:  []types.AccountMeta{types.WritableSigner(account)},
		Data:      data,
	}
}

// Allocate builds a system Allocate instruction.
func Allocate(account solana.PublicKey, space uint64) types.Instruction {
	data := systemData(SystemAllocate, func(enc *bin.Encoder) error {
		return enc.WriteUint64(space, binary.LittleEndian)
	})
	return types.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts:  []types.AccountMeta{types.WritableSigner(account)},
		Data:      data,
	}
}

func systemData(tag uint32, body func(enc *bin.Encoder) error) []byte {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	// Writes into a bytes.Buffer cannot fail.
	_ = enc.WriteUint32(tag, binary.LittleEndian)
	_ = body(enc)
	return buf.Bytes()
}

// SystemProgram is the builtin that creates accounts and moves lamports
// between system-owned accounts.
type SystemProgram struct{}

// Process implements Program.
func (SystemProgram) Process(ic *InvokeContext, accounts []*AccountInfo, data []byte) error {
	dec := bin.NewBorshDecoder(data)
	tag, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return errors.ErrInvalidInstructionData.WithCause(err)
	}

	switch tag {
	case SystemCreateAccount:
		if len(accounts) < 2 {
			return errors.ErrNotEnoughAccountKeys
		}
		lamports, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return errors.ErrInvalidInstructionData.WithCause(err)
		}
		space, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return errors.ErrInvalidInstructionData.WithCause(err)
		}
		owner, err := readKey(dec)
		if err != nil {
			return err
		}
		from, to := accounts[0], accounts[1]
		if to.Lamports() > 0 || to.DataLen() > 0 || !to.IsOwnedBy(solana.SystemProgramID) {
			ic.Logf("Create Account: account %s already in use", to.Key)
			return errors.ErrAccountAlreadyInUse.Withf("account %s already in use", to.Key)
		}
		if err := allocate(ic, to, space); err != nil {
			return err
		}
		if err := assign(ic, to, owner); err != nil {
			return err
		}
		return transfer(ic, from, to, lamports)

	case SystemAssign:
		if len(accounts) < 1 {
			return errors.ErrNotEnoughAccountKeys
		}
		owner, err := readKey(dec)
		if err != nil {
			return err
		}
		return assign(ic, accounts[0], owner)

	case SystemTransfer:
		if len(accounts) < 2 {
			return errors.ErrNotEnoughAccountKeys
		}
		lamports, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return errors.ErrInvalidInstructionData.WithCause(err)
		}
		return transfer(ic, accounts[0], accounts[1], lamports)

	case SystemAllocate:
		if len(accounts) < 1 {
			return errors.ErrNotEnoughAccountKeys
		}
		space, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return errors.ErrInvalidInstructionData.WithCause(err)
		}
		return allocate(ic, accounts[0], space)
	}
	return errors.ErrInvalidInstructionData.Withf("unknown system instruction %d", tag)
}

func readKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, errors.ErrInvalidInstructionData.WithCause(err)
	}
	return solana.PublicKeyFromBytes(b), nil
}

func transfer(ic *InvokeContext, from, to *AccountInfo, lamports uint64) error {
	if !from.IsSigner {
		ic.Logf("Transfer: `from` account %s must sign", from.Key)
		return errors.ErrMissingRequiredSignature
	}
	if from.DataLen() > 0 {
		ic.Logf("Transfer: `from` must not carry data")
		return errors.ErrInvalidArgument.Withf("transfer source %s carries data", from.Key)
	}
	if from.Lamports() < lamports {
		ic.Logf("Transfer: insufficient lamports %d, need %d", from.Lamports(), lamports)
		return errors.ErrInsufficientFunds.Withf("account %s holds %d lamports, needs %d", from.Key, from.Lamports(), lamports)
	}
	return TransferLamports(from, to, lamports)
}

func allocate(ic *InvokeContext, acct *AccountInfo, space uint64) error {
	if !acct.IsSigner {
		ic.Logf("Allocate: 'to' account %s must sign", acct.Key)
		return errors.ErrMissingRequiredSignature
	}
	if acct.DataLen() > 0 || !acct.IsOwnedBy(solana.SystemProgramID) {
		ic.Logf("Allocate: account %s already in use", acct.Key)
		return errors.ErrAccountAlreadyInUse.Withf("account %s already in use", acct.Key)
	}
	if space > MaxPermittedDataLength {
		return errors.ErrInvalidArgument.Withf("requested %d bytes, max %d", space, MaxPermittedDataLength)
	}
	if !acct.IsWritable {
		return errors.ErrReadonlyDataModified.Withf("account %s is not writable", acct.Key)
	}
	acct.allocate(space)
	return nil
}

func assign(ic *InvokeContext, acct *AccountInfo, owner solana.PublicKey) error {
	if acct.IsOwnedBy(owner) {
		return nil
	}
	if !acct.IsSigner {
		ic.Logf("Assign: account %s must sign", acct.Key)
		return errors.ErrMissingRequiredSignature
	}
	if !acct.IsOwnedBy(solana.SystemProgramID) {
		return errors.ErrInvalidAccountOwner.Withf("account %s is owned by %s", acct.Key, acct.Owner())
	}
	if !acct.IsWritable {
		return errors.ErrReadonlyDataModified.Withf("account %s is not writable", acct.Key)
	}
	acct.assign(owner)
	return nil
}
