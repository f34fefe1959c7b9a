package token

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

// Instruction tags, numbered as in SPL Token.
const (
	InstructionTransfer           uint8 = 3
	InstructionMintTo             uint8 = 7
	InstructionBurn               uint8 = 8
	InstructionInitializeAccount3 uint8 = 18
	InstructionInitializeMint2    uint8 = 20
)

// Error codes, numbered as in SPL Token.
var (
	ErrNotRentExempt      = newTokenError(0, "lamport balance below rent-exempt threshold")
	ErrInsufficientFunds  = newTokenError(1, "insufficient funds")
	ErrInvalidMint        = newTokenError(2, "invalid mint")
	ErrMintMismatch       = newTokenError(3, "account not associated with this mint")
	ErrOwnerMismatch      = newTokenError(4, "owner does not match")
	ErrFixedSupply        = newTokenError(5, "fixed supply")
	ErrAlreadyInUse       = newTokenError(6, "already in use")
	ErrUninitializedState = newTokenError(9, "state is uninitialized")
	ErrOverflow           = newTokenError(14, "operation overflowed")
	ErrAccountFrozen      = newTokenError(17, "account is frozen")
)

func amountData(tag uint8, amount uint64) []byte {
	data := make([]byte, 9)
	data[0] = tag
	binary.LittleEndian.PutUint64(data[1:], amount)
	return data
}

// InitializeMint2 builds an instruction that initializes mint.
func InitializeMint2(mint solana.PublicKey, decimals uint8, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey) types.Instruction {
	data := make([]byte, 0, 67)
	data = append(data, InstructionInitializeMint2, decimals)
	data = append(data, mintAuthority[:]...)
	if freezeAuthority != nil {
		data = append(data, 1)
		data = append(data, freezeAuthority[:]...)
	} else {
		data = append(data, 0)
	}
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  []types.AccountMeta{types.Writable(mint)},
		Data:      data,
	}
}

// InitializeAccount3 builds an instruction that initializes account for mint
// under owner.
func InitializeAccount3(account, mint, owner solana.PublicKey) types.Instruction {
	data := make([]byte, 0, 33)
	data = append(data, InstructionInitializeAccount3)
	data = append(data, owner[:]...)
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  []types.AccountMeta{types.Writable(account), types.Readonly(mint)},
		Data:      data,
	}
}

// Transfer builds a token transfer signed by authority.
func Transfer(source, destination, authority solana.PublicKey, amount uint64) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(source),
			types.Writable(destination),
			types.ReadonlySigner(authority),
		},
		Data: amountData(InstructionTransfer, amount),
	}
}

// MintTo builds a mint-to instruction signed by the mint authority.
func MintTo(mint, destination, authority solana.PublicKey, amount uint64) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(mint),
			types.Writable(destination),
			types.ReadonlySigner(authority),
		},
		Data: amountData(InstructionMintTo, amount),
	}
}

// Burn builds a burn instruction signed by the account owner.
func Burn(account, mint, authority solana.PublicKey, amount uint64) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.Writable(account),
			types.Writable(mint),
			types.ReadonlySigner(authority),
		},
		Data: amountData(InstructionBurn, amount),
	}
}
