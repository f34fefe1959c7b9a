package token

import (
	"encoding/binary"
	"math/bits"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
)

// Compute units charged per instruction, close to the on-chain program.
const (
	initializeUnits = 2_900
	transferUnits   = 4_600
	mintToUnits     = 4_500
	burnUnits       = 4_700
)

func newTokenError(code uint32, msg string) *errors.Error {
	return errors.NewCustom(code, msg)
}

// Program implements ledger.Program.
type Program struct{}

// Install deploys the token program on bank as an immutable program.
func Install(bank *ledger.Bank) error {
	return bank.Deploy(ProgramID, Program{}, nil)
}

// Process implements ledger.Program.
func (Program) Process(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	if len(data) == 0 {
		return errors.ErrInvalidInstructionData
	}
	switch data[0] {
	case InstructionInitializeMint2:
		ic.Logf("Instruction: InitializeMint2")
		return initializeMint(ic, accounts, data[1:])
	case InstructionInitializeAccount3:
		ic.Logf("Instruction: InitializeAccount3")
		return initializeAccount(ic, accounts, data[1:])
	case InstructionTransfer:
		ic.Logf("Instruction: Transfer")
		amount, err := readAmount(data)
		if err != nil {
			return err
		}
		return transfer(ic, accounts, amount)
	case InstructionMintTo:
		ic.Logf("Instruction: MintTo")
		amount, err := readAmount(data)
		if err != nil {
			return err
		}
		return mintTo(ic, accounts, amount)
	case InstructionBurn:
		ic.Logf("Instruction: Burn")
		amount, err := readAmount(data)
		if err != nil {
			return err
		}
		return burn(ic, accounts, amount)
	}
	return errors.ErrInvalidInstructionData.Withf("unsupported token instruction %d", data[0])
}

func readAmount(data []byte) (uint64, error) {
	if len(data) < 9 {
		return 0, errors.ErrInvalidInstructionData.Withf("amount missing")
	}
	return binary.LittleEndian.Uint64(data[1:9]), nil
}

func need(accounts []*ledger.AccountInfo, n int) error {
	if len(accounts) < n {
		return errors.ErrNotEnoughAccountKeys
	}
	return nil
}

func checkOwned(acct *ledger.AccountInfo) error {
	if !acct.IsOwnedBy(ProgramID) {
		return errors.ErrIncorrectProgramID.Withf("account %s is not owned by the token program", acct.Key)
	}
	return nil
}

func store(acct *ledger.AccountInfo, packed []byte) error {
	return acct.SetData(packed)
}

func loadMint(acct *ledger.AccountInfo) (*Mint, error) {
	if err := checkOwned(acct); err != nil {
		return nil, err
	}
	return UnpackMint(acct.Data())
}

func loadAccount(acct *ledger.AccountInfo) (*Account, error) {
	if err := checkOwned(acct); err != nil {
		return nil, err
	}
	return UnpackAccount(acct.Data())
}

func checkAuthority(expected solana.PublicKey, authority *ledger.AccountInfo) error {
	if !expected.Equals(authority.Key) {
		return ErrOwnerMismatch
	}
	if !authority.IsSigner {
		return errors.ErrMissingRequiredSignature
	}
	return nil
}

func initializeMint(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	if err := ic.Consume(initializeUnits); err != nil {
		return err
	}
	if err := need(accounts, 1); err != nil {
		return err
	}
	if len(data) < 34 {
		return errors.ErrInvalidInstructionData
	}
	mintInfo := accounts[0]
	if err := checkOwned(mintInfo); err != nil {
		return err
	}
	if mintInfo.DataLen() != MintLen {
		return errors.ErrInvalidAccountData.Withf("mint account holds %d bytes", mintInfo.DataLen())
	}
	if _, err := UnpackMint(mintInfo.Data()); err == nil {
		return ErrAlreadyInUse
	}
	if !ic.Rent().IsExempt(mintInfo.Lamports(), MintLen) {
		return ErrNotRentExempt
	}

	authority := solana.PublicKeyFromBytes(data[1:33])
	m := &Mint{MintAuthority: &authority, Decimals: data[0], IsInitialized: true}
	if data[33] == 1 {
		if len(data) < 66 {
			return errors.ErrInvalidInstructionData
		}
		freeze := solana.PublicKeyFromBytes(data[34:66])
		m.FreezeAuthority = &freeze
	}
	return store(mintInfo, m.Pack())
}

func initializeAccount(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	if err := ic.Consume(initializeUnits); err != nil {
		return err
	}
	if err := need(accounts, 2); err != nil {
		return err
	}
	if len(data) < 32 {
		return errors.ErrInvalidInstructionData
	}
	acctInfo, mintInfo := accounts[0], accounts[1]
	if err := checkOwned(acctInfo); err != nil {
		return err
	}
	if acctInfo.DataLen() != AccountLen {
		return errors.ErrInvalidAccountData.Withf("token account holds %d bytes", acctInfo.DataLen())
	}
	if _, err := UnpackAccount(acctInfo.Data()); err == nil {
		return ErrAlreadyInUse
	}
	if !ic.Rent().IsExempt(acctInfo.Lamports(), AccountLen) {
		return ErrNotRentExempt
	}
	if _, err := loadMint(mintInfo); err != nil {
		return ErrInvalidMint.WithCause(err)
	}

	a := &Account{
		Mint:  mintInfo.Key,
		Owner: solana.PublicKeyFromBytes(data[:32]),
		State: AccountInitialized,
	}
	return store(acctInfo, a.Pack())
}

func transfer(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, amount uint64) error {
	if err := ic.Consume(transferUnits); err != nil {
		return err
	}
	if err := need(accounts, 3); err != nil {
		return err
	}
	srcInfo, dstInfo, authority := accounts[0], accounts[1], accounts[2]
	src, err := loadAccount(srcInfo)
	if err != nil {
		return err
	}
	dst, err := loadAccount(dstInfo)
	if err != nil {
		return err
	}
	if src.State == AccountFrozen || dst.State == AccountFrozen {
		return ErrAccountFrozen
	}
	if !src.Mint.Equals(dst.Mint) {
		return ErrMintMismatch
	}
	if err := checkAuthority(src.Owner, authority); err != nil {
		return err
	}
	if src.Amount < amount {
		ic.Logf("Error: insufficient funds")
		return ErrInsufficientFunds
	}
	if srcInfo.Key.Equals(dstInfo.Key) {
		return nil
	}

	src.Amount -= amount
	sum, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}
	dst.Amount = sum
	if err := store(srcInfo, src.Pack()); err != nil {
		return err
	}
	return store(dstInfo, dst.Pack())
}

func mintTo(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, amount uint64) error {
	if err := ic.Consume(mintToUnits); err != nil {
		return err
	}
	if err := need(accounts, 3); err != nil {
		return err
	}
	mintInfo, dstInfo, authority := accounts[0], accounts[1], accounts[2]
	m, err := loadMint(mintInfo)
	if err != nil {
		return err
	}
	dst, err := loadAccount(dstInfo)
	if err != nil {
		return err
	}
	if dst.State == AccountFrozen {
		return ErrAccountFrozen
	}
	if !dst.Mint.Equals(mintInfo.Key) {
		return ErrMintMismatch
	}
	if m.MintAuthority == nil {
		return ErrFixedSupply
	}
	if err := checkAuthority(*m.MintAuthority, authority); err != nil {
		return err
	}

	supply, carry := bits.Add64(m.Supply, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}
	m.Supply = supply
	dst.Amount += amount // bounded by supply
	if err := store(mintInfo, m.Pack()); err != nil {
		return err
	}
	return store(dstInfo, dst.Pack())
}

func burn(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, amount uint64) error {
	if err := ic.Consume(burnUnits); err != nil {
		return err
	}
	if err := need(accounts, 3); err != nil {
		return err
	}
	acctInfo, mintInfo, authority := accounts[0], accounts[1], accounts[2]
	a, err := loadAccount(acctInfo)
	if err != nil {
		return err
	}
	m, err := loadMint(mintInfo)
	if err != nil {
		return err
	}
	if a.State == AccountFrozen {
		return ErrAccountFrozen
	}
	if !a.Mint.Equals(mintInfo.Key) {
		return ErrMintMismatch
	}
	if err := checkAuthority(a.Owner, authority); err != nil {
		return err
	}
	if a.Amount < amount {
		return ErrInsufficientFunds
	}

	a.Amount -= amount
	m.Supply -= amount
	if err := store(acctInfo, a.Pack()); err != nil {
		return err
	}
	return store(mintInfo, m.Pack())
}
