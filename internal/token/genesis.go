package token

import (
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/fixed-ratio-trading/internal/errors"
	"github.com/lugondev/fixed-ratio-trading/internal/ledger"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

// NewMintAccount returns a rent-exempt initialized mint, for seeding a bank.
func NewMintAccount(rent ledger.Rent, authority solana.PublicKey, decimals uint8, supply uint64) *types.Account {
	m := &Mint{MintAuthority: &authority, Supply: supply, Decimals: decimals, IsInitialized: true}
	return &types.Account{
		Lamports: rent.MinimumBalance(MintLen),
		Data:     m.Pack(),
		Owner:    ProgramID,
	}
}

// NewTokenAccount returns a rent-exempt initialized token account, for seeding a bank.
func NewTokenAccount(rent ledger.Rent, mint, owner solana.PublicKey, amount uint64) *types.Account {
	a := &Account{Mint: mint, Owner: owner, Amount: amount, State: AccountInitialized}
	return &types.Account{
		Lamports: rent.MinimumBalance(AccountLen),
		Data:     a.Pack(),
		Owner:    ProgramID,
	}
}

// CreateMint returns the instructions that allocate and initialize a new mint
// funded by payer. The mint key must sign.
func CreateMint(rent ledger.Rent, payer, mint, authority solana.PublicKey, decimals uint8) []types.Instruction {
	return []types.Instruction{
		ledger.CreateAccount(payer, mint, rent.MinimumBalance(MintLen), MintLen, ProgramID),
		InitializeMint2(mint, decimals, authority, nil),
	}
}

// CreateAccount returns the instructions that allocate and initialize a new
// token account funded by payer. The account key must sign.
func CreateAccount(rent ledger.Rent, payer, account, mint, owner solana.PublicKey) []types.Instruction {
	return []types.Instruction{
		ledger.CreateAccount(payer, account, rent.MinimumBalance(AccountLen), AccountLen, ProgramID),
		InitializeAccount3(account, mint, owner),
	}
}

// GetAccount reads and decodes a token account from bank.
func GetAccount(bank *ledger.Bank, key solana.PublicKey) (*Account, error) {
	acct, ok := bank.GetAccount(key)
	if !ok {
		return nil, errors.ErrMissingAccount.Withf("token account %s not found", key)
	}
	return UnpackAccount(acct.Data)
}

// GetMint reads and decodes a mint from bank.
func GetMint(bank *ledger.Bank, key solana.PublicKey) (*Mint, error) {
	acct, ok := bank.GetAccount(key)
	if !ok {
		return nil, errors.ErrMissingAccount.Withf("mint %s not found", key)
	}
	return UnpackMint(acct.Data)
}

// Balance returns the token amount held by key.
func Balance(bank *ledger.Bank, key solana.PublicKey) (uint64, error) {
	a, err := GetAccount(bank, key)
	if err != nil {
		return 0, err
	}
	return a.Amount, nil
}
