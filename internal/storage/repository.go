package storage

import (
	"context"
	"errors"
)

var (
	ErrClosed    = errors.New("storage: repository closed")
	ErrDuplicate = errors.New("storage: duplicate record")
)

// Finders return (nil, nil) when nothing matches.

type AccountRepository interface {
	Save(ctx context.Context, account *AccountModel) error
	SaveBatch(ctx context.Context, accounts []*AccountModel) error
	FindByPubkey(ctx context.Context, pubkey string) (*AccountModel, error)
	FindByOwner(ctx context.Context, owner string, limit int, offset int) ([]*AccountModel, error)
	Delete(ctx context.Context, pubkey string) error
}

type TransactionRepository interface {
	Save(ctx context.Context, tx *TransactionModel) error
	FindBySignature(ctx context.Context, signature string) (*TransactionModel, error)
	FindBySlot(ctx context.Context, slot uint64) ([]*TransactionModel, error)
	FindByAccountKey(ctx context.Context, accountKey string, limit int, offset int) ([]*TransactionModel, error)
	FindRecent(ctx context.Context, limit int) ([]*TransactionModel, error)
	// FindFailed returns rejected transactions, newest first. A non-nil code
	// keeps only those that failed with that custom program error.
	FindFailed(ctx context.Context, code *uint32, limit int, offset int) ([]*TransactionModel, error)
}

type InstructionRepository interface {
	SaveBatch(ctx context.Context, instructions []*InstructionModel) error
	FindBySignature(ctx context.Context, signature string) ([]*InstructionModel, error)
	FindByName(ctx context.Context, programID, name string, limit int, offset int) ([]*InstructionModel, error)
}

type EventRepository interface {
	SaveBatch(ctx context.Context, events []*EventModel) error
	FindBySignature(ctx context.Context, signature string) ([]*EventModel, error)
	FindByEventName(ctx context.Context, eventName string, limit int, offset int) ([]*EventModel, error)
}

type TokenAccountRepository interface {
	SaveBatch(ctx context.Context, tokenAccounts []*TokenAccountModel) error
	FindByAddress(ctx context.Context, address string) (*TokenAccountModel, error)
	FindByOwner(ctx context.Context, owner string, limit int, offset int) ([]*TokenAccountModel, error)
	FindByMint(ctx context.Context, mint string, limit int, offset int) ([]*TokenAccountModel, error)
}

type Repository interface {
	Accounts() AccountRepository
	Transactions() TransactionRepository
	Instructions() InstructionRepository
	Events() EventRepository
	TokenAccounts() TokenAccountRepository
	Close() error
	Ping(ctx context.Context) error
}
