package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lugondev/fixed-ratio-trading/internal/storage"
)

const accountColumns = `id, pubkey, lamports, data, owner, executable, rent_epoch, slot, updated_at, created_at`

// Snapshots overwrite in place and keep their first created_at.
const upsertAccount = `
	INSERT INTO accounts (` + accountColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (pubkey) DO UPDATE SET
		lamports = $3, data = $4, owner = $5, executable = $6, rent_epoch = $7, slot = $8, updated_at = $9
`

type accountRepository struct {
	pool *pgxpool.Pool
}

func accountArgs(a *storage.AccountModel) []any {
	return []any{a.ID, a.Pubkey, a.Lamports, a.Data, a.Owner, a.Executable, a.RentEpoch, a.Slot, a.UpdatedAt, a.CreatedAt}
}

func scanAccount(row scanner) (*storage.AccountModel, error) {
	var a storage.AccountModel
	err := row.Scan(&a.ID, &a.Pubkey, &a.Lamports, &a.Data, &a.Owner, &a.Executable, &a.RentEpoch, &a.Slot, &a.UpdatedAt, &a.CreatedAt)
	return &a, err
}

func (r *accountRepository) Save(ctx context.Context, account *storage.AccountModel) error {
	_, err := r.pool.Exec(ctx, upsertAccount, accountArgs(account)...)
	return err
}

func (r *accountRepository) SaveBatch(ctx context.Context, accounts []*storage.AccountModel) error {
	return storage.SendBatch(ctx, r.pool, len(accounts), func(batch *pgx.Batch, i int) {
		batch.Queue(upsertAccount, accountArgs(accounts[i])...)
	})
}

func (r *accountRepository) FindByPubkey(ctx context.Context, pubkey string) (*storage.AccountModel, error) {
	return QueryOne(ctx, r.pool, `SELECT `+accountColumns+` FROM accounts WHERE pubkey = $1`, scanAccount, pubkey)
}

func (r *accountRepository) FindByOwner(ctx context.Context, owner string, limit int, offset int) ([]*storage.AccountModel, error) {
	return QueryMany(ctx, r.pool, `SELECT `+accountColumns+` FROM accounts WHERE owner = $1 ORDER BY pubkey LIMIT $2 OFFSET $3`,
		scanAccount, owner, limitArg(limit), offset)
}

// Delete drops the snapshot and any token account decoded from it.
func (r *accountRepository) Delete(ctx context.Context, pubkey string) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM accounts WHERE pubkey = $1`, pubkey)
	batch.Queue(`DELETE FROM token_accounts WHERE address = $1`, pubkey)
	return r.pool.SendBatch(ctx, batch).Close()
}

const transactionColumns = `id, signature, slot, block_time, fee, success, error_message, error_code,
	account_keys, num_instructions, num_inner_instructions, log_messages, compute_units_consumed, return_data, created_at`

type transactionRepository struct {
	pool *pgxpool.Pool
}

func scanTransaction(row scanner) (*storage.TransactionModel, error) {
	var tx storage.TransactionModel
	var errMsg *string
	var errCode *int64
	err := row.Scan(
		&tx.ID, &tx.Signature, &tx.Slot, &tx.BlockTime, &tx.Fee, &tx.Success, &errMsg, &errCode,
		&tx.AccountKeys, &tx.NumInstructions, &tx.NumInnerInstructions, &tx.LogMessages, &tx.ComputeUnitsConsumed,
		&tx.ReturnData, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if errMsg != nil {
		tx.ErrorMessage = *errMsg
	}
	if errCode != nil {
		code := uint32(*errCode)
		tx.ErrorCode = &code
	}
	return &tx, nil
}

// Save inserts tx. A repeated signature is storage.ErrDuplicate.
func (r *transactionRepository) Save(ctx context.Context, tx *storage.TransactionModel) error {
	var errCode *int64
	if tx.ErrorCode != nil {
		code := int64(*tx.ErrorCode)
		errCode = &code
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14, $15)`,
		tx.ID, tx.Signature, tx.Slot, tx.BlockTime, tx.Fee, tx.Success, tx.ErrorMessage, errCode,
		tx.AccountKeys, tx.NumInstructions, tx.NumInnerInstructions, tx.LogMessages, tx.ComputeUnitsConsumed,
		tx.ReturnData, tx.CreatedAt,
	)
	return translate(err)
}

func (r *transactionRepository) FindBySignature(ctx context.Context, signature string) (*storage.TransactionModel, error) {
	return QueryOne(ctx, r.pool, `SELECT `+transactionColumns+` FROM transactions WHERE signature = $1`, scanTransaction, signature)
}

func (r *transactionRepository) FindBySlot(ctx context.Context, slot uint64) ([]*storage.TransactionModel, error) {
	return QueryMany(ctx, r.pool, `SELECT `+transactionColumns+` FROM transactions WHERE slot = $1`, scanTransaction, slot)
}

func (r *transactionRepository) FindByAccountKey(ctx context.Context, accountKey string, limit int, offset int) ([]*storage.TransactionModel, error) {
	return QueryMany(ctx, r.pool, `SELECT `+transactionColumns+`
		FROM transactions WHERE account_keys @> ARRAY[$1]::TEXT[] ORDER BY slot DESC LIMIT $2 OFFSET $3`,
		scanTransaction, accountKey, limitArg(limit), offset)
}

func (r *transactionRepository) FindRecent(ctx context.Context, limit int) ([]*storage.TransactionModel, error) {
	return QueryMany(ctx, r.pool, `SELECT `+transactionColumns+` FROM transactions ORDER BY slot DESC LIMIT $1`,
		scanTransaction, limitArg(limit))
}

func (r *transactionRepository) FindFailed(ctx context.Context, code *uint32, limit int, offset int) ([]*storage.TransactionModel, error) {
	var codeArg *int64
	if code != nil {
		c := int64(*code)
		codeArg = &c
	}
	return QueryMany(ctx, r.pool, `SELECT `+transactionColumns+`
		FROM transactions WHERE NOT success AND ($1::BIGINT IS NULL OR error_code = $1)
		ORDER BY slot DESC LIMIT $2 OFFSET $3`,
		scanTransaction, codeArg, limitArg(limit), offset)
}

const instructionColumns = `id, signature, instruction_index, program_id, name, data, accounts, is_inner, inner_index, created_at`

type instructionRepository struct {
	pool *pgxpool.Pool
}

func scanInstruction(row scanner) (*storage.InstructionModel, error) {
	var ix storage.InstructionModel
	var name *string
	if err := row.Scan(&ix.ID, &ix.Signature, &ix.InstructionIndex, &ix.ProgramID, &name,
		&ix.Data, &ix.Accounts, &ix.IsInner, &ix.InnerIndex, &ix.CreatedAt); err != nil {
		return nil, err
	}
	if name != nil {
		ix.Name = *name
	}
	return &ix, nil
}

func (r *instructionRepository) SaveBatch(ctx context.Context, instructions []*storage.InstructionModel) error {
	query := `INSERT INTO instructions (` + instructionColumns + `)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)`
	return storage.SendBatch(ctx, r.pool, len(instructions), func(batch *pgx.Batch, i int) {
		ix := instructions[i]
		batch.Queue(query, ix.ID, ix.Signature, ix.InstructionIndex, ix.ProgramID, ix.Name,
			ix.Data, ix.Accounts, ix.IsInner, ix.InnerIndex, ix.CreatedAt)
	})
}

func (r *instructionRepository) FindBySignature(ctx context.Context, signature string) ([]*storage.InstructionModel, error) {
	return QueryMany(ctx, r.pool, `SELECT `+instructionColumns+`
		FROM instructions WHERE signature = $1 ORDER BY instruction_index, inner_index NULLS FIRST`,
		scanInstruction, signature)
}

func (r *instructionRepository) FindByName(ctx context.Context, programID, name string, limit int, offset int) ([]*storage.InstructionModel, error) {
	return QueryMany(ctx, r.pool, `SELECT `+instructionColumns+`
		FROM instructions WHERE program_id = $1 AND name = $2 ORDER BY created_at LIMIT $3 OFFSET $4`,
		scanInstruction, programID, name, limitArg(limit), offset)
}

const eventColumns = `id, signature, program_id, event_name, data, slot, block_time, created_at`

type eventRepository struct {
	pool *pgxpool.Pool
}

func scanEvent(row scanner) (*storage.EventModel, error) {
	var ev storage.EventModel
	var raw []byte
	if err := row.Scan(&ev.ID, &ev.Signature, &ev.ProgramID, &ev.EventName, &raw, &ev.Slot, &ev.BlockTime, &ev.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &ev.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
	}
	return &ev, nil
}

func (r *eventRepository) SaveBatch(ctx context.Context, events []*storage.EventModel) error {
	bodies := make([][]byte, len(events))
	for i, ev := range events {
		raw, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event data at index %d: %w", i, err)
		}
		bodies[i] = raw
	}

	query := `INSERT INTO events (` + eventColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	return storage.SendBatch(ctx, r.pool, len(events), func(batch *pgx.Batch, i int) {
		ev := events[i]
		batch.Queue(query, ev.ID, ev.Signature, ev.ProgramID, ev.EventName, bodies[i], ev.Slot, ev.BlockTime, ev.CreatedAt)
	})
}

func (r *eventRepository) FindBySignature(ctx context.Context, signature string) ([]*storage.EventModel, error) {
	return QueryMany(ctx, r.pool, `SELECT `+eventColumns+` FROM events WHERE signature = $1 ORDER BY created_at`, scanEvent, signature)
}

func (r *eventRepository) FindByEventName(ctx context.Context, eventName string, limit int, offset int) ([]*storage.EventModel, error) {
	return QueryMany(ctx, r.pool, `SELECT `+eventColumns+`
		FROM events WHERE event_name = $1 ORDER BY slot DESC LIMIT $2 OFFSET $3`,
		scanEvent, eventName, limitArg(limit), offset)
}

const tokenAccountColumns = `id, address, mint, owner, amount, delegate, delegated_amount, is_native, close_authority, slot, updated_at, created_at`

type tokenAccountRepository struct {
	pool *pgxpool.Pool
}

func scanTokenAccount(row scanner) (*storage.TokenAccountModel, error) {
	var ta storage.TokenAccountModel
	err := row.Scan(&ta.ID, &ta.Address, &ta.Mint, &ta.Owner, &ta.Amount, &ta.Delegate, &ta.DelegatedAmount,
		&ta.IsNative, &ta.CloseAuthority, &ta.Slot, &ta.UpdatedAt, &ta.CreatedAt)
	return &ta, err
}

func (r *tokenAccountRepository) SaveBatch(ctx context.Context, tokenAccounts []*storage.TokenAccountModel) error {
	query := `
		INSERT INTO token_accounts (` + tokenAccountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (address) DO UPDATE SET
			mint = $3, owner = $4, amount = $5, delegate = $6, delegated_amount = $7,
			is_native = $8, close_authority = $9, slot = $10, updated_at = $11
	`
	return storage.SendBatch(ctx, r.pool, len(tokenAccounts), func(batch *pgx.Batch, i int) {
		ta := tokenAccounts[i]
		batch.Queue(query, ta.ID, ta.Address, ta.Mint, ta.Owner, ta.Amount, ta.Delegate, ta.DelegatedAmount,
			ta.IsNative, ta.CloseAuthority, ta.Slot, ta.UpdatedAt, ta.CreatedAt)
	})
}

func (r *tokenAccountRepository) FindByAddress(ctx context.Context, address string) (*storage.TokenAccountModel, error) {
	return QueryOne(ctx, r.pool, `SELECT `+tokenAccountColumns+` FROM token_accounts WHERE address = $1`, scanTokenAccount, address)
}

func (r *tokenAccountRepository) FindByOwner(ctx context.Context, owner string, limit int, offset int) ([]*storage.TokenAccountModel, error) {
	return QueryMany(ctx, r.pool, `SELECT `+tokenAccountColumns+`
		FROM token_accounts WHERE owner = $1 ORDER BY address LIMIT $2 OFFSET $3`,
		scanTokenAccount, owner, limitArg(limit), offset)
}

func (r *tokenAccountRepository) FindByMint(ctx context.Context, mint string, limit int, offset int) ([]*storage.TokenAccountModel, error) {
	return QueryMany(ctx, r.pool, `SELECT `+tokenAccountColumns+`
		FROM token_accounts WHERE mint = $1 ORDER BY address LIMIT $2 OFFSET $3`,
		scanTokenAccount, mint, limitArg(limit), offset)
}
