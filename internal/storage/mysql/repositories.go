package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/go-sql-driver/mysql"

	"github.com/lugondev/fixed-ratio-trading/internal/storage"
)

type scanner interface {
	Scan(dest ...any) error
}

func queryMany[T any](ctx context.Context, db *sql.DB, query string, scan func(scanner) (*T, error), args ...any) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func queryOne[T any](ctx context.Context, db *sql.DB, query string, scan func(scanner) (*T, error), args ...any) (*T, error) {
	item, err := scan(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// limitArg maps a non-positive limit to the largest row count MySQL accepts.
func limitArg(limit int) uint64 {
	if limit <= 0 {
		return math.MaxUint64
	}
	return uint64(limit)
}

func translate(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return storage.ErrDuplicate
	}
	return err
}

func jsonColumn(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const accountColumns = `id, pubkey, lamports, data, owner, executable, rent_epoch, slot, updated_at, created_at`

type accountRepository struct {
	db *sql.DB
}

func scanAccount(row scanner) (*storage.AccountModel, error) {
	var a storage.AccountModel
	err := row.Scan(&a.ID, &a.Pubkey, &a.Lamports, &a.Data, &a.Owner, &a.Executable, &a.RentEpoch, &a.Slot, &a.UpdatedAt, &a.CreatedAt)
	return &a, err
}

const upsertAccount = `
	INSERT INTO accounts (` + accountColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		lamports = VALUES(lamports),
		data = VALUES(data),
		owner = VALUES(owner),
		executable = VALUES(executable),
		rent_epoch = VALUES(rent_epoch),
		slot = VALUES(slot),
		updated_at = VALUES(updated_at)
`

func (r *accountRepository) Save(ctx context.Context, account *storage.AccountModel) error {
	return r.SaveBatch(ctx, []*storage.AccountModel{account})
}

func (r *accountRepository) SaveBatch(ctx context.Context, accounts []*storage.AccountModel) error {
	return storage.ExecInTx(ctx, r.db, upsertAccount, len(accounts), func(stmt *sql.Stmt, i int) error {
		a := accounts[i]
		_, err := stmt.ExecContext(ctx, a.ID, a.Pubkey, a.Lamports, a.Data, a.Owner, a.Executable, a.RentEpoch, a.Slot, a.UpdatedAt, a.CreatedAt)
		return err
	})
}

func (r *accountRepository) FindByPubkey(ctx context.Context, pubkey string) (*storage.AccountModel, error) {
	return queryOne(ctx, r.db, `SELECT `+accountColumns+` FROM accounts WHERE pubkey = ?`, scanAccount, pubkey)
}

func (r *accountRepository) FindByOwner(ctx context.Context, owner string, limit int, offset int) ([]*storage.AccountModel, error) {
	return queryMany(ctx, r.db, `SELECT `+accountColumns+` FROM accounts WHERE owner = ? ORDER BY pubkey LIMIT ? OFFSET ?`,
		scanAccount, owner, limitArg(limit), offset)
}

// Delete drops the snapshot and any token account decoded from it.
func (r *accountRepository) Delete(ctx context.Context, pubkey string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE pubkey = ?`, pubkey); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM token_accounts WHERE address = ?`, pubkey); err != nil {
		return err
	}
	return tx.Commit()
}

const transactionColumns = `id, signature, slot, block_time, fee, success, error_message, error_code,
	account_keys, num_instructions, num_inner_instructions, log_messages, compute_units_consumed, return_data, created_at`

type transactionRepository struct {
	db *sql.DB
}

func scanTransaction(row scanner) (*storage.TransactionModel, error) {
	var (
		tx         storage.TransactionModel
		errMsg     sql.NullString
		errCode    sql.NullInt64
		keys, logs []byte
		blockTime  sql.NullInt64
	)
	if err := row.Scan(&tx.ID, &tx.Signature, &tx.Slot, &blockTime, &tx.Fee, &tx.Success, &errMsg, &errCode,
		&keys, &tx.NumInstructions, &tx.NumInnerInstructions, &logs, &tx.ComputeUnitsConsumed,
		&tx.ReturnData, &tx.CreatedAt); err != nil {
		return nil, err
	}
	if blockTime.Valid {
		tx.BlockTime = &blockTime.Int64
	}
	tx.ErrorMessage = errMsg.String
	if errCode.Valid {
		code := uint32(errCode.Int64)
		tx.ErrorCode = &code
	}
	if err := json.Unmarshal(keys, &tx.AccountKeys); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account keys: %w", err)
	}
	if len(logs) > 0 {
		if err := json.Unmarshal(logs, &tx.LogMessages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log messages: %w", err)
		}
	}
	return &tx, nil
}

func (r *transactionRepository) Save(ctx context.Context, tx *storage.TransactionModel) error {
	keys, err := json.Marshal(tx.AccountKeys)
	if err != nil {
		return err
	}
	logs, err := jsonColumn(tx.LogMessages)
	if err != nil {
		return err
	}
	var errCode sql.NullInt64
	if tx.ErrorCode != nil {
		errCode = sql.NullInt64{Int64: int64(*tx.ErrorCode), Valid: true}
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Signature, tx.Slot, tx.BlockTime, tx.Fee, tx.Success, nullString(tx.ErrorMessage), errCode,
		keys, tx.NumInstructions, tx.NumInnerInstructions, logs, tx.ComputeUnitsConsumed, tx.ReturnData, tx.CreatedAt,
	)
	return translate(err)
}

func (r *transactionRepository) FindBySignature(ctx context.Context, signature string) (*storage.TransactionModel, error) {
	return queryOne(ctx, r.db, `SELECT `+transactionColumns+` FROM transactions WHERE signature = ?`, scanTransaction, signature)
}

func (r *transactionRepository) FindBySlot(ctx context.Context, slot uint64) ([]*storage.TransactionModel, error) {
	return queryMany(ctx, r.db, `SELECT `+transactionColumns+` FROM transactions WHERE slot = ?`, scanTransaction, slot)
}

func (r *transactionRepository) FindByAccountKey(ctx context.Context, accountKey string, limit int, offset int) ([]*storage.TransactionModel, error) {
	return queryMany(ctx, r.db, `SELECT `+transactionColumns+`
		FROM transactions WHERE JSON_CONTAINS(account_keys, JSON_QUOTE(?)) ORDER BY slot DESC LIMIT ? OFFSET ?`,
		scanTransaction, accountKey, limitArg(limit), offset)
}

func (r *transactionRepository) FindRecent(ctx context.Context, limit int) ([]*storage.TransactionModel, error) {
	return queryMany(ctx, r.db, `SELECT `+transactionColumns+` FROM transactions ORDER BY slot DESC LIMIT ?`,
		scanTransaction, limitArg(limit))
}

func (r *transactionRepository) FindFailed(ctx context.Context, code *uint32, limit int, offset int) ([]*storage.TransactionModel, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE success = FALSE`
	args := []any{}
	if code != nil {
		query += ` AND error_code = ?`
		args = append(args, *code)
	}
	query += ` ORDER BY slot DESC LIMIT ? OFFSET ?`
	args = append(args, limitArg(limit), offset)
	return queryMany(ctx, r.db, query, scanTransaction, args...)
}

const instructionColumns = `id, signature, instruction_index, program_id, name, data, accounts, is_inner, inner_index, created_at`

type instructionRepository struct {
	db *sql.DB
}

func scanInstruction(row scanner) (*storage.InstructionModel, error) {
	var (
		ix       storage.InstructionModel
		name     sql.NullString
		accounts []byte
		inner    sql.NullInt64
	)
	if err := row.Scan(&ix.ID, &ix.Signature, &ix.InstructionIndex, &ix.ProgramID, &name,
		&ix.Data, &accounts, &ix.IsInner, &inner, &ix.CreatedAt); err != nil {
		return nil, err
	}
	ix.Name = name.String
	if inner.Valid {
		idx := int(inner.Int64)
		ix.InnerIndex = &idx
	}
	if err := json.Unmarshal(accounts, &ix.Accounts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instruction accounts: %w", err)
	}
	return &ix, nil
}

func (r *instructionRepository) SaveBatch(ctx context.Context, instructions []*storage.InstructionModel) error {
	query := `INSERT INTO instructions (` + instructionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	return storage.ExecInTx(ctx, r.db, query, len(instructions), func(stmt *sql.Stmt, i int) error {
		ix := instructions[i]
		accounts, err := json.Marshal(ix.Accounts)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx, ix.ID, ix.Signature, ix.InstructionIndex, ix.ProgramID, nullString(ix.Name),
			ix.Data, accounts, ix.IsInner, ix.InnerIndex, ix.CreatedAt)
		return err
	})
}

func (r *instructionRepository) FindBySignature(ctx context.Context, signature string) ([]*storage.InstructionModel, error) {
	// MySQL sorts NULL first in ascending order.
	return queryMany(ctx, r.db, `SELECT `+instructionColumns+`
		FROM instructions WHERE signature = ? ORDER BY instruction_index, inner_index`, scanInstruction, signature)
}

func (r *instructionRepository) FindByName(ctx context.Context, programID, name string, limit int, offset int) ([]*storage.InstructionModel, error) {
	return queryMany(ctx, r.db, `SELECT `+instructionColumns+`
		FROM instructions WHERE program_id = ? AND name = ? ORDER BY created_at LIMIT ? OFFSET ?`,
		scanInstruction, programID, name, limitArg(limit), offset)
}

const eventColumns = `id, signature, program_id, event_name, data, slot, block_time, created_at`

type eventRepository struct {
	db *sql.DB
}

func scanEvent(row scanner) (*storage.EventModel, error) {
	var (
		ev        storage.EventModel
		raw       []byte
		blockTime sql.NullInt64
	)
	if err := row.Scan(&ev.ID, &ev.Signature, &ev.ProgramID, &ev.EventName, &raw, &ev.Slot, &blockTime, &ev.CreatedAt); err != nil {
		return nil, err
	}
	if blockTime.Valid {
		ev.BlockTime = &blockTime.Int64
	}
	if err := json.Unmarshal(raw, &ev.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
	}
	return &ev, nil
}

func (r *eventRepository) SaveBatch(ctx context.Context, events []*storage.EventModel) error {
	query := `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	return storage.ExecInTx(ctx, r.db, query, len(events), func(stmt *sql.Stmt, i int) error {
		ev := events[i]
		raw, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event data at index %d: %w", i, err)
		}
		_, err = stmt.ExecContext(ctx, ev.ID, ev.Signature, ev.ProgramID, ev.EventName, raw, ev.Slot, ev.BlockTime, ev.CreatedAt)
		return err
	})
}

func (r *eventRepository) FindBySignature(ctx context.Context, signature string) ([]*storage.EventModel, error) {
	return queryMany(ctx, r.db, `SELECT `+eventColumns+` FROM events WHERE signature = ? ORDER BY created_at`, scanEvent, signature)
}

func (r *eventRepository) FindByEventName(ctx context.Context, eventName string, limit int, offset int) ([]*storage.EventModel, error) {
	return queryMany(ctx, r.db, `SELECT `+eventColumns+`
		FROM events WHERE event_name = ? ORDER BY slot DESC LIMIT ? OFFSET ?`,
		scanEvent, eventName, limitArg(limit), offset)
}

const tokenAccountColumns = `id, address, mint, owner, amount, delegate, delegated_amount, is_native, close_authority, slot, updated_at, created_at`

type tokenAccountRepository struct {
	db *sql.DB
}

func scanTokenAccount(row scanner) (*storage.TokenAccountModel, error) {
	var (
		ta                       storage.TokenAccountModel
		delegate, closeAuthority sql.NullString
	)
	if err := row.Scan(&ta.ID, &ta.Address, &ta.Mint, &ta.Owner, &ta.Amount, &delegate, &ta.DelegatedAmount,
		&ta.IsNative, &closeAuthority, &ta.Slot, &ta.UpdatedAt, &ta.CreatedAt); err != nil {
		return nil, err
	}
	if delegate.Valid {
		ta.Delegate = &delegate.String
	}
	if closeAuthority.Valid {
		ta.CloseAuthority = &closeAuthority.String
	}
	return &ta, nil
}

func (r *tokenAccountRepository) SaveBatch(ctx context.Context, tokenAccounts []*storage.TokenAccountModel) error {
	query := `
		INSERT INTO token_accounts (` + tokenAccountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			mint = VALUES(mint),
			owner = VALUES(owner),
			amount = VALUES(amount),
			delegate = VALUES(delegate),
			delegated_amount = VALUES(delegated_amount),
			is_native = VALUES(is_native),
			close_authority = VALUES(close_authority),
			slot = VALUES(slot),
			updated_at = VALUES(updated_at)
	`
	return storage.ExecInTx(ctx, r.db, query, len(tokenAccounts), func(stmt *sql.Stmt, i int) error {
		ta := tokenAccounts[i]
		_, err := stmt.ExecContext(ctx, ta.ID, ta.Address, ta.Mint, ta.Owner, ta.Amount, ta.Delegate, ta.DelegatedAmount,
			ta.IsNative, ta.CloseAuthority, ta.Slot, ta.UpdatedAt, ta.CreatedAt)
		return err
	})
}

func (r *tokenAccountRepository) FindByAddress(ctx context.Context, address string) (*storage.TokenAccountModel, error) {
	return queryOne(ctx, r.db, `SELECT `+tokenAccountColumns+` FROM token_accounts WHERE address = ?`, scanTokenAccount, address)
}

func (r *tokenAccountRepository) FindByOwner(ctx context.Context, owner string, limit int, offset int) ([]*storage.TokenAccountModel, error) {
	return queryMany(ctx, r.db, `SELECT `+tokenAccountColumns+`
		FROM token_accounts WHERE owner = ? ORDER BY address LIMIT ? OFFSET ?`,
		scanTokenAccount, owner, limitArg(limit), offset)
}

func (r *tokenAccountRepository) FindByMint(ctx context.Context, mint string, limit int, offset int) ([]*storage.TokenAccountModel, error) {
	return queryMany(ctx, r.db, `SELECT `+tokenAccountColumns+`
		FROM token_accounts WHERE mint = ? ORDER BY address LIMIT ? OFFSET ?`,
		scanTokenAccount, mint, limitArg(limit), offset)
}
