package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

const tableOptions = `ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`

var migrations = []Migration{
	{
		Version:     1,
		Description: "Ledger accounts and transactions",
		Up: `
		CREATE TABLE IF NOT EXISTS accounts (
			id VARCHAR(64) PRIMARY KEY,
			pubkey VARCHAR(64) UNIQUE NOT NULL,
			lamports BIGINT UNSIGNED NOT NULL,
			data LONGBLOB,
			owner VARCHAR(64) NOT NULL,
			executable BOOLEAN NOT NULL,
			rent_epoch BIGINT UNSIGNED NOT NULL,
			slot BIGINT UNSIGNED NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_accounts_owner (owner)
		) ` + tableOptions + `;

		CREATE TABLE IF NOT EXISTS transactions (
			id VARCHAR(64) PRIMARY KEY,
			signature VARCHAR(128) UNIQUE NOT NULL,
			slot BIGINT UNSIGNED NOT NULL,
			block_time BIGINT,
			fee BIGINT UNSIGNED NOT NULL,
			success BOOLEAN NOT NULL,
			error_message TEXT,
			error_code INT UNSIGNED,
			account_keys JSON NOT NULL,
			num_instructions INT NOT NULL,
			num_inner_instructions INT NOT NULL,
			log_messages JSON,
			compute_units_consumed BIGINT UNSIGNED NOT NULL,
			return_data BLOB,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_transactions_slot (slot DESC)
		) ` + tableOptions + `;
		`,
		Down: `
		DROP TABLE IF EXISTS transactions;
		DROP TABLE IF EXISTS accounts;
		`,
	},
	{
		Version:     2,
		Description: "Instructions, program events and token accounts",
		Up: `
		CREATE TABLE IF NOT EXISTS instructions (
			id VARCHAR(64) PRIMARY KEY,
			signature VARCHAR(128) NOT NULL,
			instruction_index INT NOT NULL,
			program_id VARCHAR(64) NOT NULL,
			name VARCHAR(64),
			data BLOB,
			accounts JSON NOT NULL,
			is_inner BOOLEAN NOT NULL,
			inner_index INT,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_instructions_signature (signature),
			INDEX idx_instructions_program_name (program_id, name)
		) ` + tableOptions + `;

		CREATE TABLE IF NOT EXISTS events (
			id VARCHAR(64) PRIMARY KEY,
			signature VARCHAR(128) NOT NULL,
			program_id VARCHAR(64) NOT NULL,
			event_name VARCHAR(64) NOT NULL,
			data JSON NOT NULL,
			slot BIGINT UNSIGNED NOT NULL,
			block_time BIGINT,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_events_signature (signature),
			INDEX idx_events_event_name (event_name, slot DESC)
		) ` + tableOptions + `;

		CREATE TABLE IF NOT EXISTS token_accounts (
			id VARCHAR(64) PRIMARY KEY,
			address VARCHAR(64) UNIQUE NOT NULL,
			mint VARCHAR(64) NOT NULL,
			owner VARCHAR(64) NOT NULL,
			amount BIGINT UNSIGNED NOT NULL,
			delegate VARCHAR(64),
			delegated_amount BIGINT UNSIGNED NOT NULL,
			is_native BOOLEAN NOT NULL,
			close_authority VARCHAR(64),
			slot BIGINT UNSIGNED NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_token_accounts_owner (owner),
			INDEX idx_token_accounts_mint (mint)
		) ` + tableOptions + `;
		`,
		Down: `
		DROP TABLE IF EXISTS token_accounts;
		DROP TABLE IF EXISTS events;
		DROP TABLE IF EXISTS instructions;
		`,
	},
}

type Migrator struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewMigrator(db *sql.DB, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, logger: logger}
}

// Up applies pending migrations one transaction each. MySQL commits DDL
// implicitly, so a failed migration may leave its tables behind.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	for _, migration := range migrations {
		applied, err := m.isApplied(ctx, migration.Version)
		if err != nil {
			return fmt.Errorf("failed to check if migration %d is applied: %w", migration.Version, err)
		}
		if applied {
			continue
		}
		if err := m.run(ctx, migration.Up, `INSERT INTO schema_migrations (version, description) VALUES (?, ?)`,
			migration.Version, migration.Description); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
		m.logger.Info("applied mysql migration", "version", migration.Version, "description", migration.Description)
	}
	return nil
}

// Down reverts every applied migration newer than targetVersion.
func (m *Migrator) Down(ctx context.Context, targetVersion int) error {
	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if migration.Version <= targetVersion {
			break
		}
		applied, err := m.isApplied(ctx, migration.Version)
		if err != nil {
			return fmt.Errorf("failed to check if migration %d is applied: %w", migration.Version, err)
		}
		if !applied {
			continue
		}
		if err := m.run(ctx, migration.Down, `DELETE FROM schema_migrations WHERE version = ?`, migration.Version); err != nil {
			return fmt.Errorf("failed to revert migration %d: %w", migration.Version, err)
		}
		m.logger.Info("reverted mysql migration", "version", migration.Version)
	}
	return nil
}

func (m *Migrator) ensureMigrationsTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		description VARCHAR(255) NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	) `+tableOptions)
	return err
}

func (m *Migrator) isApplied(ctx context.Context, version int) (bool, error) {
	var count int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (m *Migrator) run(ctx context.Context, ddl, record string, args ...any) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return err
	}
	return tx.Commit()
}
