// Package mysql stores committed ledger records in MySQL through
// database/sql and go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/lugondev/fixed-ratio-trading/internal/config"
	"github.com/lugondev/fixed-ratio-trading/internal/storage"
)

func init() {
	storage.RegisterMySQLFactory(func(ctx context.Context, cfg *config.MySQLConfig) (storage.Repository, error) {
		repo, err := NewMySQLRepository(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create mysql repository: %w", err)
		}
		return repo, nil
	})
}

type MySQLRepository struct {
	db               *sql.DB
	accountRepo      *accountRepository
	transactionRepo  *transactionRepository
	instructionRepo  *instructionRepository
	eventRepo        *eventRepository
	tokenAccountRepo *tokenAccountRepository
}

// DSN renders cfg through the driver's own config type.
func DSN(cfg *config.MySQLConfig) string {
	dc := mysql.NewConfig()
	dc.User = cfg.User
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = cfg.Host + ":" + strconv.Itoa(cfg.Port)
	dc.DBName = cfg.Database
	dc.ParseTime = true
	dc.MultiStatements = true
	if cfg.SSLMode != "" && cfg.SSLMode != "false" && cfg.SSLMode != "disable" {
		dc.TLSConfig = cfg.SSLMode
	}
	return dc.FormatDSN()
}

func NewMySQLRepository(ctx context.Context, cfg *config.MySQLConfig) (*MySQLRepository, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := NewMigrator(db, slog.Default()).Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &MySQLRepository{
		db:               db,
		accountRepo:      &accountRepository{db: db},
		transactionRepo:  &transactionRepository{db: db},
		instructionRepo:  &instructionRepository{db: db},
		eventRepo:        &eventRepository{db: db},
		tokenAccountRepo: &tokenAccountRepository{db: db},
	}, nil
}

func (r *MySQLRepository) Accounts() storage.AccountRepository           { return r.accountRepo }
func (r *MySQLRepository) Transactions() storage.TransactionRepository   { return r.transactionRepo }
func (r *MySQLRepository) Instructions() storage.InstructionRepository   { return r.instructionRepo }
func (r *MySQLRepository) Events() storage.EventRepository               { return r.eventRepo }
func (r *MySQLRepository) TokenAccounts() storage.TokenAccountRepository { return r.tokenAccountRepo }

func (r *MySQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *MySQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
