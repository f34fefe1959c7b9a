// Package postgres stores committed ledger records in PostgreSQL through a
// pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lugondev/fixed-ratio-trading/internal/config"
	"github.com/lugondev/fixed-ratio-trading/internal/storage"
)

func init() {
	storage.RegisterPostgresFactory(func(ctx context.Context, cfg *config.PostgresConfig) (storage.Repository, error) {
		repo, err := NewPostgresRepository(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres repository: %w", err)
		}
		return repo, nil
	})
}

type PostgresRepository struct {
	pool             *pgxpool.Pool
	accountRepo      *accountRepository
	transactionRepo  *transactionRepository
	instructionRepo  *instructionRepository
	eventRepo        *eventRepository
	tokenAccountRepo *tokenAccountRepository
}

// ConnString renders cfg as a pgx connection URL.
func ConnString(cfg *config.PostgresConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)
}

// NewPostgresRepository connects, then brings the schema up to date.
func NewPostgresRepository(ctx context.Context, cfg *config.PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.ConnMaxLifetime) * time.Second
	}
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := NewMigrator(pool, slog.Default()).Up(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresRepository{
		pool:             pool,
		accountRepo:      &accountRepository{pool: pool},
		transactionRepo:  &transactionRepository{pool: pool},
		instructionRepo:  &instructionRepository{pool: pool},
		eventRepo:        &eventRepository{pool: pool},
		tokenAccountRepo: &tokenAccountRepository{pool: pool},
	}, nil
}

func (r *PostgresRepository) Accounts() storage.AccountRepository {
	return r.accountRepo
}

func (r *PostgresRepository) Transactions() storage.TransactionRepository {
	return r.transactionRepo
}

func (r *PostgresRepository) Instructions() storage.InstructionRepository {
	return r.instructionRepo
}

func (r *PostgresRepository) Events() storage.EventRepository {
	return r.eventRepo
}

func (r *PostgresRepository) TokenAccounts() storage.TokenAccountRepository {
	return r.tokenAccountRepo
}

func (r *PostgresRepository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
