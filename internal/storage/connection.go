package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/lugondev/fixed-ratio-trading/internal/common"
	"github.com/lugondev/fixed-ratio-trading/internal/config"
)

// Backend names accepted in database.type.
const (
	BackendMemory   = "memory"
	BackendMongoDB  = "mongodb"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

const pingAttempts = 3

// ConnectionManager opens the configured backend once and hands out the
// same repository afterwards.
type ConnectionManager struct {
	common.LoggerMixin
	config *config.DatabaseConfig
	repo   Repository
}

func NewConnectionManager(cfg *config.DatabaseConfig) (*ConnectionManager, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("database is not enabled in configuration")
	}
	return &ConnectionManager{LoggerMixin: common.NewLoggerMixin(), config: cfg}, nil
}

func (cm *ConnectionManager) open(ctx context.Context) (Repository, error) {
	switch cm.config.Type {
	case BackendMemory, "":
		return NewMemoryRepository(ctx)
	case BackendMongoDB:
		return NewMongoRepositoryFromConfig(ctx, &cm.config.MongoDB)
	case BackendPostgres:
		return NewPostgresRepositoryFromConfig(ctx, &cm.config.Postgres)
	case BackendMySQL:
		return NewMySQLRepositoryFromConfig(ctx, &cm.config.MySQL)
	}
	return nil, fmt.Errorf("unsupported database type: %s", cm.config.Type)
}

// Connect opens the backend and pings it, retrying the ping a few times
// while the server comes up.
func (cm *ConnectionManager) Connect(ctx context.Context) (Repository, error) {
	if cm.repo != nil {
		return cm.repo, nil
	}

	repo, err := cm.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, repo.Ping(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(pingAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			cm.GetLogger().Warn("database ping failed", "type", cm.config.Type, "error", err, "retry_in", wait)
		}),
	)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cm.repo = repo
	return repo, nil
}

// Repository returns the open repository, if Connect succeeded.
func (cm *ConnectionManager) Repository() (Repository, bool) {
	return cm.repo, cm.repo != nil
}

func (cm *ConnectionManager) Close() error {
	if cm.repo == nil {
		return nil
	}
	err := cm.repo.Close()
	cm.repo = nil
	return err
}
