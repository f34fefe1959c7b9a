package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/lugondev/fixed-ratio-trading/internal/config"
)

// Backends register themselves from their package init, so a binary links
// only the drivers it imports.
var (
	factoriesMu     sync.RWMutex
	memoryFactory   func(context.Context) (Repository, error)
	mongoFactory    func(context.Context, *config.MongoDBConfig) (Repository, error)
	postgresFactory func(context.Context, *config.PostgresConfig) (Repository, error)
	mysqlFactory    func(context.Context, *config.MySQLConfig) (Repository, error)
)

func RegisterMemoryFactory(factory func(context.Context) (Repository, error)) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	memoryFactory = factory
}

func RegisterMongoFactory(factory func(context.Context, *config.MongoDBConfig) (Repository, error)) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	mongoFactory = factory
}

func RegisterPostgresFactory(factory func(context.Context, *config.PostgresConfig) (Repository, error)) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	postgresFactory = factory
}

func RegisterMySQLFactory(factory func(context.Context, *config.MySQLConfig) (Repository, error)) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	mysqlFactory = factory
}

func notRegistered(backend string) error {
	return fmt.Errorf("%s backend not registered: import _ \"github.com/lugondev/fixed-ratio-trading/internal/storage/%s\"", backend, backend)
}

func NewMemoryRepository(ctx context.Context) (Repository, error) {
	factoriesMu.RLock()
	f := memoryFactory
	factoriesMu.RUnlock()
	if f == nil {
		return nil, notRegistered("memory")
	}
	return f(ctx)
}

func NewMongoRepositoryFromConfig(ctx context.Context, cfg *config.MongoDBConfig) (Repository, error) {
	factoriesMu.RLock()
	f := mongoFactory
	factoriesMu.RUnlock()
	if f == nil {
		return nil, notRegistered("mongo")
	}
	return f(ctx, cfg)
}

func NewPostgresRepositoryFromConfig(ctx context.Context, cfg *config.PostgresConfig) (Repository, error) {
	factoriesMu.RLock()
	f := postgresFactory
	factoriesMu.RUnlock()
	if f == nil {
		return nil, notRegistered("postgres")
	}
	return f(ctx, cfg)
}

func NewMySQLRepositoryFromConfig(ctx context.Context, cfg *config.MySQLConfig) (Repository, error) {
	factoriesMu.RLock()
	f := mysqlFactory
	factoriesMu.RUnlock()
	if f == nil {
		return nil, notRegistered("mysql")
	}
	return f(ctx, cfg)
}
