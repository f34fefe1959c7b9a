// Package mongo stores committed ledger records in MongoDB, one collection
// per record kind.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/lugondev/fixed-ratio-trading/internal/config"
	"github.com/lugondev/fixed-ratio-trading/internal/storage"
)

func init() {
	storage.RegisterMongoFactory(func(ctx context.Context, cfg *config.MongoDBConfig) (storage.Repository, error) {
		repo, err := NewMongoRepository(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create mongo repository: %w", err)
		}
		return repo, nil
	})
}

type MongoRepository struct {
	client           *mongo.Client
	database         *mongo.Database
	accountRepo      *accountRepository
	transactionRepo  *transactionRepository
	instructionRepo  *instructionRepository
	eventRepo        *eventRepository
	tokenAccountRepo *tokenAccountRepository
}

func NewMongoRepository(ctx context.Context, cfg *config.MongoDBConfig) (*MongoRepository, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetConnectTimeout(time.Duration(cfg.ConnectTimeout) * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)
	repo := &MongoRepository{
		client:           client,
		database:         db,
		accountRepo:      &accountRepository{collection: db.Collection("accounts"), tokens: db.Collection("token_accounts")},
		transactionRepo:  &transactionRepository{collection: db.Collection("transactions")},
		instructionRepo:  &instructionRepository{collection: db.Collection("instructions")},
		eventRepo:        &eventRepository{collection: db.Collection("events")},
		tokenAccountRepo: &tokenAccountRepository{collection: db.Collection("token_accounts")},
	}

	if err := repo.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return repo, nil
}

func (r *MongoRepository) createIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		"accounts": {
			{Keys: bson.D{{Key: "pubkey", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "pubkey", Value: 1}}},
		},
		"transactions": {
			{Keys: bson.D{{Key: "signature", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "slot", Value: -1}}},
			{Keys: bson.D{{Key: "account_keys", Value: 1}, {Key: "slot", Value: -1}}},
		},
		"instructions": {
			{Keys: bson.D{{Key: "signature", Value: 1}, {Key: "instruction_index", Value: 1}, {Key: "inner_index", Value: 1}}},
			{Keys: bson.D{{Key: "program_id", Value: 1}, {Key: "name", Value: 1}}},
		},
		"events": {
			{Keys: bson.D{{Key: "signature", Value: 1}}},
			{Keys: bson.D{{Key: "event_name", Value: 1}, {Key: "slot", Value: -1}}},
		},
		"token_accounts": {
			{Keys: bson.D{{Key: "address", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "owner", Value: 1}}},
			{Keys: bson.D{{Key: "mint", Value: 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := r.database.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (r *MongoRepository) Accounts() storage.AccountRepository           { return r.accountRepo }
func (r *MongoRepository) Transactions() storage.TransactionRepository   { return r.transactionRepo }
func (r *MongoRepository) Instructions() storage.InstructionRepository   { return r.instructionRepo }
func (r *MongoRepository) Events() storage.EventRepository               { return r.eventRepo }
func (r *MongoRepository) TokenAccounts() storage.TokenAccountRepository { return r.tokenAccountRepo }

func (r *MongoRepository) Close() error {
	if r.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.client.Disconnect(ctx)
	}
	return nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}
