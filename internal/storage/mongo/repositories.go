package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lugondev/fixed-ratio-trading/internal/storage"
)

func findAll[T any](ctx context.Context, c *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]*T, error) {
	cursor, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findOne[T any](ctx context.Context, c *mongo.Collection, filter bson.M) (*T, error) {
	var out T
	if err := c.FindOne(ctx, filter).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

// page builds find options; a non-positive limit means no limit.
func page(limit, offset int, sort bson.D) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return opts
}

// snapshotUpsert overwrites doc under filter while keeping the first
// created_at and _id.
func snapshotUpsert(filter bson.M, doc any) (mongo.WriteModel, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	onInsert := bson.M{"created_at": fields["created_at"]}
	if id, ok := fields["_id"]; ok {
		onInsert["_id"] = id
	}
	delete(fields, "created_at")
	delete(fields, "_id")
	return mongo.NewUpdateOneModel().
		SetFilter(filter).
		SetUpdate(bson.M{"$set": fields, "$setOnInsert": onInsert}).
		SetUpsert(true), nil
}

type accountRepository struct {
	collection *mongo.Collection
	tokens     *mongo.Collection
}

func (r *accountRepository) Save(ctx context.Context, account *storage.AccountModel) error {
	return r.SaveBatch(ctx, []*storage.AccountModel{account})
}

func (r *accountRepository) SaveBatch(ctx context.Context, accounts []*storage.AccountModel) error {
	if len(accounts) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(accounts))
	for _, a := range accounts {
		m, err := snapshotUpsert(bson.M{"pubkey": a.Pubkey}, a)
		if err != nil {
			return err
		}
		models = append(models, m)
	}
	_, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}

func (r *accountRepository) FindByPubkey(ctx context.Context, pubkey string) (*storage.AccountModel, error) {
	return findOne[storage.AccountModel](ctx, r.collection, bson.M{"pubkey": pubkey})
}

func (r *accountRepository) FindByOwner(ctx context.Context, owner string, limit int, offset int) ([]*storage.AccountModel, error) {
	return findAll[storage.AccountModel](ctx, r.collection, bson.M{"owner": owner},
		page(limit, offset, bson.D{{Key: "pubkey", Value: 1}}))
}

// Delete drops the snapshot and any token account decoded from it.
func (r *accountRepository) Delete(ctx context.Context, pubkey string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"pubkey": pubkey}); err != nil {
		return err
	}
	_, err := r.tokens.DeleteOne(ctx, bson.M{"address": pubkey})
	return err
}

type transactionRepository struct {
	collection *mongo.Collection
}

func (r *transactionRepository) Save(ctx context.Context, tx *storage.TransactionModel) error {
	_, err := r.collection.InsertOne(ctx, tx)
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrDuplicate
	}
	return err
}

func (r *transactionRepository) FindBySignature(ctx context.Context, signature string) (*storage.TransactionModel, error) {
	return findOne[storage.TransactionModel](ctx, r.collection, bson.M{"signature": signature})
}

func (r *transactionRepository) FindBySlot(ctx context.Context, slot uint64) ([]*storage.TransactionModel, error) {
	return findAll[storage.TransactionModel](ctx, r.collection, bson.M{"slot": slot}, nil)
}

func (r *transactionRepository) FindByAccountKey(ctx context.Context, accountKey string, limit int, offset int) ([]*storage.TransactionModel, error) {
	return findAll[storage.TransactionModel](ctx, r.collection, bson.M{"account_keys": accountKey},
		page(limit, offset, bson.D{{Key: "slot", Value: -1}}))
}

func (r *transactionRepository) FindRecent(ctx context.Context, limit int) ([]*storage.TransactionModel, error) {
	return findAll[storage.TransactionModel](ctx, r.collection, bson.M{},
		page(limit, 0, bson.D{{Key: "slot", Value: -1}}))
}

func (r *transactionRepository) FindFailed(ctx context.Context, code *uint32, limit int, offset int) ([]*storage.TransactionModel, error) {
	filter := bson.M{"success": false}
	if code != nil {
		filter["error_code"] = *code
	}
	return findAll[storage.TransactionModel](ctx, r.collection, filter,
		page(limit, offset, bson.D{{Key: "slot", Value: -1}}))
}

type instructionRepository struct {
	collection *mongo.Collection
}

func (r *instructionRepository) SaveBatch(ctx context.Context, instructions []*storage.InstructionModel) error {
	return storage.InsertDocuments(ctx, r.collection, instructions)
}

func (r *instructionRepository) FindBySignature(ctx context.Context, signature string) ([]*storage.InstructionModel, error) {
	// A missing inner_index sorts before any value.
	return findAll[storage.InstructionModel](ctx, r.collection, bson.M{"signature": signature},
		options.Find().SetSort(bson.D{{Key: "instruction_index", Value: 1}, {Key: "inner_index", Value: 1}}))
}

func (r *instructionRepository) FindByName(ctx context.Context, programID, name string, limit int, offset int) ([]*storage.InstructionModel, error) {
	return findAll[storage.InstructionModel](ctx, r.collection, bson.M{"program_id": programID, "name": name},
		page(limit, offset, bson.D{{Key: "created_at", Value: 1}}))
}

type eventRepository struct {
	collection *mongo.Collection
}

func (r *eventRepository) SaveBatch(ctx context.Context, events []*storage.EventModel) error {
	return storage.InsertDocuments(ctx, r.collection, events)
}

func (r *eventRepository) FindBySignature(ctx context.Context, signature string) ([]*storage.EventModel, error) {
	return findAll[storage.EventModel](ctx, r.collection, bson.M{"signature": signature},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (r *eventRepository) FindByEventName(ctx context.Context, eventName string, limit int, offset int) ([]*storage.EventModel, error) {
	return findAll[storage.EventModel](ctx, r.collection, bson.M{"event_name": eventName},
		page(limit, offset, bson.D{{Key: "slot", Value: -1}}))
}

type tokenAccountRepository struct {
	collection *mongo.Collection
}

func (r *tokenAccountRepository) SaveBatch(ctx context.Context, tokenAccounts []*storage.TokenAccountModel) error {
	if len(tokenAccounts) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(tokenAccounts))
	for _, ta := range tokenAccounts {
		m, err := snapshotUpsert(bson.M{"address": ta.Address}, ta)
		if err != nil {
			return err
		}
		models = append(models, m)
	}
	_, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}

func (r *tokenAccountRepository) FindByAddress(ctx context.Context, address string) (*storage.TokenAccountModel, error) {
	return findOne[storage.TokenAccountModel](ctx, r.collection, bson.M{"address": address})
}

func (r *tokenAccountRepository) FindByOwner(ctx context.Context, owner string, limit int, offset int) ([]*storage.TokenAccountModel, error) {
	return findAll[storage.TokenAccountModel](ctx, r.collection, bson.M{"owner": owner},
		page(limit, offset, bson.D{{Key: "address", Value: 1}}))
}

func (r *tokenAccountRepository) FindByMint(ctx context.Context, mint string, limit int, offset int) ([]*storage.TokenAccountModel, error) {
	return findAll[storage.TokenAccountModel](ctx, r.collection, bson.M{"mint": mint},
		page(limit, offset, bson.D{{Key: "address", Value: 1}}))
}
