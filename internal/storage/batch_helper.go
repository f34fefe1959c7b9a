package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
)

// Bulk writers shared by the backends. Each call writes every row or fails.

// InsertDocuments stores docs with a single ordered InsertMany.
func InsertDocuments[T any](ctx context.Context, coll *mongo.Collection, docs []T) error {
	if len(docs) == 0 {
		return nil
	}
	batch := make([]interface{}, len(docs))
	for i, d := range docs {
		batch[i] = d
	}
	if _, err := coll.InsertMany(ctx, batch); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", coll.Name(), ErrDuplicate)
		}
		return fmt.Errorf("insert into %s: %w", coll.Name(), err)
	}
	return nil
}

// SendBatch queues n statements on one pgx batch and checks every result.
func SendBatch(ctx context.Context, pool *pgxpool.Pool, n int, queue func(b *pgx.Batch, i int)) error {
	if n == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for i := 0; i < n; i++ {
		queue(b, i)
	}

	results := pool.SendBatch(ctx, b)
	for i := 0; i < n; i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return results.Close()
}

// ExecInTx prepares query once and runs exec for rows 0..n-1 in a single
// transaction.
func ExecInTx(ctx context.Context, db *sql.DB, query string, n int, exec func(stmt *sql.Stmt, i int) error) error {
	if n == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return tx.Commit()
}
