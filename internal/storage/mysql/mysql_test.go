package mysql

import (
	"context"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lugondev/fixed-ratio-trading/internal/config"
	"github.com/lugondev/fixed-ratio-trading/internal/storage"
)

func TestDSN(t *testing.T) {
	dsn := DSN(&config.MySQLConfig{
		Host:     "db.internal",
		Port:     3307,
		User:     "fixedratio",
		Password: "secret",
		Database: "ledger",
		SSLMode:  "disable",
	})
	if !strings.HasPrefix(dsn, "fixedratio:secret@tcp(db.internal:3307)/ledger?") {
		t.Errorf("unexpected dsn %q", dsn)
	}
	for _, want := range []string{"parseTime=true", "multiStatements=true"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q lacks %s", dsn, want)
		}
	}
	if strings.Contains(dsn, "tls=") {
		t.Errorf("disabled ssl still set tls: %q", dsn)
	}
}

func TestLimitArg(t *testing.T) {
	if got := limitArg(0); got != math.MaxUint64 {
		t.Errorf("limitArg(0) = %d", got)
	}
	if got := limitArg(25); got != 25 {
		t.Errorf("limitArg(25) = %d", got)
	}
}

// testRepository connects to the database named by FIXEDRATIO_TEST_MYSQL_HOST,
// skipping the test when it is unset.
func testRepository(t *testing.T) *MySQLRepository {
	t.Helper()
	host := os.Getenv("FIXEDRATIO_TEST_MYSQL_HOST")
	if host == "" {
		t.Skip("FIXEDRATIO_TEST_MYSQL_HOST not set")
	}
	repo, err := NewMySQLRepository(context.Background(), &config.MySQLConfig{
		Host:            host,
		Port:            3306,
		User:            "fixedratio",
		Password:        "fixedratio",
		Database:        "fixedratio_test",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 60,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestAccountSnapshotRoundTrip(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	pubkey := uuid.NewString()
	account := &storage.AccountModel{
		ID:        pubkey,
		Pubkey:    pubkey,
		Lamports:  1_000_000,
		Data:      []byte{1, 2, 3},
		Owner:     "11111111111111111111111111111111",
		Slot:      42,
		UpdatedAt: now,
		CreatedAt: now,
	}
	if err := repo.Accounts().Save(ctx, account); err != nil {
		t.Fatalf("save: %v", err)
	}
	account.Lamports = 7
	if err := repo.Accounts().SaveBatch(ctx, []*storage.AccountModel{account}); err != nil {
		t.Fatalf("save batch: %v", err)
	}

	found, err := repo.Accounts().FindByPubkey(ctx, pubkey)
	if err != nil || found == nil {
		t.Fatalf("find: %v, %v", found, err)
	}
	if found.Lamports != 7 {
		t.Errorf("lamports = %d, want 7", found.Lamports)
	}

	if err := repo.Accounts().Delete(ctx, pubkey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gone, _ := repo.Accounts().FindByPubkey(ctx, pubkey); gone != nil {
		t.Error("account still present after delete")
	}
}

func TestTransactionDuplicateSignature(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	code := uint32(6)
	tx := &storage.TransactionModel{
		ID:           uuid.NewString(),
		Signature:    uuid.NewString(),
		Slot:         9,
		ErrorMessage: "custom program error: 0x6",
		ErrorCode:    &code,
		AccountKeys:  []string{"payer", "pool"},
		CreatedAt:    time.Now(),
	}
	if err := repo.Transactions().Save(ctx, tx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Transactions().Save(ctx, tx); err != storage.ErrDuplicate {
		t.Errorf("second save = %v, want ErrDuplicate", err)
	}

	found, err := repo.Transactions().FindBySignature(ctx, tx.Signature)
	if err != nil || found == nil {
		t.Fatalf("find: %v, %v", found, err)
	}
	if found.ErrorCode == nil || *found.ErrorCode != code {
		t.Errorf("error code = %v", found.ErrorCode)
	}

	byKey, err := repo.Transactions().FindByAccountKey(ctx, "pool", 0, 0)
	if err != nil || len(byKey) == 0 {
		t.Errorf("FindByAccountKey = %d, %v", len(byKey), err)
	}
}
