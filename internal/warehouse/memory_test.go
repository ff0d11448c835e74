package warehouse

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/Matheus920/ledger-loader/internal/domain"
	"github.com/Matheus920/ledger-loader/internal/lineage"
)

func testRun(id string) lineage.Run {
	return lineage.Run{ID: id, StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func testAccount(id int64, name string) domain.Account {
	return domain.Account{
		ID:       id,
		Name:     name,
		Type:     "Asset",
		SubType:  "CurrentAsset",
		IsActive: true,
	}
}

func testTransaction(id int64, amount string) domain.Transaction {
	total, _ := new(big.Rat).SetString(amount)
	return domain.Transaction{
		ID:              id,
		Date:            civil.Date{Year: 2026, Month: 2, Day: 14},
		TransactionType: "Bill",
		TotalAmount:     total,
		JournalMemo:     "February rent",
	}
}

func stageBatch(t *testing.T, w *MemoryWarehouse, run lineage.Run, accounts []domain.Account, transactions []domain.Transaction, bridge []domain.AccountTransaction) {
	t.Helper()
	ctx := context.Background()
	stagedAt := run.StartedAt

	if err := w.StageAccounts(ctx, AccountRows(accounts, run, stagedAt)); err != nil {
		t.Fatalf("StageAccounts: %v", err)
	}
	txRows, err := TransactionRows(transactions, run, stagedAt)
	if err != nil {
		t.Fatalf("TransactionRows: %v", err)
	}
	if err := w.StageTransactions(ctx, txRows); err != nil {
		t.Fatalf("StageTransactions: %v", err)
	}
	if err := w.StageAccountTransactions(ctx, AccountTransactionRows(bridge, run, stagedAt)); err != nil {
		t.Fatalf("StageAccountTransactions: %v", err)
	}
}

func mergeAll(t *testing.T, w *MemoryWarehouse, runID string) MergeStats {
	t.Helper()
	ctx := context.Background()

	var total MergeStats
	stats, err := w.MergeAccounts(ctx, runID)
	if err != nil {
		t.Fatalf("MergeAccounts: %v", err)
	}
	total = total.Add(stats)
	stats, err = w.MergeTransactions(ctx, runID)
	if err != nil {
		t.Fatalf("MergeTransactions: %v", err)
	}
	total = total.Add(stats)
	stats, err = w.MergeAccountTransactions(ctx, runID)
	if err != nil {
		t.Fatalf("MergeAccountTransactions: %v", err)
	}
	return total.Add(stats)
}

func TestMergeIdempotent(t *testing.T) {
	w := NewMemoryWarehouse()
	accounts := []domain.Account{testAccount(40, "Rent Income")}
	transactions := []domain.Transaction{testTransaction(100, "125.46")}
	bridge := []domain.AccountTransaction{{AccountID: 40, TransactionID: 100}}

	stageBatch(t, w, testRun("run-1"), accounts, transactions, bridge)
	first := mergeAll(t, w, "run-1")
	if first.Inserted != 3 || first.Updated != 0 {
		t.Fatalf("first merge = %+v, want 3 inserted, 0 updated", first)
	}

	stageBatch(t, w, testRun("run-2"), accounts, transactions, bridge)
	second := mergeAll(t, w, "run-2")
	if second.Inserted != 0 || second.Updated != 0 {
		t.Fatalf("second merge = %+v, want no changes", second)
	}

	gotAccounts, gotTransactions, gotBridge := w.ProductionCounts()
	if gotAccounts != 1 || gotTransactions != 1 || gotBridge != 1 {
		t.Fatalf("production counts = (%d, %d, %d), want (1, 1, 1)", gotAccounts, gotTransactions, gotBridge)
	}
}

func TestMergeUpdatesChangedAttributesOnly(t *testing.T) {
	w := NewMemoryWarehouse()
	inserted := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return inserted }

	stageBatch(t, w, testRun("run-1"), []domain.Account{testAccount(40, "Rent Income")}, nil, nil)
	if _, err := w.MergeAccounts(context.Background(), "run-1"); err != nil {
		t.Fatalf("MergeAccounts: %v", err)
	}

	w.now = func() time.Time { return inserted.Add(24 * time.Hour) }
	renamed := testAccount(40, "Rental Income")
	stageBatch(t, w, testRun("run-2"), []domain.Account{renamed}, nil, nil)
	stats, err := w.MergeAccounts(context.Background(), "run-2")
	if err != nil {
		t.Fatalf("MergeAccounts: %v", err)
	}
	if stats.Inserted != 0 || stats.Updated != 1 {
		t.Fatalf("stats = %+v, want 1 updated", stats)
	}

	row, ok := w.AccountProduction(40)
	if !ok {
		t.Fatal("account 40 missing from production")
	}
	if row.Name != "Rental Income" {
		t.Fatalf("name = %q, want %q", row.Name, "Rental Income")
	}
	if !row.InsertedAt.Equal(inserted) {
		t.Fatalf("inserted_at = %v, want original %v", row.InsertedAt, inserted)
	}
}

func TestMergeDuplicateStagedRowsNewestWins(t *testing.T) {
	ctx := context.Background()
	w := NewMemoryWarehouse()
	run := testRun("run-1")
	first := testAccount(40, "Rent Income")
	second := testAccount(40, "Rental Income")

	if err := w.StageAccounts(ctx, AccountRows([]domain.Account{first}, run, run.StartedAt)); err != nil {
		t.Fatalf("StageAccounts: %v", err)
	}
	if err := w.StageAccounts(ctx, AccountRows([]domain.Account{second}, run, run.StartedAt.Add(time.Minute))); err != nil {
		t.Fatalf("StageAccounts: %v", err)
	}

	stats, err := w.MergeAccounts(ctx, "run-1")
	if err != nil {
		t.Fatalf("MergeAccounts: %v", err)
	}
	if stats.Inserted != 1 {
		t.Fatalf("stats = %+v, want 1 inserted", stats)
	}
	row, _ := w.AccountProduction(40)
	if row.Name != "Rental Income" {
		t.Fatalf("name = %q, want the newest staged row to win", row.Name)
	}
}

// Staging order must not matter: the row with the newest inserted_at wins
// even when it was staged before an older-stamped duplicate.
func TestMergeDuplicateStagedRowsOrderIndependent(t *testing.T) {
	ctx := context.Background()
	w := NewMemoryWarehouse()
	run := testRun("run-1")
	newer := testAccount(40, "Rental Income")
	older := testAccount(40, "Rent Income")

	if err := w.StageAccounts(ctx, AccountRows([]domain.Account{newer}, run, run.StartedAt.Add(time.Minute))); err != nil {
		t.Fatalf("StageAccounts: %v", err)
	}
	if err := w.StageAccounts(ctx, AccountRows([]domain.Account{older}, run, run.StartedAt)); err != nil {
		t.Fatalf("StageAccounts: %v", err)
	}

	if _, err := w.MergeAccounts(ctx, "run-1"); err != nil {
		t.Fatalf("MergeAccounts: %v", err)
	}
	row, _ := w.AccountProduction(40)
	if row.Name != "Rental Income" {
		t.Fatalf("name = %q, want the newest staged row regardless of staging order", row.Name)
	}
}

func TestMergeScopedToRun(t *testing.T) {
	w := NewMemoryWarehouse()
	stageBatch(t, w, testRun("run-1"), []domain.Account{testAccount(40, "Rent Income")}, nil, nil)
	stageBatch(t, w, testRun("run-2"), []domain.Account{testAccount(50, "Utilities")}, nil, nil)

	stats, err := w.MergeAccounts(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("MergeAccounts: %v", err)
	}
	if stats.Inserted != 1 {
		t.Fatalf("stats = %+v, want only run-1's row merged", stats)
	}
	if _, ok := w.AccountProduction(50); ok {
		t.Fatal("run-2's account leaked into a run-1 merge")
	}
}

func TestMergeBridgeOrphansRejected(t *testing.T) {
	w := NewMemoryWarehouse()
	run := testRun("run-1")
	stageBatch(t, w, run, []domain.Account{testAccount(40, "Rent Income")}, nil,
		[]domain.AccountTransaction{{AccountID: 40, TransactionID: 999}})

	if _, err := w.MergeAccounts(context.Background(), "run-1"); err != nil {
		t.Fatalf("MergeAccounts: %v", err)
	}

	_, err := w.MergeAccountTransactions(context.Background(), "run-1")
	var conflict *MergeConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want MergeConflictError", err)
	}
	if conflict.OrphanRows != 1 {
		t.Fatalf("orphan rows = %d, want 1", conflict.OrphanRows)
	}
	if _, _, bridge := w.ProductionCounts(); bridge != 0 {
		t.Fatalf("bridge rows = %d, want none applied", bridge)
	}
}

func TestMergeTransactionAmountComparedByValue(t *testing.T) {
	w := NewMemoryWarehouse()
	stageBatch(t, w, testRun("run-1"), nil, []domain.Transaction{testTransaction(100, "125.46")}, nil)
	if _, err := w.MergeTransactions(context.Background(), "run-1"); err != nil {
		t.Fatalf("MergeTransactions: %v", err)
	}

	// Same value via a different Rat representation must not update.
	same := testTransaction(100, "12546/100")
	stageBatch(t, w, testRun("run-2"), nil, []domain.Transaction{same}, nil)
	stats, err := w.MergeTransactions(context.Background(), "run-2")
	if err != nil {
		t.Fatalf("MergeTransactions: %v", err)
	}
	if stats.Inserted != 0 || stats.Updated != 0 {
		t.Fatalf("stats = %+v, want no changes for an equal amount", stats)
	}
}

func TestMergeEmptyLinesTransactionHasNoBridgeRows(t *testing.T) {
	w := NewMemoryWarehouse()
	tx := testTransaction(100, "0/1")
	stageBatch(t, w, testRun("run-1"), nil, []domain.Transaction{tx}, nil)
	if _, err := w.MergeTransactions(context.Background(), "run-1"); err != nil {
		t.Fatalf("MergeTransactions: %v", err)
	}
	if _, err := w.MergeAccountTransactions(context.Background(), "run-1"); err != nil {
		t.Fatalf("MergeAccountTransactions: %v", err)
	}

	if _, ok := w.TransactionProduction(100); !ok {
		t.Fatal("transaction 100 missing from production")
	}
	if _, _, bridge := w.ProductionCounts(); bridge != 0 {
		t.Fatalf("bridge rows = %d, want 0", bridge)
	}
}
