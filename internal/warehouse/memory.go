package warehouse

import (
	"context"
	"math/big"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
)

// bridgeKey is the composite primary key of a bridge row.
type bridgeKey struct {
	AccountID     int64
	TransactionID int64
}

// MemoryWarehouse implements Warehouse in process memory with the same
// semantics as the BigQuery implementation: duplicate-tolerant staging,
// newest-inserted-at-wins dedupe, attribute-compare updates that preserve
// inserted_at, and a referential check before the bridge merge. It backs
// dry runs and tests.
type MemoryWarehouse struct {
	mu sync.Mutex

	stagedAccounts     []*AccountRow
	stagedTransactions []*TransactionRow
	stagedBridge       []*AccountTransactionRow

	accounts     map[int64]*AccountRow
	transactions map[int64]*TransactionRow
	bridge       map[bridgeKey]*AccountTransactionRow

	// now supplies merge insertion timestamps; tests may replace it.
	now func() time.Time
}

// NewMemoryWarehouse returns an empty in-memory warehouse.
func NewMemoryWarehouse() *MemoryWarehouse {
	return &MemoryWarehouse{
		accounts:     make(map[int64]*AccountRow),
		transactions: make(map[int64]*TransactionRow),
		bridge:       make(map[bridgeKey]*AccountTransactionRow),
		now:          time.Now,
	}
}

// StageAccounts appends account rows, preserving duplicates and order.
func (w *MemoryWarehouse) StageAccounts(_ context.Context, rows []*AccountRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, row := range rows {
		copied := *row
		w.stagedAccounts = append(w.stagedAccounts, &copied)
	}
	return nil
}

// StageTransactions appends transaction rows, preserving duplicates and
// order.
func (w *MemoryWarehouse) StageTransactions(_ context.Context, rows []*TransactionRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, row := range rows {
		copied := *row
		w.stagedTransactions = append(w.stagedTransactions, &copied)
	}
	return nil
}

// StageAccountTransactions appends bridge rows, preserving duplicates and
// order.
func (w *MemoryWarehouse) StageAccountTransactions(_ context.Context, rows []*AccountTransactionRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, row := range rows {
		copied := *row
		w.stagedBridge = append(w.stagedBridge, &copied)
	}
	return nil
}

// MergeAccounts reconciles this run's staged accounts into production.
func (w *MemoryWarehouse) MergeAccounts(_ context.Context, runID string) (MergeStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var stats MergeStats
	for _, source := range lastPerKey(w.stagedAccounts, runID,
		func(r *AccountRow) int64 { return r.ID },
		func(r *AccountRow) time.Time { return r.InsertedAt }) {
		existing, ok := w.accounts[source.ID]
		if !ok {
			inserted := *source
			inserted.InsertedAt = w.now()
			w.accounts[source.ID] = &inserted
			stats.Inserted++
			continue
		}
		if accountAttributesEqual(existing, source) {
			continue
		}
		updated := *source
		updated.InsertedAt = existing.InsertedAt
		w.accounts[source.ID] = &updated
		stats.Updated++
	}
	return stats, nil
}

// MergeTransactions reconciles this run's staged transactions into
// production.
func (w *MemoryWarehouse) MergeTransactions(_ context.Context, runID string) (MergeStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var stats MergeStats
	for _, source := range lastPerKey(w.stagedTransactions, runID,
		func(r *TransactionRow) int64 { return r.ID },
		func(r *TransactionRow) time.Time { return r.InsertedAt }) {
		existing, ok := w.transactions[source.ID]
		if !ok {
			inserted := *source
			inserted.InsertedAt = w.now()
			w.transactions[source.ID] = &inserted
			stats.Inserted++
			continue
		}
		if transactionAttributesEqual(existing, source) {
			continue
		}
		updated := *source
		updated.InsertedAt = existing.InsertedAt
		w.transactions[source.ID] = &updated
		stats.Updated++
	}
	return stats, nil
}

// MergeAccountTransactions reconciles this run's staged bridge rows into
// production, refusing the whole table when any row references a missing
// account or transaction.
func (w *MemoryWarehouse) MergeAccountTransactions(_ context.Context, runID string) (MergeStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending := lastPerKey(w.stagedBridge, runID,
		func(r *AccountTransactionRow) bridgeKey {
			return bridgeKey{AccountID: r.AccountID, TransactionID: r.TransactionID}
		},
		func(r *AccountTransactionRow) time.Time { return r.InsertedAt })

	var orphans int64
	for _, source := range pending {
		if _, ok := w.accounts[source.AccountID]; !ok {
			orphans++
			continue
		}
		if _, ok := w.transactions[source.TransactionID]; !ok {
			orphans++
		}
	}
	if orphans > 0 {
		return MergeStats{}, &MergeConflictError{Table: accountTransactionTable, OrphanRows: orphans}
	}

	var stats MergeStats
	for _, source := range pending {
		key := bridgeKey{AccountID: source.AccountID, TransactionID: source.TransactionID}
		if _, ok := w.bridge[key]; ok {
			continue
		}
		inserted := *source
		inserted.InsertedAt = w.now()
		w.bridge[key] = &inserted
		stats.Inserted++
	}
	return stats, nil
}

// lastPerKey filters staged rows to one run and keeps the newest staged row
// per key by inserted_at, matching the ORDER BY inserted_at DESC dedupe of
// the MERGE source subquery. Rows sharing a timestamp fall back to staging
// order; the normalizer keeps that case from arising within a run by
// deduplicating keys before staging.
func lastPerKey[R any, K comparable](staged []*R, runID string, keyOf func(*R) K, stagedAt func(*R) time.Time) []*R {
	latest := make(map[K]int)
	order := make([]K, 0)
	for i, row := range staged {
		if stagedRunID(row) != runID {
			continue
		}
		key := keyOf(row)
		prev, seen := latest[key]
		if !seen {
			order = append(order, key)
			latest[key] = i
			continue
		}
		if !stagedAt(row).Before(stagedAt(staged[prev])) {
			latest[key] = i
		}
	}
	result := make([]*R, 0, len(order))
	for _, key := range order {
		result = append(result, staged[latest[key]])
	}
	return result
}

func stagedRunID(row any) string {
	switch r := row.(type) {
	case *AccountRow:
		return r.RunID
	case *TransactionRow:
		return r.RunID
	case *AccountTransactionRow:
		return r.RunID
	default:
		return ""
	}
}

func accountAttributesEqual(a, b *AccountRow) bool {
	return a.AccountNumber == b.AccountNumber &&
		a.Name == b.Name &&
		a.Description == b.Description &&
		a.Type == b.Type &&
		a.SubType == b.SubType &&
		a.IsDefaultGLAccount == b.IsDefaultGLAccount &&
		a.DefaultAccountName == b.DefaultAccountName &&
		a.IsContraAccount == b.IsContraAccount &&
		a.IsBankAccount == b.IsBankAccount &&
		a.CashFlowClassification == b.CashFlowClassification &&
		a.ExcludeFromCashBalances == b.ExcludeFromCashBalances &&
		a.IsActive == b.IsActive &&
		a.ParentAccountID == b.ParentAccountID
}

func transactionAttributesEqual(a, b *TransactionRow) bool {
	return a.Date == b.Date &&
		a.TransactionType == b.TransactionType &&
		ratEqual(a.TotalAmount, b.TotalAmount) &&
		a.CheckNumber == b.CheckNumber &&
		jsonEqual(a.UnitAgreement, b.UnitAgreement) &&
		a.UnitID == b.UnitID &&
		a.UnitNumber == b.UnitNumber &&
		jsonEqual(a.PaymentDetail, b.PaymentDetail) &&
		jsonEqual(a.DepositDetails, b.DepositDetails) &&
		a.JournalMemo == b.JournalMemo &&
		jsonEqual(a.Lines, b.Lines) &&
		a.LastUpdatedDateTime.Equal(b.LastUpdatedDateTime)
}

func ratEqual(a, b *big.Rat) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}

func jsonEqual(a, b bigquery.NullJSON) bool {
	if a.Valid != b.Valid {
		return false
	}
	if !a.Valid {
		return true
	}
	return a.JSONVal == b.JSONVal
}

// AccountProduction returns a copy of one production account row, reporting
// whether it exists. Test helper.
func (w *MemoryWarehouse) AccountProduction(id int64) (AccountRow, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	row, ok := w.accounts[id]
	if !ok {
		return AccountRow{}, false
	}
	return *row, true
}

// TransactionProduction returns a copy of one production transaction row,
// reporting whether it exists. Test helper.
func (w *MemoryWarehouse) TransactionProduction(id int64) (TransactionRow, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	row, ok := w.transactions[id]
	if !ok {
		return TransactionRow{}, false
	}
	return *row, true
}

// BridgeProduction reports whether a production bridge row exists. Test
// helper.
func (w *MemoryWarehouse) BridgeProduction(accountID, transactionID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.bridge[bridgeKey{AccountID: accountID, TransactionID: transactionID}]
	return ok
}

// ProductionCounts returns the sizes of the production tables. Test helper.
func (w *MemoryWarehouse) ProductionCounts() (accounts, transactions, bridge int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.accounts), len(w.transactions), len(w.bridge)
}

// StagedCounts returns per-table staged row counts for one run. Test helper.
func (w *MemoryWarehouse) StagedCounts(runID string) (accounts, transactions, bridge int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, row := range w.stagedAccounts {
		if row.RunID == runID {
			accounts++
		}
	}
	for _, row := range w.stagedTransactions {
		if row.RunID == runID {
			transactions++
		}
	}
	for _, row := range w.stagedBridge {
		if row.RunID == runID {
			bridge++
		}
	}
	return accounts, transactions, bridge
}
