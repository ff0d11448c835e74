package normalize

import (
	"sort"

	"github.com/Matheus920/ledger-loader/internal/buildium"
	"github.com/Matheus920/ledger-loader/internal/domain"
)

// DeriveBridgeRows produces one bridge row per distinct
// (account_id, transaction_id) pair found across each transaction's journal
// lines. Duplicate account references within a transaction collapse to a
// single row (set semantics). Output is sorted by account id then
// transaction id so re-deriving from identical input yields an identical
// slice. Transactions with no journal lines contribute zero rows; their ids
// are returned separately so the caller can surface the anomaly.
func DeriveBridgeRows(transactions []buildium.SourceTransaction) ([]domain.AccountTransaction, []int64) {
	type pair struct{ account, transaction int64 }

	set := make(map[pair]bool)
	var emptyLines []int64
	seenEmpty := make(map[int64]bool)

	for _, tx := range transactions {
		if len(tx.Journal.Lines) == 0 {
			if !seenEmpty[tx.ID] {
				seenEmpty[tx.ID] = true
				emptyLines = append(emptyLines, tx.ID)
			}
			continue
		}
		for _, line := range tx.Journal.Lines {
			set[pair{account: line.GLAccount.ID, transaction: tx.ID}] = true
		}
	}

	rows := make([]domain.AccountTransaction, 0, len(set))
	for p := range set {
		rows = append(rows, domain.AccountTransaction{AccountID: p.account, TransactionID: p.transaction})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AccountID != rows[j].AccountID {
			return rows[i].AccountID < rows[j].AccountID
		}
		return rows[i].TransactionID < rows[j].TransactionID
	})

	return rows, emptyLines
}
