package normalize

import (
	"fmt"

	"github.com/Matheus920/ledger-loader/internal/buildium"
	"github.com/Matheus920/ledger-loader/internal/domain"
)

// Batch is the full normalized output of one run, plus the anomalies
// encountered while producing it. Batches are immutable after handoff: the
// staging writer and merge reconciler only read them.
type Batch struct {
	Accounts     []domain.Account
	Transactions []domain.Transaction
	Bridge       []domain.AccountTransaction

	HierarchyAnomalies      []HierarchyAnomaly
	EmptyLineTransactionIDs []int64
	DuplicateAccountIDs     []int64
	DuplicateTransactionIDs []int64
}

// Normalize runs the three entity transformations over one extract.
func Normalize(accounts []buildium.SourceAccount, transactions []buildium.SourceTransaction) (*Batch, error) {
	flattened, hierarchyAnomalies, duplicateAccounts := FlattenAccounts(accounts)

	normalized, duplicates, err := NormalizeTransactions(transactions)
	if err != nil {
		return nil, fmt.Errorf("Normalize: %w", err)
	}

	bridge, emptyLines := DeriveBridgeRows(transactions)

	return &Batch{
		Accounts:                flattened,
		Transactions:            normalized,
		Bridge:                  bridge,
		HierarchyAnomalies:      hierarchyAnomalies,
		EmptyLineTransactionIDs: emptyLines,
		DuplicateAccountIDs:     duplicateAccounts,
		DuplicateTransactionIDs: duplicates,
	}, nil
}
