package warehouse

import (
	"context"
	"fmt"
)

// MergeStats reports the net effect of one table's reconciliation.
type MergeStats struct {
	Inserted int64
	Updated  int64
}

// Add accumulates stats, used by run summaries.
func (s MergeStats) Add(other MergeStats) MergeStats {
	return MergeStats{Inserted: s.Inserted + other.Inserted, Updated: s.Updated + other.Updated}
}

// Warehouse is the persistence contract of the pipeline. Staging appends
// rows tagged with a run id and tolerates duplicate keys; merging reconciles
// one run's staged rows into production atomically per table. Callers must
// merge accounts and transactions before the bridge, which carries foreign
// keys into both.
type Warehouse interface {
	StageAccounts(ctx context.Context, rows []*AccountRow) error
	StageTransactions(ctx context.Context, rows []*TransactionRow) error
	StageAccountTransactions(ctx context.Context, rows []*AccountTransactionRow) error

	MergeAccounts(ctx context.Context, runID string) (MergeStats, error)
	MergeTransactions(ctx context.Context, runID string) (MergeStats, error)
	MergeAccountTransactions(ctx context.Context, runID string) (MergeStats, error)
}

// StagingWriteError marks a failed or partial staging write. The run must
// abort before merge: the merge phase assumes the stage for its run id is
// complete.
type StagingWriteError struct {
	Table string
	Err   error
}

func (e *StagingWriteError) Error() string {
	return fmt.Sprintf("staging write to %s: %v", e.Table, e.Err)
}

func (e *StagingWriteError) Unwrap() error { return e.Err }

// MergeConflictError marks a referential-integrity failure during merge:
// staged rows reference keys absent from production. The affected table's
// merge is not applied; previously merged tables are unaffected.
type MergeConflictError struct {
	Table      string
	OrphanRows int64
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge into %s: %d staged rows reference missing production keys", e.Table, e.OrphanRows)
}
