package pipeline

import (
	"github.com/Matheus920/ledger-loader/internal/warehouse"
	"github.com/rs/zerolog"
)

// RunSummary accumulates the per-phase counts of one run.
type RunSummary struct {
	ExtractedAccounts     int
	ExtractedTransactions int
	InvalidRecords        int

	NormalizedAccounts     int
	NormalizedTransactions int
	BridgeRows             int

	HierarchyAnomalies    int
	DuplicateAccounts     int
	DuplicateTransactions int
	EmptyLineTransactions int

	AccountsMerge     warehouse.MergeStats
	TransactionsMerge warehouse.MergeStats
	BridgeMerge       warehouse.MergeStats
}

// MarshalZerologObject logs the summary as one structured event payload.
func (s RunSummary) MarshalZerologObject(e *zerolog.Event) {
	e.Int("extracted_accounts", s.ExtractedAccounts).
		Int("extracted_transactions", s.ExtractedTransactions).
		Int("invalid_records", s.InvalidRecords).
		Int("normalized_accounts", s.NormalizedAccounts).
		Int("normalized_transactions", s.NormalizedTransactions).
		Int("bridge_rows", s.BridgeRows).
		Int("hierarchy_anomalies", s.HierarchyAnomalies).
		Int("duplicate_accounts", s.DuplicateAccounts).
		Int("duplicate_transactions", s.DuplicateTransactions).
		Int("empty_line_transactions", s.EmptyLineTransactions).
		Int64("accounts_inserted", s.AccountsMerge.Inserted).
		Int64("accounts_updated", s.AccountsMerge.Updated).
		Int64("transactions_inserted", s.TransactionsMerge.Inserted).
		Int64("transactions_updated", s.TransactionsMerge.Updated).
		Int64("bridge_inserted", s.BridgeMerge.Inserted)
}
