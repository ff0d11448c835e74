package pipeline

import (
	"context"
	"fmt"
	"path"

	"github.com/Matheus920/ledger-loader/internal/buildium"
	"github.com/Matheus920/ledger-loader/internal/logger"
	"github.com/Matheus920/ledger-loader/internal/normalize"
	"github.com/Matheus920/ledger-loader/internal/warehouse"
)

// FetchSourcesStep reads both raw extracts.
type FetchSourcesStep struct {
	Fetch Fetcher
}

func (s *FetchSourcesStep) Execute(ctx context.Context, state *State) error {
	raw, err := s.Fetch(ctx, state.AccountsSource)
	if err != nil {
		return fmt.Errorf("fetching accounts source: %w", err)
	}
	state.RawAccounts = raw

	raw, err = s.Fetch(ctx, state.TransactionsSource)
	if err != nil {
		return fmt.Errorf("fetching transactions source: %w", err)
	}
	state.RawTransactions = raw
	return nil
}

// DecodeStep decodes and validates the raw extracts. Invalid records are
// excluded and logged unless FailFast is set, in which case the first one
// aborts the run.
type DecodeStep struct {
	FailFast bool
}

func (s *DecodeStep) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)
	opts := buildium.DecodeOptions{FailFast: s.FailFast}

	accounts, invalid, err := buildium.DecodeAccounts(state.RawAccounts, opts)
	if err != nil {
		return fmt.Errorf("decoding accounts: %w", err)
	}
	state.SourceAccounts = accounts
	state.ValidationErrors = append(state.ValidationErrors, invalid...)

	transactions, invalid, err := buildium.DecodeTransactions(state.RawTransactions, opts)
	if err != nil {
		return fmt.Errorf("decoding transactions: %w", err)
	}
	state.SourceTransactions = transactions
	state.ValidationErrors = append(state.ValidationErrors, invalid...)

	for _, ve := range state.ValidationErrors {
		log.Warn().
			Str("entity", ve.Entity).
			Int("index", ve.Index).
			Int64("id", ve.ID).
			Str("reason", ve.Reason).
			Msg("excluded invalid source record")
	}

	state.Summary.ExtractedAccounts = len(accounts)
	state.Summary.ExtractedTransactions = len(transactions)
	state.Summary.InvalidRecords = len(state.ValidationErrors)
	return nil
}

// NormalizeStep flattens the account hierarchy, coerces transactions, and
// derives the bridge.
type NormalizeStep struct{}

func (s *NormalizeStep) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)

	batch, err := normalize.Normalize(state.SourceAccounts, state.SourceTransactions)
	if err != nil {
		return fmt.Errorf("normalizing batch: %w", err)
	}
	state.Batch = batch

	for _, anomaly := range batch.HierarchyAnomalies {
		log.Warn().
			Int64("account_id", anomaly.AccountID).
			Str("reason", anomaly.Reason).
			Msg("account hierarchy anomaly")
	}
	for _, id := range batch.DuplicateAccountIDs {
		log.Warn().Int64("account_id", id).Msg("duplicate account id, kept first occurrence")
	}
	for _, id := range batch.DuplicateTransactionIDs {
		log.Warn().Int64("transaction_id", id).Msg("duplicate transaction id, kept first occurrence")
	}
	for _, id := range batch.EmptyLineTransactionIDs {
		log.Warn().Int64("transaction_id", id).Msg("transaction has no journal lines")
	}

	state.Summary.NormalizedAccounts = len(batch.Accounts)
	state.Summary.NormalizedTransactions = len(batch.Transactions)
	state.Summary.BridgeRows = len(batch.Bridge)
	state.Summary.HierarchyAnomalies = len(batch.HierarchyAnomalies)
	state.Summary.DuplicateAccounts = len(batch.DuplicateAccountIDs)
	state.Summary.DuplicateTransactions = len(batch.DuplicateTransactionIDs)
	state.Summary.EmptyLineTransactions = len(batch.EmptyLineTransactionIDs)
	return nil
}

// StageStep writes the normalized batch into staging, stamped with the
// run's lineage. Any staging failure aborts the run before merge.
type StageStep struct {
	Warehouse warehouse.Warehouse
}

func (s *StageStep) Execute(ctx context.Context, state *State) error {
	stagedAt := state.Run.StartedAt

	if err := s.Warehouse.StageAccounts(ctx, warehouse.AccountRows(state.Batch.Accounts, state.Run, stagedAt)); err != nil {
		return fmt.Errorf("staging accounts: %w", err)
	}

	txRows, err := warehouse.TransactionRows(state.Batch.Transactions, state.Run, stagedAt)
	if err != nil {
		return fmt.Errorf("building transaction rows: %w", err)
	}
	if err := s.Warehouse.StageTransactions(ctx, txRows); err != nil {
		return fmt.Errorf("staging transactions: %w", err)
	}

	if err := s.Warehouse.StageAccountTransactions(ctx, warehouse.AccountTransactionRows(state.Batch.Bridge, state.Run, stagedAt)); err != nil {
		return fmt.Errorf("staging bridge rows: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("run_id", state.Run.ID).
		Int("accounts", len(state.Batch.Accounts)).
		Int("transactions", len(state.Batch.Transactions)).
		Int("bridge_rows", len(state.Batch.Bridge)).
		Msg("staged batch")
	return nil
}

// MergeStep reconciles this run's staged rows into production. Accounts
// merge first, then transactions, then the bridge, so the bridge's
// referential check sees current keys.
type MergeStep struct {
	Warehouse warehouse.Warehouse
}

func (s *MergeStep) Execute(ctx context.Context, state *State) error {
	stats, err := s.Warehouse.MergeAccounts(ctx, state.Run.ID)
	if err != nil {
		return fmt.Errorf("merging accounts: %w", err)
	}
	state.Summary.AccountsMerge = stats

	stats, err = s.Warehouse.MergeTransactions(ctx, state.Run.ID)
	if err != nil {
		return fmt.Errorf("merging transactions: %w", err)
	}
	state.Summary.TransactionsMerge = stats

	stats, err = s.Warehouse.MergeAccountTransactions(ctx, state.Run.ID)
	if err != nil {
		return fmt.Errorf("merging bridge rows: %w", err)
	}
	state.Summary.BridgeMerge = stats

	log := logger.FromContext(ctx)
	log.Info().
		Str("run_id", state.Run.ID).
		EmbedObject(state.Summary).
		Msg("run merged")
	return nil
}

// ArchiveStep stores the raw extracts as run artifacts.
type ArchiveStep struct {
	Archive Archiver
	Bucket  string
}

func (s *ArchiveStep) Execute(ctx context.Context, state *State) error {
	objects := []struct {
		name string
		data []byte
	}{
		{"accounts.json", state.RawAccounts},
		{"transactions.json", state.RawTransactions},
	}
	for _, artifact := range objects {
		object := path.Join("runs", state.Run.ID, artifact.name)
		if err := s.Archive(ctx, s.Bucket, object, artifact.data); err != nil {
			return fmt.Errorf("archiving %s: %w", artifact.name, err)
		}
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("run_id", state.Run.ID).
		Str("bucket", s.Bucket).
		Msg("archived run artifacts")
	return nil
}
