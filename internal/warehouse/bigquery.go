package warehouse

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/Matheus920/ledger-loader/internal/logger"
	"google.golang.org/api/iterator"
)

// tableSpec drives the generated MERGE statement for one entity table.
type tableSpec struct {
	name string
	// keyColumns match staged rows to production rows (the primary key).
	keyColumns []string
	// businessColumns participate in attribute comparison and UPDATE.
	// Lineage columns (run_id, inserted_at) are deliberately absent.
	businessColumns []string
	// jsonColumns cannot be compared directly in BigQuery; they compare
	// through TO_JSON_STRING.
	jsonColumns map[string]bool
}

var (
	accountSpec = tableSpec{
		name:       accountTable,
		keyColumns: []string{"id"},
		businessColumns: []string{
			"account_number", "name", "description", "type", "sub_type",
			"is_default_gl_account", "default_account_name", "is_contra_account",
			"is_bank_account", "cash_flow_classification",
			"exclude_from_cash_balances", "is_active", "parent_account_id",
		},
	}

	transactionSpec = tableSpec{
		name:       transactionTable,
		keyColumns: []string{"id"},
		businessColumns: []string{
			"date", "transaction_type", "total_amount", "check_number",
			"unit_agreement", "unit_id", "unit_number", "payment_detail",
			"deposit_details", "journal_memo", "lines", "last_updated_date_time",
		},
		jsonColumns: map[string]bool{
			"unit_agreement": true, "payment_detail": true,
			"deposit_details": true, "lines": true,
		},
	}

	accountTransactionSpec = tableSpec{
		name:       accountTransactionTable,
		keyColumns: []string{"account_id", "transaction_id"},
		// Bridge rows carry nothing but their key; matched rows never update.
	}
)

// BigQueryWarehouse implements Warehouse on BigQuery. Staging goes through
// streaming inserts into constraint-free staging tables; each merge is a
// single MERGE DML statement, which BigQuery executes atomically and
// serializes against concurrent mutations of the same table.
type BigQueryWarehouse struct {
	client *bigquery.Client
	cfg    Config
}

// NewBigQueryWarehouse creates a warehouse with its own client.
func NewBigQueryWarehouse(ctx context.Context, cfg Config) (*BigQueryWarehouse, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryWarehouse: creating client: %w", err)
	}
	return &BigQueryWarehouse{client: client, cfg: cfg}, nil
}

// NewBigQueryWarehouseWithClient wraps an existing client.
func NewBigQueryWarehouseWithClient(client *bigquery.Client, cfg Config) *BigQueryWarehouse {
	return &BigQueryWarehouse{client: client, cfg: cfg}
}

// Close closes the underlying client.
func (w *BigQueryWarehouse) Close() error {
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}

// StageAccounts appends account rows to the staging table.
func (w *BigQueryWarehouse) StageAccounts(ctx context.Context, rows []*AccountRow) error {
	return stagePut(ctx, w, accountTable, rows)
}

// StageTransactions appends transaction rows to the staging table.
func (w *BigQueryWarehouse) StageTransactions(ctx context.Context, rows []*TransactionRow) error {
	return stagePut(ctx, w, transactionTable, rows)
}

// StageAccountTransactions appends bridge rows to the staging table.
func (w *BigQueryWarehouse) StageAccountTransactions(ctx context.Context, rows []*AccountTransactionRow) error {
	return stagePut(ctx, w, accountTransactionTable, rows)
}

func stagePut[R any](ctx context.Context, w *BigQueryWarehouse, table string, rows []*R) error {
	if len(rows) == 0 {
		return nil
	}
	inserter := w.client.DatasetInProject(w.cfg.ProjectID, w.cfg.StagingDatasetID).Table(table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return &StagingWriteError{Table: table, Err: err}
	}
	return nil
}

// MergeAccounts reconciles this run's staged accounts into production.
func (w *BigQueryWarehouse) MergeAccounts(ctx context.Context, runID string) (MergeStats, error) {
	return w.mergeTable(ctx, accountSpec, runID)
}

// MergeTransactions reconciles this run's staged transactions into
// production.
func (w *BigQueryWarehouse) MergeTransactions(ctx context.Context, runID string) (MergeStats, error) {
	return w.mergeTable(ctx, transactionSpec, runID)
}

// MergeAccountTransactions reconciles this run's staged bridge rows into
// production after verifying that every referenced account and transaction
// already exists there. Accounts and transactions must have merged first.
func (w *BigQueryWarehouse) MergeAccountTransactions(ctx context.Context, runID string) (MergeStats, error) {
	orphans, err := w.countBridgeOrphans(ctx, runID)
	if err != nil {
		return MergeStats{}, err
	}
	if orphans > 0 {
		return MergeStats{}, &MergeConflictError{Table: accountTransactionTable, OrphanRows: orphans}
	}
	return w.mergeTable(ctx, accountTransactionSpec, runID)
}

func (w *BigQueryWarehouse) mergeTable(ctx context.Context, spec tableSpec, runID string) (MergeStats, error) {
	log := logger.FromContext(ctx)

	q := w.client.Query(buildMergeSQL(w.cfg, spec))
	q.Parameters = []bigquery.QueryParameter{{Name: "run_id", Value: runID}}

	job, err := q.Run(ctx)
	if err != nil {
		return MergeStats{}, fmt.Errorf("mergeTable %s: running merge: %w", spec.name, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return MergeStats{}, fmt.Errorf("mergeTable %s: waiting for job: %w", spec.name, err)
	}
	if err := status.Err(); err != nil {
		return MergeStats{}, fmt.Errorf("mergeTable %s: job error: %w", spec.name, err)
	}

	stats := dmlStats(status)
	log.Info().
		Str("table", spec.name).
		Str("run_id", runID).
		Int64("inserted", stats.Inserted).
		Int64("updated", stats.Updated).
		Msg("merge completed")
	return stats, nil
}

func dmlStats(status *bigquery.JobStatus) MergeStats {
	if status.Statistics == nil {
		return MergeStats{}
	}
	queryStats, ok := status.Statistics.Details.(*bigquery.QueryStatistics)
	if !ok || queryStats.DMLStats == nil {
		return MergeStats{}
	}
	return MergeStats{
		Inserted: queryStats.DMLStats.InsertedRowCount,
		Updated:  queryStats.DMLStats.UpdatedRowCount,
	}
}

// buildMergeSQL renders the MERGE statement for one table. The source
// subquery restricts staging to this run and keeps only the newest staged
// row per key, so of duplicate staged keys the latest insertion wins. The
// normalizer guarantees unique keys within one staging pass, which keeps
// the ordering free of same-timestamp ties. Matched rows update only when
// a business column differs, so re-running identical input is a no-op;
// inserted_at is set on insert and never overwritten.
func buildMergeSQL(cfg Config, spec tableSpec) string {
	target := fmt.Sprintf("`%s.%s.%s`", cfg.ProjectID, cfg.DatasetID, spec.name)
	staging := fmt.Sprintf("`%s.%s.%s`", cfg.ProjectID, cfg.StagingDatasetID, spec.name)

	onClauses := make([]string, 0, len(spec.keyColumns))
	for _, column := range spec.keyColumns {
		onClauses = append(onClauses, fmt.Sprintf("target.%s = source.%s", column, column))
	}

	insertColumns := append(append([]string{}, spec.keyColumns...), spec.businessColumns...)
	insertValues := make([]string, 0, len(insertColumns)+1)
	for _, column := range insertColumns {
		insertValues = append(insertValues, "source."+column)
	}
	insertColumns = append(insertColumns, "inserted_at")
	insertValues = append(insertValues, "CURRENT_TIMESTAMP()")

	var b strings.Builder
	fmt.Fprintf(&b, "MERGE %s AS target\n", target)
	fmt.Fprintf(&b, "USING (\n")
	fmt.Fprintf(&b, "  SELECT * EXCEPT(rn) FROM (\n")
	fmt.Fprintf(&b, "    SELECT stage.*, ROW_NUMBER() OVER (PARTITION BY %s ORDER BY inserted_at DESC) AS rn\n",
		strings.Join(spec.keyColumns, ", "))
	fmt.Fprintf(&b, "    FROM %s AS stage\n", staging)
	fmt.Fprintf(&b, "    WHERE run_id = @run_id\n")
	fmt.Fprintf(&b, "  ) WHERE rn = 1\n")
	fmt.Fprintf(&b, ") AS source\n")
	fmt.Fprintf(&b, "ON %s\n", strings.Join(onClauses, " AND "))

	if len(spec.businessColumns) > 0 {
		diffs := make([]string, 0, len(spec.businessColumns))
		sets := make([]string, 0, len(spec.businessColumns))
		for _, column := range spec.businessColumns {
			if spec.jsonColumns[column] {
				diffs = append(diffs, fmt.Sprintf("TO_JSON_STRING(target.%s) IS DISTINCT FROM TO_JSON_STRING(source.%s)", column, column))
			} else {
				diffs = append(diffs, fmt.Sprintf("target.%s IS DISTINCT FROM source.%s", column, column))
			}
			sets = append(sets, fmt.Sprintf("%s = source.%s", column, column))
		}
		fmt.Fprintf(&b, "WHEN MATCHED AND (\n  %s\n) THEN UPDATE SET\n  %s\n",
			strings.Join(diffs, " OR\n  "), strings.Join(sets, ",\n  "))
	}

	fmt.Fprintf(&b, "WHEN NOT MATCHED THEN INSERT (%s)\n", strings.Join(insertColumns, ", "))
	fmt.Fprintf(&b, "VALUES (%s)", strings.Join(insertValues, ", "))
	return b.String()
}

func (w *BigQueryWarehouse) countBridgeOrphans(ctx context.Context, runID string) (int64, error) {
	sql := fmt.Sprintf(`
		SELECT COUNT(*) AS orphans FROM (
			SELECT DISTINCT account_id, transaction_id
			FROM `+"`%s.%s.%s`"+`
			WHERE run_id = @run_id
		) stage
		WHERE NOT EXISTS (SELECT 1 FROM `+"`%s.%s.%s`"+` a WHERE a.id = stage.account_id)
		   OR NOT EXISTS (SELECT 1 FROM `+"`%s.%s.%s`"+` t WHERE t.id = stage.transaction_id)
	`,
		w.cfg.ProjectID, w.cfg.StagingDatasetID, accountTransactionTable,
		w.cfg.ProjectID, w.cfg.DatasetID, accountTable,
		w.cfg.ProjectID, w.cfg.DatasetID, transactionTable,
	)

	q := w.client.Query(sql)
	q.Parameters = []bigquery.QueryParameter{{Name: "run_id", Value: runID}}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("countBridgeOrphans: reading query: %w", err)
	}

	var row struct {
		Orphans int64 `bigquery:"orphans"`
	}
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return 0, fmt.Errorf("countBridgeOrphans: iterating: %w", err)
	}
	return row.Orphans, nil
}
