// Command ingest runs one ledger ingestion: fetch the account and
// transaction extracts, normalize them, stage the rows under a run id, and
// merge them into the production dataset.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/Matheus920/ledger-loader/internal/buildium"
	"github.com/Matheus920/ledger-loader/internal/gcsio"
	"github.com/Matheus920/ledger-loader/internal/lineage"
	"github.com/Matheus920/ledger-loader/internal/logger"
	"github.com/Matheus920/ledger-loader/internal/pipeline"
	"github.com/Matheus920/ledger-loader/internal/warehouse"
)

func main() {
	log := logger.New()

	accountsSource := flag.String("accounts", "", "accounts extract (gs:// URI or local path)")
	transactionsSource := flag.String("transactions", "", "transactions extract (gs:// URI or local path)")
	fromAPI := flag.Bool("from-api", false, "fetch extracts from the Buildium API instead of files")
	startDate := flag.String("start", "", "transaction window start, YYYY-MM-DD (required with -from-api)")
	endDate := flag.String("end", "", "transaction window end, YYYY-MM-DD (required with -from-api)")
	taskName := flag.String("task", "all", "task to run: extract, transform_and_stage, merge, or all")
	runID := flag.String("run-id", "", "run id to operate on (defaults to a fresh one; required for -task merge)")
	dryRun := flag.Bool("dry-run", false, "run against an in-memory warehouse instead of BigQuery")
	failFast := flag.Bool("fail-fast", false, "abort on the first invalid source record")
	archiveBucket := flag.String("archive-bucket", "", "optional GCS bucket for raw extract archival")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall run timeout")
	flag.Parse()

	task, err := pipeline.ParseTask(*taskName)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid task")
	}
	if task != pipeline.TaskMerge && !*fromAPI && (*accountsSource == "" || *transactionsSource == "") {
		log.Fatal().Msg("Error: -accounts and -transactions are required")
	}
	if *fromAPI && (*startDate == "" || *endDate == "") {
		log.Fatal().Msg("Error: -start and -end are required with -from-api")
	}
	if task == pipeline.TaskMerge && *runID == "" {
		log.Fatal().Msg("Error: -run-id is required for the merge task")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	run := lineage.NewRun()
	if *runID != "" {
		run.ID = *runID
	}

	deps := pipeline.Deps{
		Fetch:    gcsio.Fetch,
		FailFast: *failFast,
	}
	if *fromAPI {
		deps.Fetch, err = apiFetcher(*startDate, *endDate)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid transaction window")
		}
		*accountsSource = apiAccountsSource
		*transactionsSource = apiTransactionsSource
	}
	if *archiveBucket != "" {
		deps.Archive = gcsio.Archive
		deps.ArchiveBucket = *archiveBucket
	}

	if *dryRun {
		deps.Warehouse = warehouse.NewMemoryWarehouse()
		log.Info().Msg("Dry run: using in-memory warehouse")
	} else {
		cfg, err := warehouse.ConfigFromEnv()
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid warehouse configuration")
		}
		wh, err := warehouse.NewBigQueryWarehouse(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery warehouse")
		}
		defer wh.Close()
		deps.Warehouse = wh
	}

	log.Info().
		Str("run_id", run.ID).
		Str("task", string(task)).
		Str("accounts", *accountsSource).
		Str("transactions", *transactionsSource).
		Msg("Starting ingestion run")

	state := &pipeline.State{
		Run:                run,
		AccountsSource:     *accountsSource,
		TransactionsSource: *transactionsSource,
	}

	summary, err := pipeline.Run(ctx, task, deps, state)
	if err != nil {
		log.Error().Err(err).Str("run_id", run.ID).Msg("Ingestion run failed")
		os.Exit(1)
	}

	log.Info().Str("run_id", run.ID).EmbedObject(summary).Msg("Ingestion run completed")
}

const (
	apiAccountsSource     = "buildium:accounts"
	apiTransactionsSource = "buildium:transactions"
)

// apiFetcher resolves the pseudo-sources against the Buildium API instead
// of file storage.
func apiFetcher(start, end string) (pipeline.Fetcher, error) {
	startDate, err := civil.ParseDate(start)
	if err != nil {
		return nil, fmt.Errorf("apiFetcher: parsing start date: %w", err)
	}
	endDate, err := civil.ParseDate(end)
	if err != nil {
		return nil, fmt.Errorf("apiFetcher: parsing end date: %w", err)
	}

	client := buildium.NewClient()
	return func(ctx context.Context, source string) ([]byte, error) {
		switch source {
		case apiAccountsSource:
			return client.GeneralLedgerAccounts(ctx)
		case apiTransactionsSource:
			return client.GeneralLedgerTransactions(ctx, startDate, endDate)
		default:
			return gcsio.Fetch(ctx, source)
		}
	}, nil
}
