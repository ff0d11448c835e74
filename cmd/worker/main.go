// Command worker consumes ledger sync jobs from a queue and executes each
// as a full ingestion run. A JSON manifest of extract source pairs seeds
// the queue at startup.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Matheus920/ledger-loader/internal/gcsio"
	"github.com/Matheus920/ledger-loader/internal/jobs"
	"github.com/Matheus920/ledger-loader/internal/jobs/inmemory"
	"github.com/Matheus920/ledger-loader/internal/lineage"
	"github.com/Matheus920/ledger-loader/internal/logger"
	"github.com/Matheus920/ledger-loader/internal/pipeline"
	"github.com/Matheus920/ledger-loader/internal/warehouse"
)

// manifestEntry is one extract pair to sync.
type manifestEntry struct {
	AccountsSource     string `json:"accounts_source"`
	TransactionsSource string `json:"transactions_source"`
}

func main() {
	log := logger.New()

	manifestPath := flag.String("manifest", "", "JSON manifest of extract source pairs (required)")
	dryRun := flag.Bool("dry-run", false, "run against an in-memory warehouse instead of BigQuery")
	failFast := flag.Bool("fail-fast", false, "abort a job on the first invalid source record")
	archiveBucket := flag.String("archive-bucket", "", "optional GCS bucket for raw extract archival")
	flag.Parse()

	if *manifestPath == "" {
		log.Fatal().Msg("Error: -manifest is required")
	}

	entries, err := readManifest(*manifestPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read manifest")
	}
	if len(entries) == 0 {
		log.Fatal().Msg("Manifest contains no source pairs")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	deps := pipeline.Deps{
		Fetch:    gcsio.Fetch,
		FailFast: *failFast,
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

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(len(entries), jobStore)

	handler := func(ctx context.Context, job jobs.Job) error {
		syncJob, ok := job.(*jobs.LedgerSyncJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		run := lineage.NewRun()
		if syncJob.RunID != "" {
			run.ID = syncJob.RunID
		} else {
			syncJob.RunID = run.ID
		}

		log.Info().
			Str("job_id", syncJob.JobID).
			Str("run_id", run.ID).
			Str("accounts", syncJob.AccountsSource).
			Str("transactions", syncJob.TransactionsSource).
			Msg("Processing ledger sync job")

		state := &pipeline.State{
			Run:                run,
			AccountsSource:     syncJob.AccountsSource,
			TransactionsSource: syncJob.TransactionsSource,
		}
		summary, err := pipeline.Run(ctx, pipeline.TaskAll, deps, state)
		if err != nil {
			log.Error().Err(err).Str("job_id", syncJob.JobID).Str("run_id", run.ID).Msg("Ledger sync failed")
			return err
		}

		log.Info().Str("job_id", syncJob.JobID).Str("run_id", run.ID).EmbedObject(summary).Msg("Ledger sync completed")
		return nil
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	for _, entry := range entries {
		job := &jobs.LedgerSyncJob{
			AccountsSource:     entry.AccountsSource,
			TransactionsSource: entry.TransactionsSource,
		}
		if err := jobQueue.PublishLedgerSync(ctx, job); err != nil {
			log.Fatal().Err(err).Msg("Failed to publish job")
		}
	}

	log.Info().Int("jobs", len(entries)).Msg("Worker started, processing ledger sync jobs")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		waitForCompletion(ctx, jobStore, len(entries))
		close(done)
	}()

	exitCode := 0
	select {
	case <-quit:
		log.Info().Msg("Shutting down worker")
		exitCode = 1
	case <-done:
		failed, err := jobStore.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
		if err == nil && len(failed) > 0 {
			log.Error().Int("failed_jobs", len(failed)).Msg("Some ledger sync jobs failed")
			exitCode = 1
		} else {
			log.Info().Msg("All ledger sync jobs completed")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	os.Exit(exitCode)
}

func readManifest(path string) ([]manifestEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("readManifest: %w", err)
	}
	var entries []manifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("readManifest: decoding JSON: %w", err)
	}
	return entries, nil
}

// waitForCompletion polls the store until every job reaches a terminal
// status or the context ends.
func waitForCompletion(ctx context.Context, store jobs.JobStore, total int) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			terminal := 0
			all, err := store.ListJobs(ctx, jobs.JobFilter{})
			if err != nil {
				continue
			}
			for _, job := range all {
				if job.Status.Terminal() {
					terminal++
				}
			}
			if len(all) >= total && terminal == len(all) {
				return
			}
		}
	}
}
