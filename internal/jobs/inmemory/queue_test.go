package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Matheus920/ledger-loader/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.LedgerSyncJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s never reached %s (last: %+v)", jobID, want, job)
	return nil
}

func TestQueueProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store)
	defer q.Close()

	processed := make(chan string, 1)
	err := q.Start(context.Background(), func(_ context.Context, job jobs.Job) error {
		processed <- job.GetID()
		return nil
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.LedgerSyncJob{
		AccountsSource:     "gs://ledger-sources/accounts.json",
		TransactionsSource: "gs://ledger-sources/transactions.json",
	}
	if err := q.PublishLedgerSync(context.Background(), job); err != nil {
		t.Fatalf("PublishLedgerSync: %v", err)
	}

	select {
	case id := <-processed:
		if id != job.JobID {
			t.Errorf("processed job %s, want %s", id, job.JobID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job never reached the handler")
	}

	stored := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if stored.Error != "" {
		t.Errorf("completed job carries error %q", stored.Error)
	}
}

func TestQueueRetriesFailedJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store)
	q.retryBackoff = time.Millisecond
	defer q.Close()

	attempts := make(chan int, 8)
	attempt := 0
	err := q.Start(context.Background(), func(context.Context, jobs.Job) error {
		attempt++
		attempts <- attempt
		if attempt == 1 {
			return errors.New("transient fetch failure")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.LedgerSyncJob{AccountsSource: "a", TransactionsSource: "t", MaxRetries: 2}
	if err := q.PublishLedgerSync(context.Background(), job); err != nil {
		t.Fatalf("PublishLedgerSync: %v", err)
	}

	stored := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if stored.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", stored.RetryCount)
	}
}

func TestQueueExhaustsRetries(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store)
	q.retryBackoff = time.Millisecond
	defer q.Close()

	err := q.Start(context.Background(), func(context.Context, jobs.Job) error {
		return errors.New("permanent failure")
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.LedgerSyncJob{AccountsSource: "a", TransactionsSource: "t", MaxRetries: 1}
	if err := q.PublishLedgerSync(context.Background(), job); err != nil {
		t.Fatalf("PublishLedgerSync: %v", err)
	}

	stored := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if stored.Error == "" {
		t.Error("failed job should record its error")
	}
}

func TestPublishAfterClose(t *testing.T) {
	q := NewQueue(1, NewStore())
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	err := q.PublishLedgerSync(context.Background(), &jobs.LedgerSyncJob{})
	if err == nil {
		t.Fatal("publish on a closed queue should fail")
	}
}

func TestStoreListJobsFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	for _, job := range []*jobs.LedgerSyncJob{
		{JobID: "j1", RunID: "run-1", Status: jobs.JobStatusCompleted},
		{JobID: "j2", RunID: "run-2", Status: jobs.JobStatusFailed},
		{JobID: "j3", RunID: "run-1", Status: jobs.JobStatusFailed},
	} {
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob(%s): %v", job.JobID, err)
		}
	}

	byRun, err := store.ListJobs(ctx, jobs.JobFilter{RunID: "run-1"})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(byRun) != 2 {
		t.Errorf("jobs for run-1 = %d, want 2", len(byRun))
	}

	failed, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed, Limit: 1})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(failed) != 1 {
		t.Errorf("failed jobs with limit 1 = %d, want 1", len(failed))
	}
}
