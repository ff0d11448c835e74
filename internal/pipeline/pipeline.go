// Package pipeline orchestrates one ingestion run: fetch the raw extracts,
// decode and validate them, normalize, stage, and merge. Each phase is a
// step over shared state, and the task boundaries (extract, transform and
// stage, merge) assemble different step sequences.
package pipeline

import (
	"context"
	"fmt"

	"github.com/Matheus920/ledger-loader/internal/buildium"
	"github.com/Matheus920/ledger-loader/internal/lineage"
	"github.com/Matheus920/ledger-loader/internal/normalize"
	"github.com/Matheus920/ledger-loader/internal/warehouse"
)

// Task selects which phases of the run to execute.
type Task string

const (
	TaskExtract           Task = "extract"
	TaskTransformAndStage Task = "transform_and_stage"
	TaskMerge             Task = "merge"
	TaskAll               Task = "all"
)

// ParseTask validates a task name from the command line.
func ParseTask(name string) (Task, error) {
	switch Task(name) {
	case TaskExtract, TaskTransformAndStage, TaskMerge, TaskAll:
		return Task(name), nil
	default:
		return "", fmt.Errorf("ParseTask: unknown task %q", name)
	}
}

// Fetcher reads one raw source (a gs:// URI or local path) in full.
type Fetcher func(ctx context.Context, source string) ([]byte, error)

// Archiver persists a run artifact under a bucket and object name.
type Archiver func(ctx context.Context, bucket, object string, data []byte) error

// Deps carries the external collaborators of a run.
type Deps struct {
	Fetch     Fetcher
	Warehouse warehouse.Warehouse

	// Archive and ArchiveBucket are optional; when both are set the raw
	// extracts are archived after a successful run.
	Archive       Archiver
	ArchiveBucket string

	// FailFast aborts decoding on the first invalid source record instead
	// of excluding it and continuing.
	FailFast bool
}

// State is the shared state threaded through the steps of one run.
type State struct {
	Run lineage.Run

	AccountsSource     string
	TransactionsSource string

	RawAccounts     []byte
	RawTransactions []byte

	SourceAccounts     []buildium.SourceAccount
	SourceTransactions []buildium.SourceTransaction
	ValidationErrors   []*buildium.ValidationError

	Batch *normalize.Batch

	Summary RunSummary
}

// Step is a single phase of a run.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// Pipeline executes a sequence of steps in order, stopping at the first
// failure.
type Pipeline struct {
	steps []Step
}

// New creates a pipeline from the given steps.
func New(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially against shared state.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d: %w", i+1, err)
		}
	}
	return nil
}

// ForTask assembles the step sequence for one task boundary. Extract and
// transform-and-stage end before any production mutation; merge alone
// reconciles previously staged rows for the state's run id.
func ForTask(task Task, deps Deps) (*Pipeline, error) {
	switch task {
	case TaskExtract:
		return New(
			&FetchSourcesStep{Fetch: deps.Fetch},
			&DecodeStep{FailFast: deps.FailFast},
		), nil
	case TaskTransformAndStage:
		return New(
			&FetchSourcesStep{Fetch: deps.Fetch},
			&DecodeStep{FailFast: deps.FailFast},
			&NormalizeStep{},
			&StageStep{Warehouse: deps.Warehouse},
		), nil
	case TaskMerge:
		return New(
			&MergeStep{Warehouse: deps.Warehouse},
		), nil
	case TaskAll:
		steps := []Step{
			&FetchSourcesStep{Fetch: deps.Fetch},
			&DecodeStep{FailFast: deps.FailFast},
			&NormalizeStep{},
			&StageStep{Warehouse: deps.Warehouse},
			&MergeStep{Warehouse: deps.Warehouse},
		}
		if deps.Archive != nil && deps.ArchiveBucket != "" {
			steps = append(steps, &ArchiveStep{Archive: deps.Archive, Bucket: deps.ArchiveBucket})
		}
		return New(steps...), nil
	default:
		return nil, fmt.Errorf("ForTask: unknown task %q", task)
	}
}

// Run executes one task against fresh state and returns the run summary.
func Run(ctx context.Context, task Task, deps Deps, state *State) (RunSummary, error) {
	p, err := ForTask(task, deps)
	if err != nil {
		return RunSummary{}, err
	}
	ctx = lineage.WithRun(ctx, state.Run)
	if err := p.Execute(ctx, state); err != nil {
		return state.Summary, err
	}
	return state.Summary, nil
}
