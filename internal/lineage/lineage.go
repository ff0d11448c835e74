// Package lineage issues run identifiers that stamp every staged row so a
// batch can be traced back to the invocation that produced it. Run ids carry
// no business meaning.
package lineage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Run identifies a single pipeline invocation.
type Run struct {
	ID        string
	StartedAt time.Time
}

// NewRun issues a fresh run identifier. The id is unique across concurrent
// and historical invocations; generation never fails.
func NewRun() Run {
	return Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

type contextKey struct{}

// WithRun threads the run through a context so collaborators can pick it up
// without a shared global.
func WithRun(ctx context.Context, run Run) context.Context {
	return context.WithValue(ctx, contextKey{}, run)
}

// FromContext retrieves the run from the context. The second return value is
// false when no run has been attached.
func FromContext(ctx context.Context) (Run, bool) {
	run, ok := ctx.Value(contextKey{}).(Run)
	return run, ok
}
