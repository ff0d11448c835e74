package lineage

import (
	"context"
	"testing"
)

func TestNewRun_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		run := NewRun()
		if run.ID == "" {
			t.Fatal("NewRun returned empty id")
		}
		if run.StartedAt.IsZero() {
			t.Fatal("NewRun returned zero StartedAt")
		}
		if seen[run.ID] {
			t.Fatalf("duplicate run id: %s", run.ID)
		}
		seen[run.ID] = true
	}
}

func TestRunContext(t *testing.T) {
	run := NewRun()
	ctx := WithRun(context.Background(), run)

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected run in context")
	}
	if got.ID != run.ID {
		t.Errorf("FromContext id = %s, want %s", got.ID, run.ID)
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected no run in empty context")
	}
}
