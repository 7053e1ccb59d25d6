package redis

import (
	"context"
	"testing"
	"time"

	"therapist-match-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestCascadeJournalLifecycle(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	journal := NewCascadeJournal(newClient(mr))
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_ = journal.Record(ctx, domain.CascadeRecord{TagID: 7, RunID: "r7", State: domain.CascadeUsageResolved, UpdatedAt: now})
	_ = journal.Record(ctx, domain.CascadeRecord{TagID: 3, RunID: "r3", State: domain.CascadeInProgress, UpdatedAt: now})
	_ = journal.Record(ctx, domain.CascadeRecord{TagID: 7, RunID: "r7", State: domain.CascadeConfirmed, UpdatedAt: now})

	pending, err := journal.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 || pending[0].TagID != 3 || pending[1].State != domain.CascadeConfirmed {
		t.Fatalf("unexpected pending %+v", pending)
	}

	_ = journal.Record(ctx, domain.CascadeRecord{TagID: 7, RunID: "r7", State: domain.CascadeTagDeleted, UpdatedAt: now})
	_ = journal.Record(ctx, domain.CascadeRecord{TagID: 3, RunID: "r3", State: domain.CascadeTagDeleted, UpdatedAt: now})
	if mr.Exists(cascadesKey) {
		t.Fatalf("expected journal hash to empty out")
	}
}
