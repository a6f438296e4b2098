package retention

import (
	"context"
	"testing"
	"time"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/audit"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/audit/storage"
)

func seed(t *testing.T, st *storage.MemoryStorage, requestID string, age time.Duration) {
	t.Helper()
	err := st.Write(context.Background(), &audit.Record{
		RequestID: requestID,
		Timestamp: time.Now().Add(-age),
		ModelID:   "model-x",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestPruner_DeletesAgedRecords(t *testing.T) {
	st := storage.NewMemoryStorage()
	seed(t, st, "old-1", 45*24*time.Hour)
	seed(t, st, "old-2", 31*24*time.Hour)
	seed(t, st, "fresh", 24*time.Hour)

	pruner := NewPruner(st, &Config{RetentionDays: 30})

	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 records pruned, got %d", deleted)
	}

	count, _ := st.Count(context.Background())
	if count != 1 {
		t.Errorf("expected 1 record remaining, got %d", count)
	}
	if _, ok := st.Get("fresh"); !ok {
		t.Error("fresh record should survive")
	}
}

func TestPruner_ZeroRetentionKeepsEverything(t *testing.T) {
	st := storage.NewMemoryStorage()
	seed(t, st, "ancient", 365*24*time.Hour)

	pruner := NewPruner(st, &Config{RetentionDays: 0})

	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected no pruning with zero retention, got %d", deleted)
	}
}

func TestScheduler_EmptyScheduleIsNoop(t *testing.T) {
	st := storage.NewMemoryStorage()
	pruner := NewPruner(st, &Config{RetentionDays: 30, PruneSchedule: ""})

	if err := pruner.Start(context.Background()); err != nil {
		t.Errorf("empty schedule should not error: %v", err)
	}
	pruner.Stop()
}

func TestScheduler_InvalidScheduleRejected(t *testing.T) {
	st := storage.NewMemoryStorage()
	pruner := NewPruner(st, &Config{RetentionDays: 30, PruneSchedule: "not a cron expr"})

	if err := pruner.Start(context.Background()); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	st := storage.NewMemoryStorage()
	pruner := NewPruner(st, &Config{RetentionDays: 30, PruneSchedule: "0 3 * * *"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pruner.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	pruner.Stop()

	// Stop is idempotent.
	pruner.Stop()
}
