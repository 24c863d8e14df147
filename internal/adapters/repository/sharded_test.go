package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/revsched/internal/domain/agreement"
	"github.com/okian/revsched/internal/domain/model"
	"github.com/okian/revsched/internal/domain/pipeline"
)

func done(jobID string, seq uint64, confidence *float64) model.Result {
	out := &pipeline.Output{}
	if confidence != nil {
		out.Summary = &agreement.Summary{MeanConfidence: *confidence}
	}
	return model.Result{JobID: jobID, DocumentID: "doc-" + jobID, Status: model.StatusDone, Seq: seq, Output: out}
}

func conf(v float64) *float64 { return &v }

func TestShardedStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewShardedStore(WithShardCount(4))

	if store.ShardCount() != 4 {
		t.Fatalf("expected 4 shards, got %d", store.ShardCount())
	}
	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	queued := model.Result{JobID: "j1", DocumentID: "d1", Status: model.StatusQueued, SubmittedAt: time.Now()}
	if err := store.Put(ctx, queued); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := store.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != model.StatusQueued {
		t.Errorf("expected queued, got %s", got.Status)
	}

	// Replacing a result does not change the count.
	queued.Status = model.StatusDone
	if err := store.Put(ctx, queued); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	byDoc, err := store.ByDocument(ctx, "d1")
	if err != nil || byDoc.JobID != "j1" {
		t.Errorf("expected j1 by document, got %v (%v)", byDoc.JobID, err)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.ByDocument(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Put(ctx, model.Result{}); !errors.Is(err, ErrMissingJobID) {
		t.Errorf("expected ErrMissingJobID, got %v", err)
	}
}

func TestShardedStore_MarkFailed(t *testing.T) {
	ctx := context.Background()
	store := NewShardedStore()

	if err := store.Put(ctx, done("j1", 1, conf(0.9))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.MarkFailed(ctx, "j1", errors.New("timeout")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := store.Get(ctx, "j1")
	if got.Status != model.StatusFailed || got.Error != "timeout" || got.Output != nil || got.FinishedAt == nil {
		t.Errorf("unexpected failed result: %+v", got)
	}
	if err := store.MarkFailed(ctx, "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestShardedStore_ReviewQueue(t *testing.T) {
	ctx := context.Background()
	store := NewShardedStore()

	results := []model.Result{
		done("high", 1, conf(0.95)),
		done("low-late", 5, conf(0.40)),
		done("low-early", 2, conf(0.40)),
		done("single-run", 3, nil),
		done("mid", 4, conf(0.70)),
		{JobID: "queued", Status: model.StatusQueued, Seq: 6},
		{JobID: "failed", Status: model.StatusFailed, Seq: 7},
	}
	for _, r := range results {
		if err := store.Put(ctx, r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := store.ReviewQueue(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"single-run", "low-early", "low-late", "mid", "high"}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].JobID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].JobID)
		}
	}

	top, _ := store.ReviewQueue(ctx, 2)
	if len(top) != 2 || top[1].JobID != "low-early" {
		t.Errorf("unexpected limited queue: %v", top)
	}

	if _, err := store.ReviewQueue(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}

	empty, err := NewShardedStore().ReviewQueue(ctx, 5)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil queue, got %v (%v)", empty, err)
	}
}

func TestShardedStore_MaxResults(t *testing.T) {
	ctx := context.Background()
	store := NewShardedStore(WithMaxResults(2))

	_ = store.Put(ctx, done("a", 1, nil))
	_ = store.Put(ctx, done("b", 2, nil))
	if err := store.Put(ctx, done("c", 3, nil)); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	// Updating an existing job is still allowed.
	if err := store.Put(ctx, done("a", 1, conf(0.5))); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestShardedStore_ConcurrentPut(t *testing.T) {
	ctx := context.Background()
	store := NewShardedStore(WithShardCount(16))
	const writers = 8
	const perWriter = 250

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id := fmt.Sprintf("j-%d-%d", w, i)
				if err := store.Put(ctx, done(id, uint64(w*perWriter+i), conf(0.5))); err != nil {
					t.Errorf("put %s: %v", id, err)
				}
			}
		}(w)
	}
	wg.Wait()

	if count := store.Count(ctx); count != writers*perWriter {
		t.Errorf("expected %d results, got %d", writers*perWriter, count)
	}
}
