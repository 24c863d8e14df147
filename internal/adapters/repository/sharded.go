package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/revsched/internal/domain/model"
	"github.com/okian/revsched/pkg/metrics"
)

const defaultShardCount = 8

type shard struct {
	mu      sync.RWMutex
	results map[string]model.Result
}

// ShardedStore spreads results over independently locked shards keyed by
// a hash of the job id.
type ShardedStore struct {
	shards     []*shard
	shardCount int
	maxResults int

	docs  sync.Map // document id -> job id
	count atomic.Int64
}

// NewShardedStore constructs a store with configuration options.
func NewShardedStore(opts ...Option) *ShardedStore {
	s := &ShardedStore{shardCount: defaultShardCount}
	for _, opt := range opts {
		opt(s)
	}
	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{results: make(map[string]model.Result)}
	}
	metrics.UpdateStoredResults(0)
	return s
}

func (s *ShardedStore) shardFor(jobID string) *shard {
	return s.shards[xxhash.Sum64String(jobID)%uint64(len(s.shards))]
}

// Put implements Store.Put.
func (s *ShardedStore) Put(ctx context.Context, r model.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.JobID == "" {
		return ErrMissingJobID
	}

	sh := s.shardFor(r.JobID)
	sh.mu.Lock()
	if _, exists := sh.results[r.JobID]; !exists {
		if s.maxResults > 0 && int(s.count.Load()) >= s.maxResults {
			sh.mu.Unlock()
			return ErrFull
		}
		s.count.Add(1)
	}
	sh.results[r.JobID] = r
	sh.mu.Unlock()

	if r.DocumentID != "" {
		s.docs.Store(r.DocumentID, r.JobID)
	}
	metrics.UpdateStoredResults(int(s.count.Load()))
	return nil
}

// MarkFailed implements Store.MarkFailed.
func (s *ShardedStore) MarkFailed(_ context.Context, jobID string, cause error) error {
	sh := s.shardFor(jobID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	r, ok := sh.results[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	now := time.Now()
	r.Status = model.StatusFailed
	r.Output = nil
	r.FinishedAt = &now
	if cause != nil {
		r.Error = cause.Error()
	}
	sh.results[jobID] = r
	return nil
}

// Get implements Store.Get.
func (s *ShardedStore) Get(_ context.Context, jobID string) (model.Result, error) {
	sh := s.shardFor(jobID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	r, ok := sh.results[jobID]
	if !ok {
		return model.Result{}, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return r, nil
}

// ByDocument implements Store.ByDocument.
func (s *ShardedStore) ByDocument(ctx context.Context, documentID string) (model.Result, error) {
	v, ok := s.docs.Load(documentID)
	if !ok {
		return model.Result{}, fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}
	return s.Get(ctx, v.(string))
}

// ReviewQueue implements Store.ReviewQueue.
func (s *ShardedStore) ReviewQueue(_ context.Context, n int) ([]model.Result, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}

	var done []model.Result
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, r := range sh.results {
			if r.Status == model.StatusDone {
				done = append(done, r)
			}
		}
		sh.mu.RUnlock()
	}

	sort.Slice(done, func(i, j int) bool {
		ci, cj := done[i].MeanConfidence(), done[j].MeanConfidence()
		if ci != cj {
			return ci < cj
		}
		return done[i].Seq < done[j].Seq
	})
	if len(done) > n {
		done = done[:n]
	}
	if done == nil {
		done = []model.Result{}
	}
	return done, nil
}

// Count implements Store.Count.
func (s *ShardedStore) Count(_ context.Context) int {
	return int(s.count.Load())
}

// ShardCount returns the number of shards.
func (s *ShardedStore) ShardCount() int {
	return len(s.shards)
}
