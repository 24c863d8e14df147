// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	jobqueue "github.com/okian/revsched/internal/adapters/mq/queue"
	workerpool "github.com/okian/revsched/internal/adapters/mq/worker"
	"github.com/okian/revsched/internal/adapters/repository"
	"github.com/okian/revsched/internal/domain/dedupe"
	"github.com/okian/revsched/internal/domain/model"
	"github.com/okian/revsched/internal/domain/pipeline"
	"github.com/okian/revsched/pkg/logger"
	"github.com/okian/revsched/pkg/metrics"
)

// Submission reports what happened to a submitted document.
type Submission struct {
	JobID     string       `json:"job_id"`
	Status    model.Status `json:"status"`
	Duplicate bool         `json:"duplicate,omitempty"`
}

// Service runs the normalization pipeline synchronously or through the
// job queue and keeps job results in memory.
type Service struct {
	mu sync.RWMutex

	pipeline *pipeline.Pipeline
	store    *repository.ShardedStore
	deduper  dedupe.Deduper
	jobs     *jobqueue.InMemoryQueue
	pool     *workerpool.Pool

	workerCount      int
	queueSize        int
	dedupeSize       int
	shardCount       int
	batchConcurrency int

	seq     atomic.Uint64
	started bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU() * 2,
		queueSize:        10_000,
		dedupeSize:       100_000,
		shardCount:       8,
		batchConcurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pipeline == nil {
		s.pipeline = pipeline.New()
	}
	return s
}

// Start initializes and starts the job components. Process and
// ProcessBatch work without Start.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting revenue schedule service...")

	s.store = repository.NewShardedStore(repository.WithShardCount(s.shardCount))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.jobs = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.jobs, s, s.store)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "revenue schedule service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("shards", s.shardCount),
	)
	return nil
}

// Stop drains queued jobs and shuts the workers down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping revenue schedule service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "revenue schedule service stopped")
}

// Process runs the pipeline over one document.
func (s *Service) Process(ctx context.Context, doc model.Document) (pipeline.Output, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Output{}, fmt.Errorf("process %s: %w", doc.ID, err)
	}

	start := time.Now()
	out := s.pipeline.Run(doc.Runs)
	elapsed := time.Since(start)
	metrics.RecordPipelineLatency(float64(elapsed.Microseconds()) / 1000)
	observe(doc, &out)

	fields := []logger.Field{
		logger.String("document_id", doc.ID),
		logger.Int("runs", len(doc.Runs)),
		logger.Int("schedules", len(out.Schedules)),
		logger.Int("issues", len(out.Issues)),
		logger.Bool("should_retry", out.ShouldRetry),
		logger.Duration("elapsed", elapsed),
	}
	if out.Summary != nil {
		fields = append(fields,
			logger.Float64("mean_confidence", out.Summary.MeanConfidence),
			logger.Int("flagged", out.Summary.Flagged),
		)
	}
	s.log().Debug(ctx, "document normalized", fields...)
	if out.ShouldRetry {
		s.log().Warn(ctx, "extraction should be retried", logger.String("document_id", doc.ID))
	}
	return out, nil
}

// ProcessBatch runs independent documents concurrently and returns
// outputs in input order.
func (s *Service) ProcessBatch(ctx context.Context, docs []model.Document) ([]pipeline.Output, error) {
	outs := make([]pipeline.Output, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)
	for i := range docs {
		g.Go(func() error {
			out, err := s.Process(gctx, docs[i])
			if err != nil {
				return err
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}

// Submit queues a document for asynchronous processing. A document id
// seen before returns the existing job instead of queueing again.
func (s *Service) Submit(ctx context.Context, doc model.Document) (Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return Submission{}, ErrNotStarted
	}

	if doc.ID != "" && s.deduper.SeenAndRecord(ctx, doc.ID) {
		metrics.RecordJobDuplicate()
		sub := Submission{Duplicate: true}
		if prev, err := s.store.ByDocument(ctx, doc.ID); err == nil {
			sub.JobID, sub.Status = prev.JobID, prev.Status
		}
		s.logger.Debug(ctx, "duplicate document ignored", logger.String("document_id", doc.ID), logger.String("job_id", sub.JobID))
		return sub, nil
	}

	job := &model.Job{
		ID:          uuid.NewString(),
		Seq:         s.seq.Add(1),
		Document:    doc,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.store.Put(ctx, model.NewResult(job)); err != nil {
		s.forget(ctx, doc.ID)
		return Submission{}, fmt.Errorf("store job: %w", err)
	}
	if !s.jobs.Enqueue(ctx, job) {
		s.forget(ctx, doc.ID)
		_ = s.store.MarkFailed(ctx, job.ID, ErrQueueFull)
		return Submission{}, ErrQueueFull
	}

	metrics.RecordJobSubmitted()
	return Submission{JobID: job.ID, Status: model.StatusQueued}, nil
}

func (s *Service) forget(ctx context.Context, documentID string) {
	if documentID != "" {
		s.deduper.Unrecord(ctx, documentID)
	}
}

// Job returns the stored result for a job id.
func (s *Service) Job(ctx context.Context, id string) (model.Result, error) {
	if err := s.ready(); err != nil {
		return model.Result{}, err
	}
	return s.store.Get(ctx, id)
}

// ReviewQueue returns up to n finished jobs, least confident first.
func (s *Service) ReviewQueue(ctx context.Context, n int) ([]model.Result, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.ReviewQueue(ctx, n)
}

// PolicyVersion reports the version of the policy tables in use.
func (s *Service) PolicyVersion() string {
	return s.pipeline.PolicyVersion()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":          s.started,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"dedupeSize":       s.dedupeSize,
		"batchConcurrency": s.batchConcurrency,
	}

	if s.started {
		queueLen := s.jobs.Len(ctx)
		stats["queueLength"] = queueLen
		stats["activeWorkers"] = s.pool.Active()
		stats["storedResults"] = s.store.Count(ctx)
		stats["rememberedDocuments"] = s.deduper.Size()
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func (s *Service) log() logger.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logger.Get()
}
