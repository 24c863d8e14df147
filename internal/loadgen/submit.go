package loadgen

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/revsched/pkg/logger"
)

// submitDocuments posts documents to /v1/jobs from cfg.Workers goroutines
// and returns the job id of every accepted or duplicate submission.
func submitDocuments(ctx context.Context, cfg *Config, client *HTTPClient, docs []Document, stats *Stats) []string {
	log := logger.Get()
	log.Info(ctx, "submitting documents", logger.Int("documents", len(docs)), logger.Int("workers", cfg.Workers))

	var (
		accepted  int64
		duplicate int64
		rejected  int64
		failed    int64
		submitted int64
	)
	jobIDs := make(map[string]struct{}, len(docs))
	var mu sync.Mutex

	var lastReport atomic.Int64
	const reportInterval = time.Second

	docChan := make(chan Document, cfg.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range docChan {
				if ctx.Err() != nil {
					return
				}
				outcome, jobID := submitDocument(ctx, client, doc)
				total := atomic.AddInt64(&submitted, 1)
				switch outcome {
				case outcomeAccepted:
					atomic.AddInt64(&accepted, 1)
				case outcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				case outcomeRejected:
					atomic.AddInt64(&rejected, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
				if jobID != "" {
					mu.Lock()
					jobIDs[jobID] = struct{}{}
					mu.Unlock()
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if cfg.Verbose && now-last >= int64(reportInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "progress",
						logger.Int("submitted", int(total)),
						logger.Int("of", len(docs)),
						logger.Int("accepted", int(atomic.LoadInt64(&accepted))),
						logger.Int("duplicate", int(atomic.LoadInt64(&duplicate))),
						logger.Int("rejected", int(atomic.LoadInt64(&rejected))),
					)
				}
			}
		}()
	}

	go func() {
		defer close(docChan)
		for _, doc := range docs {
			select {
			case <-ctx.Done():
				return
			case docChan <- doc:
			}
		}
	}()

	wg.Wait()

	stats.Submitted = int(submitted)
	stats.Accepted = int(accepted)
	stats.Duplicate = int(duplicate)
	stats.Rejected = int(rejected)
	stats.Failed = int(failed)

	log.Info(ctx, "submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
	)

	ids := make([]string, 0, len(jobIDs))
	for id := range jobIDs {
		ids = append(ids, id)
	}
	return ids
}

// submitDocument posts a single document and classifies the response.
func submitDocument(ctx context.Context, client *HTTPClient, doc Document) (string, string) {
	var sub Submission
	status, err := client.Post(ctx, "/v1/jobs", doc, &sub)
	if err != nil {
		logger.Get().Debug(ctx, "submission failed", logger.String("document_id", doc.DocumentID), logger.Error(err))
		return outcomeFailed, ""
	}
	switch status {
	case http.StatusAccepted:
		return outcomeAccepted, sub.JobID
	case http.StatusOK:
		return outcomeDuplicate, sub.JobID
	case http.StatusTooManyRequests:
		return outcomeRejected, ""
	default:
		return outcomeFailed, ""
	}
}
