package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/okian/revsched/internal/domain/model"
	"github.com/okian/revsched/pkg/logger"
)

// Verification errors.
var (
	ErrJobsPending    = errors.New("jobs still queued after poll timeout")
	ErrReviewUnsorted = errors.New("review queue is not ordered by confidence")
)

type jobStatus struct {
	Status model.Status `json:"status"`
}

// awaitJobs polls every job until it leaves the queued state or the poll
// timeout passes.
func awaitJobs(ctx context.Context, cfg *Config, client *HTTPClient, ids []string, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "waiting for jobs", logger.Int("jobs", len(ids)))

	pending := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}
	deadline := time.Now().Add(cfg.PollTimeout)

	for len(pending) > 0 && time.Now().Before(deadline) {
		for id := range pending {
			var js jobStatus
			status, err := client.Get(ctx, "/v1/jobs/"+id, &js)
			if err != nil {
				if ctx.Err() != nil {
					return fmt.Errorf("polling cancelled: %w", ctx.Err())
				}
				continue
			}
			if status != http.StatusOK {
				continue
			}
			switch js.Status {
			case model.StatusDone:
				stats.JobsDone++
				delete(pending, id)
			case model.StatusFailed:
				stats.JobsFailed++
				delete(pending, id)
			}
		}
		if len(pending) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("polling cancelled: %w", ctx.Err())
		case <-time.After(PollInterval):
		}
	}

	stats.JobsPending = len(pending)
	if stats.JobsPending > 0 {
		return fmt.Errorf("%w: %d", ErrJobsPending, stats.JobsPending)
	}
	return nil
}

// fetchReview reads the review queue and checks its ordering.
func fetchReview(ctx context.Context, cfg *Config, client *HTTPClient, stats *Stats) ([]ReviewEntry, error) {
	var entries []ReviewEntry
	status, err := client.Get(ctx, fmt.Sprintf("/v1/review?limit=%d", cfg.ReviewLimit), &entries)
	if err != nil {
		return nil, fmt.Errorf("fetch review queue: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch review queue: status %d", status)
	}
	stats.ReviewEntries = len(entries)
	if err := verifyReviewOrder(entries); err != nil {
		return entries, err
	}
	displayReview(ctx, entries, cfg.Verbose)
	return entries, nil
}

// verifyReviewOrder checks that confidence never decreases down the queue.
func verifyReviewOrder(entries []ReviewEntry) error {
	sorted := sort.SliceIsSorted(entries, func(i, j int) bool {
		return entries[i].MeanConfidence < entries[j].MeanConfidence
	})
	if !sorted {
		return ErrReviewUnsorted
	}
	return nil
}

func displayReview(ctx context.Context, entries []ReviewEntry, verbose bool) {
	n := len(entries)
	if !verbose && n > 5 {
		n = 5
	}
	for i := 0; i < n; i++ {
		e := entries[i]
		logger.Get().Info(ctx, "review candidate",
			logger.Int("position", i+1),
			logger.String("job_id", e.JobID),
			logger.String("document_id", e.DocumentID),
			logger.Float64("mean_confidence", e.MeanConfidence),
			logger.Int("flagged", e.Flagged),
			logger.Bool("should_retry", e.ShouldRetry),
		)
	}
}
