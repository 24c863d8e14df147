// Package repository keeps job results in process memory.
package repository

import (
	"context"

	"github.com/okian/revsched/internal/domain/model"
)

// Store provides read/write access to job results.
type Store interface {
	// Put inserts or replaces the result for r.JobID.
	Put(ctx context.Context, r model.Result) error

	// MarkFailed records a failure for a known job.
	// Returns ErrNotFound if the job is unknown.
	MarkFailed(ctx context.Context, jobID string, cause error) error

	// Get returns the result for a job. Returns ErrNotFound if unknown.
	Get(ctx context.Context, jobID string) (model.Result, error)

	// ByDocument returns the latest job for a document id.
	ByDocument(ctx context.Context, documentID string) (model.Result, error)

	// ReviewQueue returns up to n finished results ordered by mean
	// agreement confidence ascending, ties broken by submit order.
	ReviewQueue(ctx context.Context, n int) ([]model.Result, error)

	// Count returns the number of stored results.
	Count(ctx context.Context) int
}
