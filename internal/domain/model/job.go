// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/revsched/internal/domain/extraction"
	"github.com/okian/revsched/internal/domain/pipeline"
)

// Document is one contract's extraction runs.
type Document struct {
	ID   string           // caller supplied id for idempotency; may be empty
	Runs []extraction.Run // first run is primary, second is the cross-check
}

// Status is a job lifecycle state.
type Status string

// Job states.
const (
	StatusQueued Status = "queued"
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// Job is a Document waiting in the queue.
type Job struct {
	ID          string
	Seq         uint64 // submit order, used to break ties in the review queue
	Document    Document
	SubmittedAt time.Time
}

// Result is the stored state of a job.
type Result struct {
	JobID       string           `json:"job_id"`
	DocumentID  string           `json:"document_id,omitempty"`
	Status      Status           `json:"status"`
	Output      *pipeline.Output `json:"output,omitempty"`
	Error       string           `json:"error,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	Seq         uint64           `json:"-"`
}

// NewResult returns the queued result for j.
func NewResult(j *Job) Result {
	return Result{
		JobID:       j.ID,
		DocumentID:  j.Document.ID,
		Status:      StatusQueued,
		SubmittedAt: j.SubmittedAt,
		Seq:         j.Seq,
	}
}

// MeanConfidence is the mean agreement confidence of a finished job.
// Documents scored from a single run have nothing to agree with and rank as 0.
func (r *Result) MeanConfidence() float64 {
	if r.Output == nil || r.Output.Summary == nil {
		return 0
	}
	return r.Output.Summary.MeanConfidence
}
