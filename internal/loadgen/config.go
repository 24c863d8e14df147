// Package loadgen drives a running revsched server with synthetic
// extraction runs and checks that every job finishes and that the review
// queue is ordered.
package loadgen

import (
	"encoding/json"
	"time"

	"github.com/okian/revsched/internal/domain/model"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Documents   int           // Number of documents to generate
	Workers     int           // Number of concurrent submitters
	Rate        float64       // Submissions per second; 0 disables pacing
	Burst       int           // Limiter burst
	Timeout     time.Duration // HTTP request timeout
	PollTimeout time.Duration // How long to wait for jobs to finish
	ReviewLimit int           // Entries fetched from the review queue
	Duplicates  float64       // Share of documents resubmitted with the same id
	Drift       float64       // Share of second runs that disagree with the first
	RawText     float64       // Share of runs sent as raw model text
	Seed        int64         // Generator seed; 0 picks a random one
	OutputFile  string        // Output file for generated documents
	Verbose     bool          // Enable verbose logging
}

// Document is one generated request body for POST /v1/jobs.
type Document struct {
	DocumentID string            `json:"document_id"`
	Runs       []json.RawMessage `json:"runs"`
}

// Submission mirrors the POST /v1/jobs response.
type Submission struct {
	JobID     string       `json:"job_id"`
	Status    model.Status `json:"status"`
	Duplicate bool         `json:"duplicate"`
}

// ReviewEntry mirrors one GET /v1/review entry.
type ReviewEntry struct {
	JobID          string  `json:"job_id"`
	DocumentID     string  `json:"document_id"`
	MeanConfidence float64 `json:"mean_confidence"`
	Flagged        int     `json:"flagged"`
	ShouldRetry    bool    `json:"should_retry"`
	Issues         int     `json:"issues"`
}

// Stats holds load run statistics.
type Stats struct {
	DocumentsGenerated int
	Submitted          int
	Accepted           int
	Duplicate          int
	Rejected           int
	Failed             int
	JobsDone           int
	JobsFailed         int
	JobsPending        int
	ReviewEntries      int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
