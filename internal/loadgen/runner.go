package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/revsched/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run executes a complete load run and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting revsched load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("documents", cfg.Documents),
		logger.Int("workers", cfg.Workers),
		logger.Float64("rate", cfg.Rate),
		logger.Duration("timeout", cfg.Timeout),
		logger.Bool("verbose", cfg.Verbose),
	)

	client := NewHTTPClient(cfg.BaseURL, cfg.Timeout, cfg.Rate, cfg.Burst)

	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	docs, err := NewGenerator(cfg).Documents(ctx)
	if err != nil {
		return stats, fmt.Errorf("document generation failed: %w", err)
	}
	stats.DocumentsGenerated = len(docs)

	ids := submitDocuments(ctx, cfg, client, docs, stats)

	if err := awaitJobs(ctx, cfg, client, ids, stats); err != nil {
		return stats, err
	}

	if _, err := fetchReview(ctx, cfg, client, stats); err != nil {
		return stats, err
	}

	if cfg.OutputFile != "" {
		if err := saveDocuments(ctx, cfg.OutputFile, docs); err != nil {
			log.Warn(ctx, "failed to save documents", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	log.Info(ctx, "load run completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	status, err := client.Get(ctx, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", status)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveDocuments writes the generated documents as a JSON array.
func saveDocuments(ctx context.Context, filename string, docs []Document) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal documents: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write documents: %w", err)
	}
	logger.Get().Info(ctx, "documents saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, docsPerSecond float64
	if stats.Submitted > 0 {
		acceptRate = float64(stats.Accepted) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		docsPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", stats.DocumentsGenerated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("jobsDone", stats.JobsDone),
		logger.Int("jobsFailed", stats.JobsFailed),
		logger.Int("reviewEntries", stats.ReviewEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("documentsPerSecond", docsPerSecond),
	)
}
