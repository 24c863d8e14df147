package loadgen

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/revsched/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging sends structured logs to stdout and, when logFile is set,
// to that file as well.
func SetupLogging(logFile string, verbose bool) error {
	var w io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.Init(logger.WithWriter(w)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the load generator.
func ShowHelp() {
	os.Stdout.WriteString(`revsched load generator
=======================

Submits synthetic extraction runs to a running revsched server, waits for
every job to finish and checks the review queue ordering.

Usage:
  go run ./cmd/loadgen [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -documents int     Number of documents to generate (default 1000)
  -workers int       Number of concurrent submitters (default CPU cores * 2)
  -rate float        Submissions per second, 0 for unlimited (default 200)
  -burst int         Rate limiter burst (default 20)
  -duplicates float  Share of documents resubmitted with the same id (default 0.05)
  -drift float       Share of second runs that disagree (default 0.2)
  -raw float         Share of runs sent as raw model text (default 0.2)
  -seed int          Generator seed, 0 for random (default 0)
  -timeout duration  HTTP request timeout (default 30s)
  -poll duration     How long to wait for jobs (default 2m)
  -review int        Review queue entries to fetch (default 20)
  -output string     Write generated documents to this file
  -log string        Also write logs to this file
  -verbose           Enable verbose logging
  -help              Show this help message

Examples:
  go run ./cmd/loadgen -documents 5000 -rate 500 -workers 16
  go run ./cmd/loadgen -seed 42 -output docs.json
`)
}
