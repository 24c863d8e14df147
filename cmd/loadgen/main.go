package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/revsched/internal/loadgen"
)

// Default configuration constants.
const (
	defaultDocuments   = 1000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultRate        = 200
	defaultBurst       = 20
	defaultTimeout     = 30 * time.Second
	defaultPollTimeout = 2 * time.Minute
	defaultReviewLimit = 20
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		documents   = flag.Int("documents", defaultDocuments, "Number of documents to generate")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		perSecond   = flag.Float64("rate", defaultRate, "Submissions per second, 0 for unlimited")
		burst       = flag.Int("burst", defaultBurst, "Rate limiter burst")
		duplicates  = flag.Float64("duplicates", 0.05, "Share of documents resubmitted with the same id")
		drift       = flag.Float64("drift", 0.2, "Share of second runs that disagree")
		raw         = flag.Float64("raw", 0.2, "Share of runs sent as raw model text")
		seed        = flag.Int64("seed", 0, "Generator seed, 0 for random")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		pollTimeout = flag.Duration("poll", defaultPollTimeout, "How long to wait for jobs")
		reviewLimit = flag.Int("review", defaultReviewLimit, "Review queue entries to fetch")
		outputFile  = flag.String("output", "", "Write generated documents to this file")
		logFile     = flag.String("log", "", "Also write logs to this file")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return
	}

	if err := loadgen.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:     *baseURL,
		Documents:   *documents,
		Workers:     max(*workers, 1),
		Rate:        *perSecond,
		Burst:       *burst,
		Timeout:     *timeout,
		PollTimeout: *pollTimeout,
		ReviewLimit: *reviewLimit,
		Duplicates:  *duplicates,
		Drift:       *drift,
		RawText:     *raw,
		Seed:        *seed,
		OutputFile:  *outputFile,
		Verbose:     *verbose,
	}

	if _, err := loadgen.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Load run failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
