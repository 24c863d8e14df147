// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New returns a Config filled with defaults.
//   - Load layers a YAML file and environment variables over the defaults.
//   - Policy and catalog tables live here and are injected into the domain
//     constructors, never read from globals.
package config

import (
	"runtime"

	"github.com/okian/revsched/internal/domain/catalog"
	"github.com/okian/revsched/internal/domain/garage"
	"github.com/okian/revsched/internal/domain/pipeline"
	"github.com/okian/revsched/internal/domain/schedule"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// QueueSize bounds the in-memory job queue.
	QueueSize int `koanf:"queue_size" validate:"min=1"`

	// WorkerCount sets the number of pipeline workers.
	WorkerCount int `koanf:"worker_count" validate:"min=1"`

	// DedupeSize sets how many document ids are remembered for idempotent submits.
	DedupeSize int `koanf:"dedupe_size" validate:"min=1"`

	// ShardCount configures the number of shards in the result store.
	ShardCount int `koanf:"shard_count" validate:"min=1"`

	// MaxReviewLimit caps GET /v1/review?limit.
	MaxReviewLimit int `koanf:"max_review_limit" validate:"min=1"`

	// MaxRequestBytes caps request bodies.
	MaxRequestBytes int64 `koanf:"max_request_bytes" validate:"min=1024"`

	// BatchConcurrency bounds documents processed at once by ProcessBatch.
	BatchConcurrency int `koanf:"batch_concurrency" validate:"min=1"`

	Policy    Policy    `koanf:"policy"`
	Catalog   Catalog   `koanf:"catalog"`
	Agreement Agreement `koanf:"agreement"`
	OneTime   OneTime   `koanf:"one_time"`
}

// Policy holds the business policy tables.
type Policy struct {
	Version       string   `koanf:"version" validate:"required"`
	BrandTerms    []string `koanf:"brand_terms"`
	UnitNouns     []string `koanf:"unit_nouns" validate:"min=1,dive,required"`
	UsageKeywords []string `koanf:"usage_keywords" validate:"dive,required"`
	EvidenceLimit int      `koanf:"evidence_limit" validate:"min=1"`
}

// Catalog configures integration item matching. Items maps item name to
// integration id; an empty map selects the built-in catalog.
type Catalog struct {
	Items          map[string]string `koanf:"items" validate:"dive,keys,required,endkeys,required"`
	StopWords      []string          `koanf:"stop_words"`
	FlavorWords    []string          `koanf:"flavor_words"`
	FuzzyThreshold float64           `koanf:"fuzzy_threshold" validate:"gt=0,lte=2"`
}

// Agreement configures review flagging.
type Agreement struct {
	MinConfidence float64 `koanf:"min_confidence" validate:"gte=0,lte=1"`
	MinSimilarity float64 `koanf:"min_similarity" validate:"gte=0,lte=1"`
}

// OneTime holds the defaults given to unnamed one-time items.
type OneTime struct {
	Name        string `koanf:"name" validate:"required"`
	Description string `koanf:"description"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		QueueSize:        10_000,
		WorkerCount:      runtime.NumCPU() * 2,
		DedupeSize:       100_000,
		ShardCount:       8,
		MaxReviewLimit:   100,
		MaxRequestBytes:  4 << 20,
		BatchConcurrency: runtime.NumCPU(),
		Policy: Policy{
			Version:       pipeline.DefaultPolicyVersion,
			BrandTerms:    clone(schedule.DefaultBrandTerms),
			UnitNouns:     clone(schedule.DefaultUnitNouns),
			UsageKeywords: clone(schedule.DefaultUsageKeywords),
			EvidenceLimit: 8,
		},
		Catalog: Catalog{
			StopWords:      clone(catalog.DefaultStopWords),
			FlavorWords:    clone(catalog.DefaultFlavorWords),
			FuzzyThreshold: catalog.DefaultThreshold,
		},
		Agreement: Agreement{
			MinConfidence: 0.75,
			MinSimilarity: 0.70,
		},
		OneTime: OneTime{
			Name:        garage.DefaultOneTimeName,
			Description: garage.DefaultOneTimeDescription,
		},
	}
}

func clone(in []string) []string {
	return append([]string(nil), in...)
}
