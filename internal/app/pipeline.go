package service

import (
	"github.com/okian/revsched/internal/config"
	"github.com/okian/revsched/internal/domain/agreement"
	"github.com/okian/revsched/internal/domain/catalog"
	"github.com/okian/revsched/internal/domain/garage"
	"github.com/okian/revsched/internal/domain/pipeline"
	"github.com/okian/revsched/internal/domain/schedule"
)

// NewMatcher builds the catalog matcher described by cfg.
func NewMatcher(cfg *config.Config) *catalog.Matcher {
	return catalog.New(
		catalog.WithItems(cfg.Catalog.Items),
		catalog.WithStopWords(cfg.Catalog.StopWords...),
		catalog.WithFlavorWords(cfg.Catalog.FlavorWords...),
		catalog.WithThreshold(cfg.Catalog.FuzzyThreshold),
	)
}

// NewPipeline builds a pipeline from the policy, catalog and agreement
// sections of cfg.
func NewPipeline(cfg *config.Config) *pipeline.Pipeline {
	normalizer := schedule.NewNormalizer(
		schedule.WithBrandTerms(cfg.Policy.BrandTerms...),
		schedule.WithUnitNouns(cfg.Policy.UnitNouns...),
		schedule.WithUsageKeywords(cfg.Policy.UsageKeywords...),
		schedule.WithEvidenceLimit(cfg.Policy.EvidenceLimit),
	)
	scorer := agreement.New(
		agreement.WithMinConfidence(cfg.Agreement.MinConfidence),
		agreement.WithMinSimilarity(cfg.Agreement.MinSimilarity),
	)
	mapper := garage.New(
		observedMatcher{NewMatcher(cfg)},
		garage.WithOneTimeDefaults(cfg.OneTime.Name, cfg.OneTime.Description),
	)
	return pipeline.New(
		pipeline.WithNormalizer(normalizer),
		pipeline.WithScorer(scorer),
		pipeline.WithMapper(mapper),
		pipeline.WithPolicyVersion(cfg.Policy.Version),
	)
}
