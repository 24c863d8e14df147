package service

import (
	"strings"

	"github.com/okian/revsched/internal/domain/catalog"
	"github.com/okian/revsched/internal/domain/model"
	"github.com/okian/revsched/internal/domain/pipeline"
	"github.com/okian/revsched/internal/domain/schedule"
	"github.com/okian/revsched/pkg/metrics"
)

// policyActions maps issue prefixes written by the policy engine to metric labels.
var policyActions = []struct {
	prefix string
	action string
}{
	{"Brand override", "brand_override"},
	{"Demoted Unit price", "unit_demoted"},
	{"Demoted ", "tier_demoted"},
	{"Promoted ", "unit_promoted"},
	{"Derived ", "unit_derived"},
	{"Dropped ", "tiers_dropped"},
}

// observe records metrics for one pipeline run.
func observe(doc model.Document, out *pipeline.Output) {
	for _, run := range doc.Runs {
		switch {
		case run.Failed:
			metrics.RecordParseOutcome("failed")
		case run.Recovered:
			metrics.RecordParseOutcome("recovered")
		default:
			metrics.RecordParseOutcome("clean")
		}
	}

	if out.ShouldRetry {
		metrics.RecordDocument("retry")
		metrics.RecordRetryRecommendation()
	} else {
		metrics.RecordDocument("ok")
	}

	metrics.RecordRecordsNormalized(len(out.Schedules))
	issues := len(out.Issues)
	for i := range out.Schedules {
		rec := &out.Schedules[i]
		issues += len(rec.Issues)
		metrics.RecordPriceResolution(string(priceSource(rec)))
		for _, is := range rec.Issues {
			if action, ok := policyAction(is); ok {
				metrics.RecordPolicyAction(action)
			}
		}
	}
	metrics.RecordIssues(issues)

	for _, r := range out.Agreement {
		metrics.RecordAgreementConfidence(r.Confidence)
	}
	if out.Summary != nil {
		metrics.RecordFlagged(out.Summary.Flagged)
	}
}

func policyAction(issue string) (string, bool) {
	for _, p := range policyActions {
		if strings.HasPrefix(issue, p.prefix) {
			return p.action, true
		}
	}
	return "", false
}

// priceSource recovers how total_price was resolved from the record's issues.
func priceSource(rec *schedule.Record) schedule.PriceSource {
	for _, is := range rec.Issues {
		switch {
		case is == schedule.ExplicitZeroIssue:
			return schedule.SourceExplicitZero
		case is == schedule.MissingPriceIssue:
			return schedule.SourceNone
		case strings.Contains(is, "recovered from text"):
			return schedule.SourceText
		}
	}
	if rec.TotalPrice == nil {
		return schedule.SourceNone
	}
	return schedule.SourceStructured
}

// observedMatcher counts catalog lookups by match method.
type observedMatcher struct {
	*catalog.Matcher
}

func (m observedMatcher) Match(name string) (catalog.Match, bool) {
	match, ok := m.Matcher.Match(name)
	if ok {
		metrics.RecordCatalogMatch(string(match.Method))
	} else {
		metrics.RecordCatalogMatch("none")
	}
	return match, ok
}
