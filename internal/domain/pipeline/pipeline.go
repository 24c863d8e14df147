// Package pipeline wires normalization, agreement scoring and Garage
// mapping into a single synchronous pass over a document's extraction runs.
package pipeline

import (
	"fmt"

	"github.com/okian/revsched/internal/domain/agreement"
	"github.com/okian/revsched/internal/domain/catalog"
	"github.com/okian/revsched/internal/domain/extraction"
	"github.com/okian/revsched/internal/domain/garage"
	"github.com/okian/revsched/internal/domain/schedule"
)

// DefaultPolicyVersion tags outputs produced with the built-in tables.
const DefaultPolicyVersion = "2025-01"

// Output is the full result for one document. Garage is the canonical
// list for the billing system; everything else is for review.
type Output struct {
	Schedules       []schedule.Record           `json:"schedules"`
	Agreement       []agreement.Result          `json:"agreement,omitempty"`
	Summary         *agreement.Summary          `json:"agreement_summary,omitempty"`
	Garage          []garage.Record             `json:"garage"`
	ShouldRetry     bool                        `json:"should_retry"`
	Issues          []string                    `json:"issues"`
	TotalsCheck     *extraction.TotalsCheck     `json:"totals_check"`
	Recommendations *extraction.Recommendations `json:"model_recommendations"`
	Customer        *extraction.Customer        `json:"customer,omitempty"`
	PolicyVersion   string                      `json:"policy_version"`
}

// Pipeline runs the core stages. It keeps no state between calls and is
// safe for concurrent use.
type Pipeline struct {
	normalizer    *schedule.Normalizer
	scorer        *agreement.Scorer
	mapper        *garage.Mapper
	policyVersion string
}

// New returns a Pipeline over the default tables unless overridden.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{policyVersion: DefaultPolicyVersion}
	for _, opt := range opts {
		opt(p)
	}
	if p.normalizer == nil {
		p.normalizer = schedule.NewNormalizer()
	}
	if p.scorer == nil {
		p.scorer = agreement.New()
	}
	if p.mapper == nil {
		p.mapper = garage.New(catalog.New())
	}
	return p
}

// Run normalizes the first run, scores it against the second when one is
// given and maps it to Garage records. Runs past the second are ignored.
func (p *Pipeline) Run(runs []extraction.Run) Output {
	out := Output{
		Schedules:     []schedule.Record{},
		Garage:        []garage.Record{},
		Issues:        []string{},
		PolicyVersion: p.policyVersion,
	}
	if len(runs) == 0 {
		out.Issues = append(out.Issues, "No extraction runs supplied")
		out.ShouldRetry = true
		return out
	}

	first := runs[0]
	out.Schedules = p.normalizer.NormalizeAll(first.Schedules)
	out.Issues = append(out.Issues, first.Issues...)
	out.TotalsCheck = first.TotalsCheck
	out.Recommendations = first.Recommendations
	out.Customer = first.Customer

	if len(runs) > 1 {
		second := p.normalizer.NormalizeAll(runs[1].Schedules)
		results, summary := p.scorer.Score(out.Schedules, second)
		out.Agreement, out.Summary = results, &summary
		for _, is := range runs[1].Issues {
			out.Issues = append(out.Issues, "run 2: "+is)
		}
	}
	if len(runs) > 2 {
		out.Issues = append(out.Issues, fmt.Sprintf("Only the first 2 of %d runs were compared", len(runs)))
	}

	if issue, ok := extraction.ReconcileTotals(out.Schedules, out.TotalsCheck); ok {
		out.Issues = append(out.Issues, issue)
	}

	garageRecords, mapIssues := p.mapper.MapAll(out.Schedules)
	out.Garage = garageRecords
	out.Issues = append(out.Issues, mapIssues...)
	out.ShouldRetry = schedule.ShouldRetry(out.Schedules)
	return out
}

// Normalizer exposes the normalizer used by the pipeline.
func (p *Pipeline) Normalizer() *schedule.Normalizer { return p.normalizer }

// PolicyVersion returns the tag written to every Output.
func (p *Pipeline) PolicyVersion() string { return p.policyVersion }
