package pipeline

import (
	"github.com/okian/revsched/internal/domain/agreement"
	"github.com/okian/revsched/internal/domain/garage"
	"github.com/okian/revsched/internal/domain/schedule"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNormalizer sets the schedule normalizer.
func WithNormalizer(n *schedule.Normalizer) Option {
	return func(p *Pipeline) {
		p.normalizer = n
	}
}

// WithScorer sets the agreement scorer.
func WithScorer(s *agreement.Scorer) Option {
	return func(p *Pipeline) {
		p.scorer = s
	}
}

// WithMapper sets the Garage mapper.
func WithMapper(m *garage.Mapper) Option {
	return func(p *Pipeline) {
		p.mapper = m
	}
}

// WithPolicyVersion tags outputs with the version of the policy tables.
func WithPolicyVersion(v string) Option {
	return func(p *Pipeline) {
		if v != "" {
			p.policyVersion = v
		}
	}
}
