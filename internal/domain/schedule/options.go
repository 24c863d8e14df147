package schedule

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithBrandTerms replaces the protected brand terms.
func WithBrandTerms(terms ...string) Option {
	return func(n *Normalizer) {
		n.brandTerms = terms
	}
}

// WithUnitNouns replaces the nouns recognized in per-unit phrasing.
func WithUnitNouns(nouns ...string) Option {
	return func(n *Normalizer) {
		n.unitNouns = nouns
	}
}

// WithUsageKeywords replaces the usage and metering keywords.
func WithUsageKeywords(keywords ...string) Option {
	return func(n *Normalizer) {
		n.usageKeywords = keywords
	}
}

// WithEvidenceLimit caps evidence entries per record.
func WithEvidenceLimit(limit int) Option {
	return func(n *Normalizer) {
		if limit > 0 {
			n.evidenceLimit = limit
		}
	}
}
