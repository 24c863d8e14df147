package agreement

// Option configures a Scorer.
type Option func(*Scorer)

// WithMinConfidence sets the confidence below which a record is flagged.
func WithMinConfidence(v float64) Option {
	return func(s *Scorer) {
		s.minConfidence = v
	}
}

// WithMinSimilarity sets the similarity below which a record is flagged.
func WithMinSimilarity(v float64) Option {
	return func(s *Scorer) {
		s.minSimilarity = v
	}
}
