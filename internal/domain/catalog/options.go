package catalog

// Option configures a Matcher.
type Option func(*Matcher)

// WithItems replaces the catalog (name to integration id).
func WithItems(items map[string]string) Option {
	return func(m *Matcher) {
		if len(items) > 0 {
			m.items = items
		}
	}
}

// WithStopWords replaces the words ignored by fuzzy matching.
func WithStopWords(words ...string) Option {
	return func(m *Matcher) {
		m.stop = set(words)
	}
}

// WithFlavorWords replaces the words that cannot carry a fuzzy match alone.
func WithFlavorWords(words ...string) Option {
	return func(m *Matcher) {
		m.flavor = set(words)
	}
}

// WithThreshold sets the minimum fuzzy score.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 {
			m.threshold = threshold
		}
	}
}
