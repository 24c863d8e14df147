package repository

// Option applies a configuration option to the ShardedStore.
type Option func(*ShardedStore)

// WithShardCount sets the number of shards.
func WithShardCount(n int) Option {
	return func(s *ShardedStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithMaxResults bounds the number of stored results; zero means unbounded.
func WithMaxResults(n int) Option {
	return func(s *ShardedStore) {
		if n >= 0 {
			s.maxResults = n
		}
	}
}
