// Package dedupe tracks document ids already accepted for processing so a
// resubmitted document is not normalized twice.
package dedupe

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Deduper records seen document ids.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so the document can be submitted again, e.g.
	// after the job queue refused it.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper keeps ids in a bounded LRU set; once full, the least
// recently recorded id is evicted. A non-positive size disables the bound.
type inMemoryDeduper struct {
	maxSize int

	cache *lru.Cache[string, struct{}]

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.maxSize > 0 {
		// lru.New only fails for a non-positive size.
		d.cache, _ = lru.New[string, struct{}](d.maxSize)
	} else {
		d.seen = make(map[string]struct{})
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	if d.cache != nil {
		seen, _ := d.cache.ContainsOrAdd(id, struct{}{})
		return seen
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	if d.cache != nil {
		d.cache.Remove(id)
		return
	}

	d.mu.Lock()
	delete(d.seen, id)
	d.mu.Unlock()
}

// Size returns the current number of remembered ids.
func (d *inMemoryDeduper) Size() int64 {
	if d.cache != nil {
		return int64(d.cache.Len())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
