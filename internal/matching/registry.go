package matching

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/openalpha/disorderbook/internal/metrics"
)

type bookKey struct {
	venue  string
	symbol string
}

// Registry maps (venue, symbol) pairs to their Book, lazily creating Books
// on first use via double-checked locking so concurrent lookups of an
// already-created Book never contend on the write lock.
type Registry struct {
	mu      sync.RWMutex
	books   map[bookKey]*Book
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewRegistry creates an empty Registry. m may be nil to disable metrics
// reporting (used by tests).
func NewRegistry(log zerolog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		books:   make(map[bookKey]*Book),
		log:     log,
		metrics: m,
	}
}

// BookFor returns the Book for (venue, symbol), creating it if necessary.
func (r *Registry) BookFor(venue, symbol string) *Book {
	key := bookKey{venue, symbol}

	r.mu.RLock()
	b, ok := r.books[key]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.books[key]; ok {
		return b
	}
	b = NewBook(venue, symbol, r.log.With().Str("venue", venue).Str("symbol", symbol).Logger(), r.metrics)
	r.books[key] = b
	return b
}

// Lookup returns the Book for (venue, symbol) without creating one.
func (r *Registry) Lookup(venue, symbol string) (*Book, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[bookKey{venue, symbol}]
	return b, ok
}
