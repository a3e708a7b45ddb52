package index

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// SymbolCache lets the indexer skip the LSP round trip for files whose
// symbols are already known. Entries are keyed by path plus modification
// time, so a changed file misses naturally. A miss is never an error.
type SymbolCache interface {
	Get(path string, modTime int64) ([]IndexedSymbol, bool)
	Set(path string, modTime int64, symbols []IndexedSymbol)
}

// RistrettoCache is a SymbolCache backed by an in-process ristretto cache
type RistrettoCache struct {
	c *ristretto.Cache[string, []IndexedSymbol]
}

// NewRistrettoCache creates a cache that admits roughly maxSymbols symbols
// in total, costed per tree by symbol count.
func NewRistrettoCache(maxSymbols int64) (*RistrettoCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []IndexedSymbol]{
		NumCounters: maxSymbols * 10,
		MaxCost:     maxSymbols,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create symbol cache: %w", err)
	}
	return &RistrettoCache{c: c}, nil
}

func cacheKey(path string, modTime int64) string {
	return fmt.Sprintf("%s@%d", path, modTime)
}

func (r *RistrettoCache) Get(path string, modTime int64) ([]IndexedSymbol, bool) {
	return r.c.Get(cacheKey(path, modTime))
}

func (r *RistrettoCache) Set(path string, modTime int64, symbols []IndexedSymbol) {
	cost := int64(countSymbols(symbols))
	if cost == 0 {
		cost = 1
	}
	r.c.Set(cacheKey(path, modTime), symbols, cost)
}

// Wait blocks until buffered sets are applied; useful in tests
func (r *RistrettoCache) Wait() {
	r.c.Wait()
}

// Close releases the cache's resources
func (r *RistrettoCache) Close() {
	r.c.Close()
}
