package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lsp-bridge/internal/common"
)

func TestRistrettoCacheRoundTrip(t *testing.T) {
	cache, err := NewRistrettoCache(10_000)
	require.NoError(t, err)
	defer cache.Close()

	symbols := ConvertSymbols(common.FilePathToURI("/src/foo.go"), classFixture())
	cache.Set("/src/foo.go", 100, symbols)
	cache.Wait()

	got, ok := cache.Get("/src/foo.go", 100)
	require.True(t, ok)
	assert.Equal(t, symbols, got)
}

func TestRistrettoCacheStaleMtimeMisses(t *testing.T) {
	cache, err := NewRistrettoCache(10_000)
	require.NoError(t, err)
	defer cache.Close()

	cache.Set("/src/foo.go", 100, nil)
	cache.Wait()

	_, ok := cache.Get("/src/foo.go", 101)
	assert.False(t, ok)
}

func TestRistrettoCacheEmptyTreeIsCacheable(t *testing.T) {
	cache, err := NewRistrettoCache(10_000)
	require.NoError(t, err)
	defer cache.Close()

	cache.Set("/src/empty.go", 5, []IndexedSymbol{})
	cache.Wait()

	got, ok := cache.Get("/src/empty.go", 5)
	require.True(t, ok)
	assert.Empty(t, got)
}
