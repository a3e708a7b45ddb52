package index

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func queriedNames(results []IndexedSymbol) []string {
	names := make([]string, len(results))
	for i, sym := range results {
		names[i] = sym.Name
	}
	sort.Strings(names)
	return names
}

func populatedIndex(t *testing.T) *SymbolIndex {
	t.Helper()
	ix, provider, filesystem := newTestIndex(t, nil)
	filesystem.add("/src/foo.go", "x", 1)
	provider.symbols["/src/foo.go"] = classFixture()
	require.NoError(t, ix.IndexFile(context.Background(), "/src/foo.go"))
	return ix
}

func TestQueryByExactName(t *testing.T) {
	ix := populatedIndex(t)

	results := ix.QuerySymbols(Query{Name: "bar"})
	assert.Equal(t, []string{"bar"}, queriedNames(results))

	// Exact match only, no prefixes.
	assert.Empty(t, ix.QuerySymbols(Query{Name: "ba"}))
}

func TestQueryByKind(t *testing.T) {
	ix := populatedIndex(t)

	methods := ix.QuerySymbols(Query{Kinds: []protocol.SymbolKind{KindMethod}})
	assert.Equal(t, []string{"bar", "baz", "qux"}, queriedNames(methods))

	classes := ix.QuerySymbols(Query{Kinds: []protocol.SymbolKind{KindClass}})
	assert.Equal(t, []string{"Foo", "Inner"}, queriedNames(classes))

	both := ix.QuerySymbols(Query{Kinds: []protocol.SymbolKind{
		KindMethod, KindClass,
	}})
	assert.Len(t, both, 5)
}

func TestQueryByContainer(t *testing.T) {
	ix := populatedIndex(t)

	// qux lives in Inner, so a Foo container query must not return it.
	results := ix.QuerySymbols(Query{ContainerName: "Foo"})
	assert.Equal(t, []string{"bar", "baz"}, queriedNames(results))

	results = ix.QuerySymbols(Query{ContainerName: "Inner"})
	assert.Equal(t, []string{"qux"}, queriedNames(results))
}

func TestQueryFiltersAreANDed(t *testing.T) {
	ix := populatedIndex(t)

	results := ix.QuerySymbols(Query{
		Name:          "bar",
		Kinds:         []protocol.SymbolKind{KindMethod},
		ContainerName: "Foo",
	})
	assert.Equal(t, []string{"bar"}, queriedNames(results))

	assert.Empty(t, ix.QuerySymbols(Query{Name: "bar", ContainerName: "Inner"}))
	assert.Empty(t, ix.QuerySymbols(Query{
		Name:  "bar",
		Kinds: []protocol.SymbolKind{KindClass},
	}))
}

func TestEmptyQueryMatchesEverything(t *testing.T) {
	ix := populatedIndex(t)
	assert.Equal(t, []string{"Foo", "Inner", "bar", "baz", "qux"},
		queriedNames(ix.QuerySymbols(Query{})))
}

func TestQueryExcludingChildren(t *testing.T) {
	ix := populatedIndex(t)

	includeChildren := false
	topLevel := ix.QuerySymbols(Query{IncludeChildren: &includeChildren})
	assert.Equal(t, []string{"Foo", "Inner"}, queriedNames(topLevel))

	// A child filter with children excluded finds nothing.
	assert.Empty(t, ix.QuerySymbols(Query{Name: "bar", IncludeChildren: &includeChildren}))
}

func TestQueryByFile(t *testing.T) {
	ix, provider, filesystem := newTestIndex(t, nil)
	filesystem.add("/src/one.go", "x", 1)
	filesystem.add("/src/two.go", "x", 1)
	provider.symbols["/src/one.go"] = classFixture()
	provider.symbols["/src/two.go"] = classFixture()
	require.NoError(t, ix.IndexFile(context.Background(), "/src/one.go"))
	require.NoError(t, ix.IndexFile(context.Background(), "/src/two.go"))

	all := ix.QuerySymbols(Query{Name: "bar"})
	assert.Len(t, all, 2)

	onlyOne := ix.QuerySymbols(Query{Name: "bar", File: "/src/one.go"})
	require.Len(t, onlyOne, 1)
	assert.Contains(t, string(onlyOne[0].Location.URI), "one.go")

	// The file filter accepts a file:// URI too.
	byURI := ix.QuerySymbols(Query{Name: "bar", File: "file:///src/two.go"})
	require.Len(t, byURI, 1)
	assert.Contains(t, string(byURI[0].Location.URI), "two.go")

	assert.Empty(t, ix.QuerySymbols(Query{File: "/src/missing.go"}))
}

func TestQueryResultsHaveChildrenStripped(t *testing.T) {
	ix := populatedIndex(t)
	for _, sym := range ix.QuerySymbols(Query{}) {
		assert.Nil(t, sym.Children)
	}
}

func TestChildrenMatchIndependentlyOfParent(t *testing.T) {
	ix := populatedIndex(t)

	// Foo itself does not match kind Method, its children still do.
	methods := ix.QuerySymbols(Query{
		Kinds:         []protocol.SymbolKind{KindMethod},
		ContainerName: "Foo",
	})
	assert.Equal(t, []string{"bar", "baz"}, queriedNames(methods))
}
