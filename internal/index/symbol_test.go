package index

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertHierarchicalDocumentSymbols(t *testing.T) {
	symbols := ConvertSymbols("file:///src/foo.go", classFixture())
	require.Len(t, symbols, 2)

	foo := symbols[0]
	assert.Equal(t, "Foo", foo.Name)
	assert.Equal(t, KindClass, foo.Kind)
	assert.Equal(t, "", foo.ContainerName)
	assert.Equal(t, "file:///src/foo.go", string(foo.Location.URI))
	require.Len(t, foo.Children, 2)

	// Nested children carry their parent as container.
	assert.Equal(t, "bar", foo.Children[0].Name)
	assert.Equal(t, "Foo", foo.Children[0].ContainerName)
	assert.Equal(t, KindMethod, foo.Children[0].Kind)
	assert.Equal(t, uint32(1), foo.Children[0].Location.Range.Start.Line)

	inner := symbols[1]
	require.Len(t, inner.Children, 1)
	assert.Equal(t, "Inner", inner.Children[0].ContainerName)

	assert.Equal(t, 5, countSymbols(symbols))
}

func TestConvertFlatSymbolInformation(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{
			"name": "helper", "kind": 12, "containerName": "util",
			"location": {
				"uri": "file:///src/util.go",
				"range": {"start":{"line":9,"character":0},"end":{"line":9,"character":6}}
			}
		}`),
	}

	symbols := ConvertSymbols("file:///src/util.go", raw)
	require.Len(t, symbols, 1)
	assert.Equal(t, "helper", symbols[0].Name)
	assert.Equal(t, KindFunction, symbols[0].Kind)
	assert.Equal(t, "util", symbols[0].ContainerName)
	assert.Equal(t, uint32(9), symbols[0].Location.Range.Start.Line)
	assert.Nil(t, symbols[0].Children)
}

func TestConvertDropsUnparsableEntries(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`"just a string"`),
		json.RawMessage(`{"kind": 12}`),
		json.RawMessage(`{
			"name": "survivor", "kind": 12,
			"location": {"uri":"file:///s.go","range":{"start":{"line":0,"character":0},"end":{"line":0,"character":1}}}
		}`),
	}

	symbols := ConvertSymbols("file:///s.go", raw)
	require.Len(t, symbols, 1)
	assert.Equal(t, "survivor", symbols[0].Name)
}

// deepFixture nests one DocumentSymbol per level, depth levels down
func deepFixture(depth int) json.RawMessage {
	leaf := `{
		"name": "leaf", "kind": 13,
		"range": {"start":{"line":0,"character":0},"end":{"line":0,"character":1}},
		"selectionRange": {"start":{"line":0,"character":0},"end":{"line":0,"character":1}}
	}`
	node := leaf
	for i := 0; i < depth; i++ {
		node = fmt.Sprintf(`{
			"name": "level%d", "kind": 5,
			"range": {"start":{"line":0,"character":0},"end":{"line":0,"character":1}},
			"selectionRange": {"start":{"line":0,"character":0},"end":{"line":0,"character":1}},
			"children": [%s]
		}`, depth-i, node)
	}
	return json.RawMessage(node)
}

func TestConvertDeepTreeTruncatesInsteadOfCrashing(t *testing.T) {
	symbols := ConvertSymbols("file:///deep.go", []json.RawMessage{deepFixture(maxSymbolDepth + 20)})
	require.Len(t, symbols, 1)

	// The cutoff node itself is kept; only its descendants are dropped.
	depth := 0
	node := &symbols[0]
	for len(node.Children) > 0 {
		node = &node.Children[0]
		depth++
	}
	assert.Equal(t, maxSymbolDepth, depth)
	assert.True(t, strings.HasPrefix(node.Name, "level"))

	assert.Equal(t, maxSymbolDepth+1, countSymbols(symbols))
}

func TestKindNames(t *testing.T) {
	assert.Equal(t, "method", KindName(KindMethod))
	assert.Equal(t, "unknown", KindName(99))

	kind, ok := ParseKind("  Struct ")
	require.True(t, ok)
	assert.Equal(t, KindStruct, kind)

	_, ok = ParseKind("gizmo")
	assert.False(t, ok)
}
