package index

import (
	"strings"

	"go.lsp.dev/protocol"
)

// LSP symbol kind values, named here so callers and the CLI do not deal in
// bare numbers.
const (
	KindFile          protocol.SymbolKind = 1
	KindModule        protocol.SymbolKind = 2
	KindNamespace     protocol.SymbolKind = 3
	KindPackage       protocol.SymbolKind = 4
	KindClass         protocol.SymbolKind = 5
	KindMethod        protocol.SymbolKind = 6
	KindProperty      protocol.SymbolKind = 7
	KindField         protocol.SymbolKind = 8
	KindConstructor   protocol.SymbolKind = 9
	KindEnum          protocol.SymbolKind = 10
	KindInterface     protocol.SymbolKind = 11
	KindFunction      protocol.SymbolKind = 12
	KindVariable      protocol.SymbolKind = 13
	KindConstant      protocol.SymbolKind = 14
	KindString        protocol.SymbolKind = 15
	KindNumber        protocol.SymbolKind = 16
	KindBoolean       protocol.SymbolKind = 17
	KindArray         protocol.SymbolKind = 18
	KindObject        protocol.SymbolKind = 19
	KindKey           protocol.SymbolKind = 20
	KindNull          protocol.SymbolKind = 21
	KindEnumMember    protocol.SymbolKind = 22
	KindStruct        protocol.SymbolKind = 23
	KindEvent         protocol.SymbolKind = 24
	KindOperator      protocol.SymbolKind = 25
	KindTypeParameter protocol.SymbolKind = 26
)

var kindNames = map[protocol.SymbolKind]string{
	KindFile:          "file",
	KindModule:        "module",
	KindNamespace:     "namespace",
	KindPackage:       "package",
	KindClass:         "class",
	KindMethod:        "method",
	KindProperty:      "property",
	KindField:         "field",
	KindConstructor:   "constructor",
	KindEnum:          "enum",
	KindInterface:     "interface",
	KindFunction:      "function",
	KindVariable:      "variable",
	KindConstant:      "constant",
	KindString:        "string",
	KindNumber:        "number",
	KindBoolean:       "boolean",
	KindArray:         "array",
	KindObject:        "object",
	KindKey:           "key",
	KindNull:          "null",
	KindEnumMember:    "enummember",
	KindStruct:        "struct",
	KindEvent:         "event",
	KindOperator:      "operator",
	KindTypeParameter: "typeparameter",
}

// KindName returns a lowercase display name for a symbol kind
func KindName(kind protocol.SymbolKind) string {
	if name, ok := kindNames[kind]; ok {
		return name
	}
	return "unknown"
}

// ParseKind resolves a case-insensitive kind name
func ParseKind(name string) (protocol.SymbolKind, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for kind, kindName := range kindNames {
		if kindName == want {
			return kind, true
		}
	}
	return 0, false
}
