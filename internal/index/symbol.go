// Package index builds and queries a multi-key in-memory index of program
// symbols, fed by a language server's document-symbols request.
package index

import (
	"encoding/json"

	"go.lsp.dev/protocol"

	"lsp-bridge/internal/common"
)

// maxSymbolDepth bounds recursion over symbol trees. Pathological or cyclic
// server output stops descending at the cutoff; the node itself is kept.
const maxSymbolDepth = 64

// IndexedSymbol is one symbol in a file's tree. Hierarchical servers nest
// Children; flat servers fill ContainerName instead, and conversion fills it
// for nested children too so both shapes query the same way.
type IndexedSymbol struct {
	Name          string              `json:"name"`
	Kind          protocol.SymbolKind `json:"kind"`
	Location      protocol.Location   `json:"location"`
	ContainerName string              `json:"containerName,omitempty"`
	Children      []IndexedSymbol     `json:"children,omitempty"`
}

// FileSymbols is one indexed file's symbol tree
type FileSymbols struct {
	URI          string          `json:"uri"`
	LastModified int64           `json:"lastModified"`
	Symbols      []IndexedSymbol `json:"symbols"`
}

// ConvertSymbols turns raw documentSymbol results into IndexedSymbols. Each
// entry is either a DocumentSymbol (has selectionRange, possibly nested) or
// a SymbolInformation (has location and containerName). Entries that parse
// as neither are dropped.
func ConvertSymbols(uri string, raw []json.RawMessage) []IndexedSymbol {
	symbols := make([]IndexedSymbol, 0, len(raw))
	for _, entry := range raw {
		sym, ok := convertEntry(uri, entry, "", 0)
		if !ok {
			common.LSPLogger.Debug("dropping unparsable symbol entry in %s", uri)
			continue
		}
		symbols = append(symbols, sym)
	}
	return symbols
}

func convertEntry(uri string, raw json.RawMessage, container string, depth int) (IndexedSymbol, bool) {
	var probe struct {
		SelectionRange json.RawMessage `json:"selectionRange"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return IndexedSymbol{}, false
	}
	if len(probe.SelectionRange) > 0 {
		return convertDocumentSymbol(uri, raw, container, depth)
	}
	return convertSymbolInformation(raw)
}

func convertDocumentSymbol(uri string, raw json.RawMessage, container string, depth int) (IndexedSymbol, bool) {
	var ds struct {
		Name     string              `json:"name"`
		Kind     protocol.SymbolKind `json:"kind"`
		Range    protocol.Range      `json:"range"`
		Children []json.RawMessage   `json:"children"`
	}
	if err := json.Unmarshal(raw, &ds); err != nil || ds.Name == "" {
		return IndexedSymbol{}, false
	}

	sym := IndexedSymbol{
		Name:          ds.Name,
		Kind:          ds.Kind,
		ContainerName: container,
		Location: protocol.Location{
			URI:   protocol.DocumentURI(uri),
			Range: ds.Range,
		},
	}

	if depth >= maxSymbolDepth {
		common.LSPLogger.Warn("symbol tree in %s deeper than %d, truncating below %s",
			uri, maxSymbolDepth, ds.Name)
		return sym, true
	}

	for _, child := range ds.Children {
		converted, ok := convertEntry(uri, child, ds.Name, depth+1)
		if !ok {
			continue
		}
		sym.Children = append(sym.Children, converted)
	}
	return sym, true
}

func convertSymbolInformation(raw json.RawMessage) (IndexedSymbol, bool) {
	var si struct {
		Name          string              `json:"name"`
		Kind          protocol.SymbolKind `json:"kind"`
		Location      protocol.Location   `json:"location"`
		ContainerName string              `json:"containerName"`
	}
	if err := json.Unmarshal(raw, &si); err != nil || si.Name == "" {
		return IndexedSymbol{}, false
	}
	return IndexedSymbol{
		Name:          si.Name,
		Kind:          si.Kind,
		Location:      si.Location,
		ContainerName: si.ContainerName,
	}, true
}

// countSymbols counts a tree including all descendants
func countSymbols(symbols []IndexedSymbol) int {
	count := 0
	for i := range symbols {
		count += 1 + countSymbols(symbols[i].Children)
	}
	return count
}

// walkSymbols visits every symbol in the forest, depth first
func walkSymbols(symbols []IndexedSymbol, visit func(*IndexedSymbol)) {
	for i := range symbols {
		visit(&symbols[i])
		walkSymbols(symbols[i].Children, visit)
	}
}
