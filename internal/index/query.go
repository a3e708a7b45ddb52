package index

import (
	"strings"

	"go.lsp.dev/protocol"

	"lsp-bridge/internal/common"
)

// Query filters symbols; every set field must match (AND). The zero query
// matches everything. Children are tested against the filters on their own,
// independent of whether their parent matched.
type Query struct {
	// Name matches exactly when set
	Name string
	// Kinds matches any of the listed kinds when non-empty
	Kinds []protocol.SymbolKind
	// ContainerName matches the symbol's container exactly when set
	ContainerName string
	// File restricts to one file, given as a path or file:// URI
	File string
	// IncludeChildren controls whether descendants are searched at all.
	// Unset means true.
	IncludeChildren *bool
}

func (q Query) includeChildren() bool {
	return q.IncludeChildren == nil || *q.IncludeChildren
}

func (q Query) matches(sym *IndexedSymbol) bool {
	if q.Name != "" && sym.Name != q.Name {
		return false
	}
	if len(q.Kinds) > 0 {
		found := false
		for _, kind := range q.Kinds {
			if sym.Kind == kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.ContainerName != "" && sym.ContainerName != q.ContainerName {
		return false
	}
	return true
}

// QuerySymbols returns every symbol matching the query, flattened. Matches
// are copies with the children links stripped; descendants that match
// appear as their own entries.
func (ix *SymbolIndex) QuerySymbols(q Query) []IndexedSymbol {
	fileURI := ""
	if q.File != "" {
		if strings.HasPrefix(q.File, "file://") {
			fileURI = q.File
		} else {
			fileURI = common.FilePathToURI(q.File)
		}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	candidates := ix.candidateURIsLocked(q, fileURI)

	var results []IndexedSymbol
	for _, uri := range candidates {
		entry, ok := ix.files[uri]
		if !ok {
			continue
		}
		ix.collect(q, entry.Symbols, &results)
	}
	return results
}

// candidateURIsLocked narrows the file set through the derived indices
// before any tree is walked.
func (ix *SymbolIndex) candidateURIsLocked(q Query, fileURI string) []string {
	if fileURI != "" {
		if _, ok := ix.files[fileURI]; !ok {
			return nil
		}
		return []string{fileURI}
	}

	var narrowest map[string]struct{}
	if q.Name != "" {
		narrowest = ix.byName[q.Name]
	}
	if q.ContainerName != "" {
		if bucket := ix.byContainer[q.ContainerName]; narrowest == nil || len(bucket) < len(narrowest) {
			narrowest = bucket
		}
	}
	if q.Name != "" || q.ContainerName != "" {
		uris := make([]string, 0, len(narrowest))
		for uri := range narrowest {
			uris = append(uris, uri)
		}
		return uris
	}

	if len(q.Kinds) > 0 {
		merged := make(map[string]struct{})
		for _, kind := range q.Kinds {
			for uri := range ix.byKind[kind] {
				merged[uri] = struct{}{}
			}
		}
		uris := make([]string, 0, len(merged))
		for uri := range merged {
			uris = append(uris, uri)
		}
		return uris
	}

	uris := make([]string, 0, len(ix.files))
	for uri := range ix.files {
		uris = append(uris, uri)
	}
	return uris
}

func (ix *SymbolIndex) collect(q Query, symbols []IndexedSymbol, results *[]IndexedSymbol) {
	for i := range symbols {
		sym := &symbols[i]
		if q.matches(sym) {
			match := *sym
			match.Children = nil
			*results = append(*results, match)
		}
		if q.includeChildren() {
			ix.collect(q, sym.Children, results)
		}
	}
}
