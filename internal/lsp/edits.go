package lsp

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"go.lsp.dev/protocol"

	"lsp-bridge/internal/common"
	"lsp-bridge/internal/fsys"
)

// ApplyWorkspaceEdit applies a server-provided workspace edit to the file
// system. Both the Changes map and DocumentChanges forms are handled; edits
// within a file are applied back to front so earlier edits do not shift the
// offsets of later ones.
func ApplyWorkspaceEdit(fs fsys.FileSystem, edit *protocol.WorkspaceEdit) error {
	if edit == nil {
		return nil
	}

	for uri, edits := range edit.Changes {
		if err := applyFileEdits(fs, string(uri), edits); err != nil {
			return err
		}
	}

	for _, docChange := range edit.DocumentChanges {
		if err := applyFileEdits(fs, string(docChange.TextDocument.URI), docChange.Edits); err != nil {
			return err
		}
	}

	return nil
}

func applyFileEdits(fs fsys.FileSystem, uri string, edits []protocol.TextEdit) error {
	if len(edits) == 0 {
		return nil
	}

	path := common.URIToFilePath(uri)

	data, err := fs.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	content := string(data)

	sorted := make([]protocol.TextEdit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].Range.Start, sorted[j].Range.Start
		if a.Line != b.Line {
			return a.Line > b.Line
		}
		return a.Character > b.Character
	})

	for _, te := range sorted {
		start, err := positionToOffset(content, te.Range.Start)
		if err != nil {
			return fmt.Errorf("bad edit range in %s: %w", path, err)
		}
		end, err := positionToOffset(content, te.Range.End)
		if err != nil {
			return fmt.Errorf("bad edit range in %s: %w", path, err)
		}
		if end < start {
			return fmt.Errorf("bad edit range in %s: end before start", path)
		}
		content = content[:start] + te.NewText + content[end:]
	}

	if err := fs.WriteFile(path, []byte(content)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// positionToOffset converts a line/character position into a byte offset.
// Characters are UTF-16 code units, the LSP default encoding; positions
// past the end of a line clamp to the line end.
func positionToOffset(content string, pos protocol.Position) (int, error) {
	offset := 0
	line := uint32(0)
	for line < pos.Line {
		idx := strings.IndexByte(content[offset:], '\n')
		if idx < 0 {
			return 0, fmt.Errorf("line %d out of range", pos.Line)
		}
		offset += idx + 1
		line++
	}

	lineEnd := len(content)
	if idx := strings.IndexByte(content[offset:], '\n'); idx >= 0 {
		lineEnd = offset + idx
	}

	units := int(pos.Character)
	for offset < lineEnd && units > 0 {
		r, size := utf8.DecodeRuneInString(content[offset:lineEnd])
		units -= len(utf16.Encode([]rune{r}))
		offset += size
	}
	return offset, nil
}
