package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.lsp.dev/protocol"
)

// Feature wrappers are best-effort: when the server does not advertise a
// capability, they return an empty result instead of an error, since server
// support varies widely.

// HoverResult is the normalized hover content
type HoverResult struct {
	Contents string
	Range    *protocol.Range
}

func positionParams(uri string, line, character uint32) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
		Position:     protocol.Position{Line: line, Character: character},
	}
}

// FindDefinition returns definition locations for the symbol at a position
func (c *Client) FindDefinition(ctx context.Context, uri string, line, character uint32) ([]protocol.Location, error) {
	if !Supports(c.Capabilities(), FeatureDefinition) {
		return nil, nil
	}
	raw, err := c.SendRequest(ctx, "textDocument/definition", protocol.DefinitionParams{
		TextDocumentPositionParams: positionParams(uri, line, character),
	})
	if err != nil {
		return nil, err
	}
	return parseLocations(raw)
}

// FindReferences returns all references to the symbol at a position
func (c *Client) FindReferences(ctx context.Context, uri string, line, character uint32, includeDeclaration bool) ([]protocol.Location, error) {
	if !Supports(c.Capabilities(), FeatureReferences) {
		return nil, nil
	}
	raw, err := c.SendRequest(ctx, "textDocument/references", protocol.ReferenceParams{
		TextDocumentPositionParams: positionParams(uri, line, character),
		Context:                    protocol.ReferenceContext{IncludeDeclaration: includeDeclaration},
	})
	if err != nil {
		return nil, err
	}
	return parseLocations(raw)
}

// GetHover returns normalized hover information at a position
func (c *Client) GetHover(ctx context.Context, uri string, line, character uint32) (*HoverResult, error) {
	if !Supports(c.Capabilities(), FeatureHover) {
		return nil, nil
	}
	raw, err := c.SendRequest(ctx, "textDocument/hover", protocol.HoverParams{
		TextDocumentPositionParams: positionParams(uri, line, character),
	})
	if err != nil {
		return nil, err
	}
	if isNullResult(raw) {
		return nil, nil
	}

	var parsed struct {
		Contents json.RawMessage `json:"contents"`
		Range    *protocol.Range `json:"range,omitempty"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse hover: %w", err)
	}
	return &HoverResult{Contents: extractHoverContents(parsed.Contents), Range: parsed.Range}, nil
}

// GetCompletions returns completion items at a position
func (c *Client) GetCompletions(ctx context.Context, uri string, line, character uint32) ([]protocol.CompletionItem, error) {
	if !Supports(c.Capabilities(), FeatureCompletion) {
		return nil, nil
	}
	raw, err := c.SendRequest(ctx, "textDocument/completion", protocol.CompletionParams{
		TextDocumentPositionParams: positionParams(uri, line, character),
	})
	if err != nil {
		return nil, err
	}
	if isNullResult(raw) {
		return nil, nil
	}

	// Result is CompletionItem[] | CompletionList.
	var items []protocol.CompletionItem
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}
	var list protocol.CompletionList
	if err := json.Unmarshal(raw, &list); err == nil {
		return list.Items, nil
	}
	return nil, fmt.Errorf("unexpected completion result shape")
}

// GetSignatureHelp returns signature help at a position
func (c *Client) GetSignatureHelp(ctx context.Context, uri string, line, character uint32) (*protocol.SignatureHelp, error) {
	if !Supports(c.Capabilities(), FeatureSignatureHelp) {
		return nil, nil
	}
	raw, err := c.SendRequest(ctx, "textDocument/signatureHelp", protocol.SignatureHelpParams{
		TextDocumentPositionParams: positionParams(uri, line, character),
	})
	if err != nil {
		return nil, err
	}
	if isNullResult(raw) {
		return nil, nil
	}

	var help protocol.SignatureHelp
	if err := json.Unmarshal(raw, &help); err != nil {
		return nil, fmt.Errorf("failed to parse signature help: %w", err)
	}
	return &help, nil
}

// GetCodeActions returns code actions for a range
func (c *Client) GetCodeActions(ctx context.Context, uri string, rng protocol.Range, diagnostics []protocol.Diagnostic) ([]protocol.CodeAction, error) {
	if !Supports(c.Capabilities(), FeatureCodeAction) {
		return nil, nil
	}
	raw, err := c.SendRequest(ctx, "textDocument/codeAction", map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": uri},
		"range":        rng,
		"context":      map[string]interface{}{"diagnostics": diagnostics},
	})
	if err != nil {
		return nil, err
	}
	if isNullResult(raw) {
		return nil, nil
	}

	var actions []protocol.CodeAction
	if err := json.Unmarshal(raw, &actions); err != nil {
		// Some servers return bare commands; surface nothing rather than fail.
		return nil, nil
	}
	return actions, nil
}

// FormatDocument returns the server's formatting edits for a file
func (c *Client) FormatDocument(ctx context.Context, uri string, tabSize uint32, insertSpaces bool) ([]protocol.TextEdit, error) {
	if !Supports(c.Capabilities(), FeatureFormatting) {
		return nil, nil
	}
	raw, err := c.SendRequest(ctx, "textDocument/formatting", map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": uri},
		"options": map[string]interface{}{
			"tabSize":      tabSize,
			"insertSpaces": insertSpaces,
		},
	})
	if err != nil {
		return nil, err
	}
	if isNullResult(raw) {
		return nil, nil
	}

	var edits []protocol.TextEdit
	if err := json.Unmarshal(raw, &edits); err != nil {
		return nil, fmt.Errorf("failed to parse formatting edits: %w", err)
	}
	return edits, nil
}

// Rename asks the server to rename the symbol at a position. The returned
// edit is not applied; pass it to ApplyWorkspaceEdit.
func (c *Client) Rename(ctx context.Context, uri string, line, character uint32, newName string) (*protocol.WorkspaceEdit, error) {
	if !Supports(c.Capabilities(), FeatureRename) {
		return nil, nil
	}
	raw, err := c.SendRequest(ctx, "textDocument/rename", map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": uri},
		"position":     map[string]uint32{"line": line, "character": character},
		"newName":      newName,
	})
	if err != nil {
		return nil, err
	}
	if isNullResult(raw) {
		return nil, nil
	}

	var edit protocol.WorkspaceEdit
	if err := json.Unmarshal(raw, &edit); err != nil {
		return nil, fmt.Errorf("failed to parse workspace edit: %w", err)
	}
	return &edit, nil
}

// DocumentSymbols returns the raw symbol entries for a file. The result is
// DocumentSymbol[] or SymbolInformation[] depending on the server; callers
// that need a uniform shape convert each entry themselves.
func (c *Client) DocumentSymbols(ctx context.Context, uri string) ([]json.RawMessage, error) {
	if !Supports(c.Capabilities(), FeatureDocumentSymbol) {
		return nil, nil
	}
	raw, err := c.SendRequest(ctx, "textDocument/documentSymbol", protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
	})
	if err != nil {
		return nil, err
	}
	if isNullResult(raw) {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse document symbols: %w", err)
	}
	return entries, nil
}

// WorkspaceSymbols searches symbols across the workspace
func (c *Client) WorkspaceSymbols(ctx context.Context, query string) ([]protocol.SymbolInformation, error) {
	if !Supports(c.Capabilities(), FeatureWorkspaceSymbol) {
		return nil, nil
	}
	raw, err := c.SendRequest(ctx, "workspace/symbol", protocol.WorkspaceSymbolParams{Query: query})
	if err != nil {
		return nil, err
	}
	if isNullResult(raw) {
		return nil, nil
	}

	var symbols []protocol.SymbolInformation
	if err := json.Unmarshal(raw, &symbols); err != nil {
		return nil, fmt.Errorf("failed to parse workspace symbols: %w", err)
	}
	return symbols, nil
}

func isNullResult(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// parseLocations accepts Location | Location[] | LocationLink[]
func parseLocations(raw json.RawMessage) ([]protocol.Location, error) {
	if isNullResult(raw) {
		return nil, nil
	}

	var locations []protocol.Location
	if err := json.Unmarshal(raw, &locations); err == nil {
		return locations, nil
	}

	var single protocol.Location
	if err := json.Unmarshal(raw, &single); err == nil {
		return []protocol.Location{single}, nil
	}

	var links []protocol.LocationLink
	if err := json.Unmarshal(raw, &links); err == nil {
		locations = make([]protocol.Location, len(links))
		for i, link := range links {
			locations[i] = protocol.Location{URI: link.TargetURI, Range: link.TargetRange}
		}
		return locations, nil
	}

	return nil, fmt.Errorf("unexpected location result shape")
}

// extractHoverContents normalizes string | MarkupContent | MarkedString[]
func extractHoverContents(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var markup struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &markup); err == nil && markup.Value != "" {
		return markup.Value
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err == nil {
		var texts []string
		for _, part := range parts {
			var str string
			if err := json.Unmarshal(part, &str); err == nil {
				texts = append(texts, str)
				continue
			}
			var marked struct {
				Language string `json:"language"`
				Value    string `json:"value"`
			}
			if err := json.Unmarshal(part, &marked); err == nil {
				texts = append(texts, marked.Value)
			}
		}
		return strings.Join(texts, "\n\n")
	}

	return string(raw)
}
