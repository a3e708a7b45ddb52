package lsp

import (
	"context"
	"encoding/json"
	"fmt"

	"lsp-bridge/internal/common"
)

// SymbolProvider extracts raw document symbol entries for a file path.
// Implementations return DocumentSymbol[] or SymbolInformation[] elements.
type SymbolProvider interface {
	DocumentSymbolsForFile(ctx context.Context, path string) ([]json.RawMessage, error)
}

// ClientSymbolProvider serves document symbols through a running client,
// opening the file just long enough to query it and closing it afterwards
// so the server does not accumulate open documents during bulk indexing.
type ClientSymbolProvider struct {
	client *Client
}

func NewClientSymbolProvider(client *Client) *ClientSymbolProvider {
	return &ClientSymbolProvider{client: client}
}

func (p *ClientSymbolProvider) DocumentSymbolsForFile(ctx context.Context, path string) ([]json.RawMessage, error) {
	data, err := p.client.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	uri := common.FilePathToURI(path)
	languageID := DetectLanguage(path)

	opened := false
	if !p.client.IsDocumentOpen(uri) {
		if err := p.client.OpenDocument(uri, string(data), languageID); err != nil {
			return nil, err
		}
		opened = true
	}
	defer func() {
		if opened {
			if err := p.client.CloseDocument(uri); err != nil {
				common.LSPLogger.Debug("failed to close %s after symbol query: %v", uri, err)
			}
		}
	}()

	return p.client.DocumentSymbols(ctx, uri)
}
