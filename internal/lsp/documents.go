package lsp

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DetectLanguage detects the programming language from a file path or URI
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".jsx":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".java":
		return "java"
	case ".rs":
		return "rust"
	default:
		return ""
	}
}

// OpenDocument notifies the server that a document is open. The first
// version is always 1.
func (c *Client) OpenDocument(uri, text, languageID string) error {
	if c.State() != StateReady {
		return ErrNotRunning
	}

	c.docsMu.Lock()
	if _, open := c.docs[uri]; open {
		c.docsMu.Unlock()
		return fmt.Errorf("document already open: %s", uri)
	}
	c.docs[uri] = &openDocument{languageID: languageID, version: 1, text: text}
	c.docsMu.Unlock()

	return c.notify("textDocument/didOpen", map[string]interface{}{
		"textDocument": map[string]interface{}{
			"uri":        uri,
			"languageId": languageID,
			"version":    1,
			"text":       text,
		},
	})
}

// UpdateDocument sends a full-text didChange. The version must strictly
// increase per uri while the document is open.
func (c *Client) UpdateDocument(uri, text string, version int32) error {
	if c.State() != StateReady {
		return ErrNotRunning
	}

	c.docsMu.Lock()
	doc, open := c.docs[uri]
	if !open {
		c.docsMu.Unlock()
		return fmt.Errorf("document not open: %s", uri)
	}
	if version <= doc.version {
		current := doc.version
		c.docsMu.Unlock()
		return fmt.Errorf("document version must increase: %s has version %d, got %d", uri, current, version)
	}
	doc.version = version
	doc.text = text
	c.docsMu.Unlock()

	return c.notify("textDocument/didChange", map[string]interface{}{
		"textDocument": map[string]interface{}{
			"uri":     uri,
			"version": version,
		},
		"contentChanges": []map[string]interface{}{
			{"text": text},
		},
	})
}

// CloseDocument sends didClose and clears cached diagnostics for the uri
func (c *Client) CloseDocument(uri string) error {
	if c.State() != StateReady {
		return ErrNotRunning
	}

	c.docsMu.Lock()
	if _, open := c.docs[uri]; !open {
		c.docsMu.Unlock()
		return fmt.Errorf("document not open: %s", uri)
	}
	delete(c.docs, uri)
	c.docsMu.Unlock()

	c.diagMu.Lock()
	delete(c.diagnostics, uri)
	c.diagMu.Unlock()

	return c.notify("textDocument/didClose", map[string]interface{}{
		"textDocument": map[string]interface{}{
			"uri": uri,
		},
	})
}

// IsDocumentOpen reports whether the uri is currently open
func (c *Client) IsDocumentOpen(uri string) bool {
	c.docsMu.Lock()
	defer c.docsMu.Unlock()
	_, open := c.docs[uri]
	return open
}

// DocumentVersion returns the current version of an open document
func (c *Client) DocumentVersion(uri string) (int32, bool) {
	c.docsMu.Lock()
	defer c.docsMu.Unlock()
	doc, open := c.docs[uri]
	if !open {
		return 0, false
	}
	return doc.version, true
}
