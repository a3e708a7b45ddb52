package common

import (
	"path/filepath"
	"strings"

	"go.lsp.dev/uri"
)

// FilePathToURI converts an absolute or relative file path to a file:// URI.
// Relative paths are resolved against the current working directory.
func FilePathToURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return string(uri.File(abs))
}

// URIToFilePath converts a file:// URI back to a filesystem path.
// Non-file URIs are returned unchanged.
func URIToFilePath(s string) string {
	if !strings.HasPrefix(s, "file://") {
		return s
	}
	return uri.New(s).Filename()
}
