// Package fsys abstracts the file system operations used by workspace-edit
// application and by the symbol indexer, so tests can substitute an
// in-memory implementation.
package fsys

import (
	"io/fs"
	"os"
)

// FileSystem is the collaborator interface for file access
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	Exists(path string) bool
	Stat(path string) (fs.FileInfo, error)
}

// OSFileSystem implements FileSystem against the real OS
type OSFileSystem struct{}

// NewOSFileSystem returns the OS-backed implementation
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSFileSystem) WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}

func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}
