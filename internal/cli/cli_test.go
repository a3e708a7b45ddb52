package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectFilesWalksAndGroupsByLanguage(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}
	mustWrite("main.go")
	mustWrite("pkg/util.go")
	mustWrite("scripts/run.py")
	mustWrite("README.md")
	mustWrite("node_modules/dep/index.js")
	mustWrite(".git/config.js")

	families, err := collectFiles([]string{root})
	require.NoError(t, err)

	require.Len(t, families["go"], 2)
	assert.Contains(t, families["go"][0], "main.go")
	require.Len(t, families["python"], 1)

	// Markdown has no language; node_modules and .git are skipped.
	assert.NotContains(t, families, "javascript")
	assert.Len(t, families, 2)
}

func TestCollectFilesSingleFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "one.rs")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	families, err := collectFiles([]string{path})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"rust": {path}}, families)
}

func TestCollectFilesMissingPath(t *testing.T) {
	_, err := collectFiles([]string{"/does/not/exist"})
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"version", "--json"})
	require.NoError(t, rootCmd.Execute())
}

func TestQueryRejectsUnknownKind(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("x"), 0644))

	rootCmd.SetArgs([]string{"query", "--kind", "gizmo", root})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown symbol kind")
}
