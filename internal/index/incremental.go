package index

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"lsp-bridge/internal/common"
)

// ChangeSource supplies the changed and removed file lists consumed by
// UpdateIncremental. The lists are computed externally; the index only
// consumes them.
type ChangeSource interface {
	Changes() (changed []string, removed []string, err error)
}

// GitChangeSource derives the change lists from `git status --porcelain`
// in a repository root.
type GitChangeSource struct {
	repoRoot string
}

func NewGitChangeSource(repoRoot string) *GitChangeSource {
	return &GitChangeSource{repoRoot: repoRoot}
}

func (g *GitChangeSource) Changes() (changed []string, removed []string, err error) {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = g.repoRoot
	out, err := cmd.Output()
	if err != nil {
		return nil, nil, fmt.Errorf("git status failed in %s: %w", g.repoRoot, err)
	}

	changed, removed = parsePorcelain(g.repoRoot, string(out))
	return changed, removed, nil
}

func parsePorcelain(root, out string) (changed []string, removed []string) {
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		status := line[:2]
		path := strings.TrimSpace(line[3:])

		switch {
		case strings.Contains(status, "D"):
			removed = append(removed, filepath.Join(root, path))
		case strings.Contains(status, "R"):
			// Renames are reported as "old -> new".
			parts := strings.SplitN(path, " -> ", 2)
			if len(parts) == 2 {
				removed = append(removed, filepath.Join(root, parts[0]))
				changed = append(changed, filepath.Join(root, parts[1]))
			}
		default:
			changed = append(changed, filepath.Join(root, path))
		}
	}
	return changed, removed
}

// UpdateResult reports what an incremental update did, per file
type UpdateResult struct {
	Indexed []string
	Removed []string
	Failed  map[string]error
}

// UpdateIncremental re-indexes the source's changed files and retracts its
// removed ones. Per-file failures are recorded in the result; the batch
// never aborts. An empty change set is a no-op.
func (ix *SymbolIndex) UpdateIncremental(ctx context.Context, source ChangeSource) (*UpdateResult, error) {
	changed, removed, err := source.Changes()
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{Failed: make(map[string]error)}
	if len(changed) == 0 && len(removed) == 0 {
		return result, nil
	}

	for _, path := range removed {
		ix.RemoveFile(path)
		result.Removed = append(result.Removed, path)
	}

	for _, path := range changed {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := ix.IndexFile(ctx, path); err != nil {
			result.Failed[path] = err
			continue
		}
		result.Indexed = append(result.Indexed, path)
	}

	common.LSPLogger.Info("incremental update: %d indexed, %d removed, %d failed",
		len(result.Indexed), len(result.Removed), len(result.Failed))
	return result, nil
}
