package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"lsp-bridge/internal/index"
	"lsp-bridge/internal/lsp"
)

var (
	indexConcurrency int
	indexCacheSize   int64
)

var indexCmd = &cobra.Command{
	Use:   "index <path>...",
	Short: "Index document symbols for files or directories",
	Long: `Index walks the given paths, starts the configured language server for
each file's language, and builds the in-memory symbol index. Directories are
walked recursively; files whose language has no configured server are
skipped. Per-file failures are reported and never abort the batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		families, err := collectFiles(args)
		if err != nil {
			return err
		}
		if len(families) == 0 {
			return fmt.Errorf("no indexable files under %v", args)
		}

		ix, shutdown, err := buildIndex(cmd.Context(), families)
		if err != nil {
			return err
		}
		defer shutdown()

		stats := ix.GetStats()
		fmt.Printf("indexed %d files, %d symbols\n", stats.Files, stats.Symbols)
		return nil
	},
}

func init() {
	indexCmd.Flags().IntVar(&indexConcurrency, "concurrency", index.DefaultConcurrency,
		"files in flight against a server at once")
	indexCmd.Flags().Int64Var(&indexCacheSize, "cache-size", 100_000,
		"approximate number of symbols the cache may hold (0 disables it)")
}

// collectFiles expands the arguments into per-language file lists
func collectFiles(paths []string) (map[string][]string, error) {
	families := make(map[string][]string)

	add := func(path string) {
		if language := lsp.DetectLanguage(path); language != "" {
			families[language] = append(families[language], path)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot index %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		err = filepath.WalkDir(path, func(entry string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if name := d.Name(); name == ".git" || name == "node_modules" || name == "vendor" {
					return filepath.SkipDir
				}
				return nil
			}
			add(entry)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", path, err)
		}
	}

	for _, files := range families {
		sort.Strings(files)
	}
	return families, nil
}

// buildIndex starts the needed servers and indexes every collected file.
// The returned shutdown function stops the servers.
func buildIndex(ctx context.Context, families map[string][]string) (*index.SymbolIndex, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	rootPath, err := os.Getwd()
	if err != nil {
		return nil, nil, err
	}
	manager := lsp.NewManager(cfg, rootPath, nil)

	var cache index.SymbolCache
	if indexCacheSize > 0 {
		ristrettoCache, err := index.NewRistrettoCache(indexCacheSize)
		if err != nil {
			manager.StopAll()
			return nil, nil, err
		}
		cache = ristrettoCache
	}

	ix := index.NewSymbolIndex(&managerProvider{manager: manager}, nil, cache)

	errEvents, cancelErrs := ix.Events().IndexError.Subscribe(64)
	defer cancelErrs()
	go func() {
		for ev := range errEvents {
			fmt.Fprintf(os.Stderr, "index error: %s: %v\n", ev.URI, ev.Err)
		}
	}()

	started := time.Now()
	total := 0
	for language, files := range families {
		if _, ok := cfg.Servers[language]; !ok {
			fmt.Fprintf(os.Stderr, "skipping %d %s files: no server configured\n",
				len(files), language)
			continue
		}
		failed, err := ix.IndexFiles(ctx, files, indexConcurrency)
		if err != nil {
			manager.StopAll()
			return nil, nil, err
		}
		total += len(files)
		if failed > 0 {
			fmt.Fprintf(os.Stderr, "%d of %d %s files failed\n", failed, len(files), language)
		}
	}
	fmt.Fprintf(os.Stderr, "processed %d files in %s\n", total, time.Since(started).Round(time.Millisecond))

	return ix, manager.StopAll, nil
}

// managerProvider routes symbol requests to the right language's client
type managerProvider struct {
	manager *lsp.Manager
}

func (p *managerProvider) DocumentSymbolsForFile(ctx context.Context, path string) ([]json.RawMessage, error) {
	client, err := p.manager.ClientForFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return lsp.NewClientSymbolProvider(client).DocumentSymbolsForFile(ctx, path)
}
