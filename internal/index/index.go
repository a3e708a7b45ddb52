package index

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.lsp.dev/protocol"
	"golang.org/x/sync/errgroup"

	"lsp-bridge/internal/common"
	"lsp-bridge/internal/fsys"
)

// SymbolProvider is the collaborator that produces raw document symbol
// entries for a file, typically an LSP client.
type SymbolProvider interface {
	DocumentSymbolsForFile(ctx context.Context, path string) ([]json.RawMessage, error)
}

// DefaultConcurrency bounds how many files IndexFiles holds in flight
// against the language server when the caller does not say.
const DefaultConcurrency = 5

// SymbolIndex holds per-file symbol trees plus derived lookup indices by
// name, kind, and container. Every symbol, descendants included, appears in
// each derived index; removing a file retracts its contribution completely.
type SymbolIndex struct {
	provider SymbolProvider
	fs       fsys.FileSystem
	cache    SymbolCache
	events   *Events

	mu          sync.RWMutex
	files       map[string]*FileSymbols
	byName      map[string]map[string]struct{}
	byKind      map[protocol.SymbolKind]map[string]struct{}
	byContainer map[string]map[string]struct{}
}

// NewSymbolIndex creates an empty index. fs defaults to the real file
// system; cache may be nil to disable caching.
func NewSymbolIndex(provider SymbolProvider, fs fsys.FileSystem, cache SymbolCache) *SymbolIndex {
	if fs == nil {
		fs = fsys.NewOSFileSystem()
	}
	return &SymbolIndex{
		provider:    provider,
		fs:          fs,
		cache:       cache,
		events:      newEvents(),
		files:       make(map[string]*FileSymbols),
		byName:      make(map[string]map[string]struct{}),
		byKind:      make(map[protocol.SymbolKind]map[string]struct{}),
		byContainer: make(map[string]map[string]struct{}),
	}
}

// Events returns the indexer's event streams
func (ix *SymbolIndex) Events() *Events { return ix.events }

// IndexFile indexes one file. A cache hit stores the cached tree without a
// server round trip; a miss asks the provider and feeds the cache. Failures
// emit an indexError event and are returned, but never affect other files.
func (ix *SymbolIndex) IndexFile(ctx context.Context, path string) error {
	uri := common.FilePathToURI(path)

	info, err := ix.fs.Stat(path)
	if err != nil {
		err = fmt.Errorf("failed to stat %s: %w", path, err)
		ix.events.IndexError.Publish(IndexErrorEvent{URI: uri, Err: err})
		return err
	}
	modTime := info.ModTime().Unix()

	if ix.cache != nil {
		if symbols, ok := ix.cache.Get(path, modTime); ok {
			ix.store(uri, modTime, symbols)
			ix.events.FileIndexed.Publish(FileIndexedEvent{
				URI:         uri,
				SymbolCount: countSymbols(symbols),
				FromCache:   true,
			})
			return nil
		}
	}

	raw, err := ix.provider.DocumentSymbolsForFile(ctx, path)
	if err != nil {
		err = fmt.Errorf("symbol request for %s failed: %w", path, err)
		ix.events.IndexError.Publish(IndexErrorEvent{URI: uri, Err: err})
		return err
	}

	symbols := ConvertSymbols(uri, raw)
	ix.store(uri, modTime, symbols)
	if ix.cache != nil {
		ix.cache.Set(path, modTime, symbols)
	}
	ix.events.FileIndexed.Publish(FileIndexedEvent{
		URI:         uri,
		SymbolCount: countSymbols(symbols),
		FromCache:   false,
	})
	return nil
}

// IndexFiles indexes many files in fixed-size chunks: the next chunk starts
// only after every file in the current one completed, bounding the number
// of in-flight requests against the server. Per-file failures are counted
// and reported through events; the batch always runs to the end.
func (ix *SymbolIndex) IndexFiles(ctx context.Context, paths []string, concurrency int) (int, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	ix.events.IndexingStarted.Publish(IndexingStartedEvent{Files: len(paths)})
	started := time.Now()

	var failed atomic.Int64
	for start := 0; start < len(paths); start += concurrency {
		if err := ctx.Err(); err != nil {
			return int(failed.Load()), err
		}

		end := start + concurrency
		if end > len(paths) {
			end = len(paths)
		}

		var g errgroup.Group
		for _, path := range paths[start:end] {
			path := path
			g.Go(func() error {
				if err := ix.IndexFile(ctx, path); err != nil {
					failed.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	ix.events.IndexingCompleted.Publish(IndexingCompletedEvent{
		Files:    len(paths),
		Failed:   int(failed.Load()),
		Duration: time.Since(started),
	})
	return int(failed.Load()), nil
}

// RemoveFile retracts a file's contribution from every derived index and
// drops its entry. Removing an unindexed file is a no-op.
func (ix *SymbolIndex) RemoveFile(path string) bool {
	uri := common.FilePathToURI(path)

	ix.mu.Lock()
	entry, ok := ix.files[uri]
	if !ok {
		ix.mu.Unlock()
		return false
	}
	ix.retractLocked(uri, entry.Symbols)
	delete(ix.files, uri)
	ix.mu.Unlock()

	ix.events.FileRemoved.Publish(FileRemovedEvent{URI: uri})
	return true
}

// Clear drops everything
func (ix *SymbolIndex) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.files = make(map[string]*FileSymbols)
	ix.byName = make(map[string]map[string]struct{})
	ix.byKind = make(map[protocol.SymbolKind]map[string]struct{})
	ix.byContainer = make(map[string]map[string]struct{})
}

// Stats are always derived from the live maps, never stored
type Stats struct {
	Files   int
	Symbols int
}

// GetStats counts files and symbols, descendants included
func (ix *SymbolIndex) GetStats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	stats := Stats{Files: len(ix.files)}
	for _, entry := range ix.files {
		stats.Symbols += countSymbols(entry.Symbols)
	}
	return stats
}

// store replaces a file's tree wholesale, retracting any previous one
func (ix *SymbolIndex) store(uri string, modTime int64, symbols []IndexedSymbol) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if previous, ok := ix.files[uri]; ok {
		ix.retractLocked(uri, previous.Symbols)
	}
	ix.files[uri] = &FileSymbols{URI: uri, LastModified: modTime, Symbols: symbols}

	walkSymbols(symbols, func(sym *IndexedSymbol) {
		addBucket(ix.byName, sym.Name, uri)
		addBucket(ix.byKind, sym.Kind, uri)
		if sym.ContainerName != "" {
			addBucket(ix.byContainer, sym.ContainerName, uri)
		}
	})
}

// retractLocked removes a file's derived-index entries. Buckets left empty
// are deleted outright so lookups never see dangling keys.
func (ix *SymbolIndex) retractLocked(uri string, symbols []IndexedSymbol) {
	walkSymbols(symbols, func(sym *IndexedSymbol) {
		dropBucket(ix.byName, sym.Name, uri)
		dropBucket(ix.byKind, sym.Kind, uri)
		if sym.ContainerName != "" {
			dropBucket(ix.byContainer, sym.ContainerName, uri)
		}
	})
}

func addBucket[K comparable](buckets map[K]map[string]struct{}, key K, uri string) {
	bucket, ok := buckets[key]
	if !ok {
		bucket = make(map[string]struct{})
		buckets[key] = bucket
	}
	bucket[uri] = struct{}{}
}

func dropBucket[K comparable](buckets map[K]map[string]struct{}, key K, uri string) {
	bucket, ok := buckets[key]
	if !ok {
		return
	}
	delete(bucket, uri)
	if len(bucket) == 0 {
		delete(buckets, key)
	}
}
