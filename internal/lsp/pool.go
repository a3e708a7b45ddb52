package lsp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lsp-bridge/internal/common"
	"lsp-bridge/internal/config"
	"lsp-bridge/internal/fsys"
)

// Manager owns one client per configured language and starts them lazily.
// Clients that crash are replaced on the next request for that language.
type Manager struct {
	cfg      *config.Config
	rootPath string
	fs       fsys.FileSystem

	mu      sync.Mutex
	clients map[string]*managedClient
}

// managedClient pairs a client with its startup outcome. ready is closed
// once Start has returned, so concurrent callers for the same language
// wait for the first caller's startup instead of receiving a client that
// is still initializing.
type managedClient struct {
	client *Client
	ready  chan struct{}
	err    error
}

func NewManager(cfg *config.Config, rootPath string, fs fsys.FileSystem) *Manager {
	return &Manager{
		cfg:      cfg,
		rootPath: rootPath,
		fs:       fs,
		clients:  make(map[string]*managedClient),
	}
}

// ClientFor returns the running client for a language, starting one if
// needed. Returns an error when the language has no configured server.
// When another caller is already starting the client, ClientFor blocks
// until that startup finishes.
func (m *Manager) ClientFor(ctx context.Context, language string) (*Client, error) {
	serverCfg, ok := m.cfg.Servers[language]
	if !ok {
		return nil, fmt.Errorf("no server configured for language %s", language)
	}

	for {
		m.mu.Lock()
		entry, ok := m.clients[language]
		if !ok || entry.dead() {
			if ok {
				common.LSPLogger.Warn("replacing %s client in state %s", language, entry.client.State())
			}
			entry = &managedClient{
				client: NewClient(language, serverCfg, m.rootPath, m.fs),
				ready:  make(chan struct{}),
			}
			m.clients[language] = entry
			m.mu.Unlock()

			entry.err = entry.client.Start(ctx)
			close(entry.ready)
			if entry.err != nil {
				m.mu.Lock()
				if m.clients[language] == entry {
					delete(m.clients, language)
				}
				m.mu.Unlock()
				return nil, fmt.Errorf("failed to start %s server: %w", language, entry.err)
			}
			return entry.client, nil
		}
		m.mu.Unlock()

		select {
		case <-entry.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if entry.err != nil {
			return nil, fmt.Errorf("failed to start %s server: %w", language, entry.err)
		}
		if entry.dead() {
			// Crashed or was stopped since startup finished; retry with
			// a replacement.
			continue
		}
		return entry.client, nil
	}
}

// dead is true once the client can no longer serve requests.
func (e *managedClient) dead() bool {
	s := e.client.State()
	return s == StateCrashed || s == StateStopped
}

// ClientForFile resolves the language from the file extension and returns
// the matching client.
func (m *Manager) ClientForFile(ctx context.Context, path string) (*Client, error) {
	language := DetectLanguage(path)
	if language == "" {
		return nil, fmt.Errorf("cannot determine language for %s", path)
	}
	return m.ClientFor(ctx, language)
}

// Languages lists the configured languages in stable order
func (m *Manager) Languages() []string {
	languages := make([]string, 0, len(m.cfg.Servers))
	for language := range m.cfg.Servers {
		languages = append(languages, language)
	}
	sort.Strings(languages)
	return languages
}

// StopAll stops every started client. Errors are logged, not returned,
// since shutdown should always run to completion.
func (m *Manager) StopAll() {
	m.mu.Lock()
	entries := make(map[string]*managedClient, len(m.clients))
	for language, entry := range m.clients {
		entries[language] = entry
	}
	m.clients = make(map[string]*managedClient)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for language, entry := range entries {
		wg.Add(1)
		go func(language string, entry *managedClient) {
			defer wg.Done()
			<-entry.ready
			if entry.err != nil {
				return
			}
			if err := entry.client.Stop(); err != nil {
				common.LSPLogger.Warn("failed to stop %s client: %v", language, err)
			}
		}(language, entry)
	}
	wg.Wait()
}
