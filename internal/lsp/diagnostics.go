package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.lsp.dev/protocol"

	"lsp-bridge/internal/common"
)

// handlePublishDiagnostics replaces the cached set for the uri and emits a
// diagnostics event. Entries without a range are not valid diagnostics and
// are filtered out before either happens.
func (c *Client) handlePublishDiagnostics(params json.RawMessage) {
	var payload struct {
		URI         string            `json:"uri"`
		Diagnostics []json.RawMessage `json:"diagnostics"`
	}
	if err := json.Unmarshal(params, &payload); err != nil {
		common.LSPLogger.Warn("failed to parse publishDiagnostics: %v", err)
		return
	}

	diags := make([]protocol.Diagnostic, 0, len(payload.Diagnostics))
	for _, raw := range payload.Diagnostics {
		var probe struct {
			Range json.RawMessage `json:"range"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil || len(probe.Range) == 0 || string(probe.Range) == "null" {
			common.LSPLogger.Debug("dropping diagnostic without range for %s", payload.URI)
			continue
		}
		var d protocol.Diagnostic
		if err := json.Unmarshal(raw, &d); err != nil {
			common.LSPLogger.Debug("dropping unparsable diagnostic for %s: %v", payload.URI, err)
			continue
		}
		diags = append(diags, d)
	}

	c.diagMu.Lock()
	c.diagnostics[payload.URI] = diags
	c.diagMu.Unlock()

	c.diagnosticsStream.Publish(DiagnosticsEvent{URI: payload.URI, Diagnostics: diags})
}

// Diagnostics returns a copy of the cached push diagnostics for a uri
func (c *Client) Diagnostics(uri string) []protocol.Diagnostic {
	c.diagMu.RLock()
	defer c.diagMu.RUnlock()
	cached := c.diagnostics[uri]
	out := make([]protocol.Diagnostic, len(cached))
	copy(out, cached)
	return out
}

// PullDiagnostics issues textDocument/diagnostic and returns the reported
// items directly, without touching the push cache.
func (c *Client) PullDiagnostics(ctx context.Context, uri string) ([]protocol.Diagnostic, error) {
	if !Supports(c.Capabilities(), FeaturePullDiagnostics) {
		return nil, nil
	}

	raw, err := c.SendRequest(ctx, "textDocument/diagnostic", map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": uri},
	})
	if err != nil {
		return nil, err
	}

	var report struct {
		Kind  string                `json:"kind"`
		Items []protocol.Diagnostic `json:"items"`
	}
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("failed to parse diagnostic report: %w", err)
	}
	return report.Items, nil
}

// WaitForDiagnostics resolves on the next pushed diagnostics for the uri,
// or fails after the timeout. Against a pull-only server the event never
// fires; check DiagnosticSupport before relying on this.
func (c *Client) WaitForDiagnostics(uri string, timeout time.Duration) ([]protocol.Diagnostic, error) {
	ch, cancel := c.diagnosticsStream.Subscribe(8)
	defer cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev := <-ch:
			if ev.URI == uri {
				return ev.Diagnostics, nil
			}
		case <-timer.C:
			return nil, &TimeoutError{Method: "waitForDiagnostics", Timeout: timeout}
		case <-c.stopCh:
			return nil, ErrStopped
		}
	}
}

// GetDiagnosticSupport reports which diagnostics model the server uses
func (c *Client) GetDiagnosticSupport() DiagnosticMode {
	return DiagnosticSupport(c.Capabilities())
}
