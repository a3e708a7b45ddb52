package lsp

import "encoding/json"

// ServerCapabilities is the typed view of the capabilities object returned
// by initialize. Known capabilities get explicit fields; anything the server
// reports beyond them is preserved in Extra for forward compatibility.
// LSP servers report capabilities as booleans or option objects, so the
// known fields stay interface{} and Supports interprets them.
type ServerCapabilities struct {
	TextDocumentSync           interface{}
	HoverProvider              interface{}
	DefinitionProvider         interface{}
	ReferencesProvider         interface{}
	DocumentSymbolProvider     interface{}
	WorkspaceSymbolProvider    interface{}
	CompletionProvider         interface{}
	SignatureHelpProvider      interface{}
	CodeActionProvider         interface{}
	DocumentFormattingProvider interface{}
	RenameProvider             interface{}
	DiagnosticProvider         interface{}

	Extra map[string]json.RawMessage
}

var knownCapabilityKeys = map[string]func(*ServerCapabilities, interface{}){
	"textDocumentSync":           func(c *ServerCapabilities, v interface{}) { c.TextDocumentSync = v },
	"hoverProvider":              func(c *ServerCapabilities, v interface{}) { c.HoverProvider = v },
	"definitionProvider":         func(c *ServerCapabilities, v interface{}) { c.DefinitionProvider = v },
	"referencesProvider":         func(c *ServerCapabilities, v interface{}) { c.ReferencesProvider = v },
	"documentSymbolProvider":     func(c *ServerCapabilities, v interface{}) { c.DocumentSymbolProvider = v },
	"workspaceSymbolProvider":    func(c *ServerCapabilities, v interface{}) { c.WorkspaceSymbolProvider = v },
	"completionProvider":         func(c *ServerCapabilities, v interface{}) { c.CompletionProvider = v },
	"signatureHelpProvider":      func(c *ServerCapabilities, v interface{}) { c.SignatureHelpProvider = v },
	"codeActionProvider":         func(c *ServerCapabilities, v interface{}) { c.CodeActionProvider = v },
	"documentFormattingProvider": func(c *ServerCapabilities, v interface{}) { c.DocumentFormattingProvider = v },
	"renameProvider":             func(c *ServerCapabilities, v interface{}) { c.RenameProvider = v },
	"diagnosticProvider":         func(c *ServerCapabilities, v interface{}) { c.DiagnosticProvider = v },
}

// UnmarshalJSON splits the raw capability object into known fields and Extra
func (c *ServerCapabilities) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for key, value := range raw {
		set, known := knownCapabilityKeys[key]
		if !known {
			if c.Extra == nil {
				c.Extra = make(map[string]json.RawMessage)
			}
			c.Extra[key] = value
			continue
		}
		var v interface{}
		if err := json.Unmarshal(value, &v); err != nil {
			continue
		}
		set(c, v)
	}
	return nil
}

// Feature names the client operations whose server support varies
type Feature int

const (
	FeatureHover Feature = iota
	FeatureDefinition
	FeatureReferences
	FeatureDocumentSymbol
	FeatureWorkspaceSymbol
	FeatureCompletion
	FeatureSignatureHelp
	FeatureCodeAction
	FeatureFormatting
	FeatureRename
	FeaturePullDiagnostics
)

// Supports reports whether the server advertises the given feature.
// A capability may be a boolean or an options object; an object counts
// as supported.
func Supports(caps ServerCapabilities, feature Feature) bool {
	switch feature {
	case FeatureHover:
		return capabilityEnabled(caps.HoverProvider)
	case FeatureDefinition:
		return capabilityEnabled(caps.DefinitionProvider)
	case FeatureReferences:
		return capabilityEnabled(caps.ReferencesProvider)
	case FeatureDocumentSymbol:
		return capabilityEnabled(caps.DocumentSymbolProvider)
	case FeatureWorkspaceSymbol:
		return capabilityEnabled(caps.WorkspaceSymbolProvider)
	case FeatureCompletion:
		return capabilityEnabled(caps.CompletionProvider)
	case FeatureSignatureHelp:
		return capabilityEnabled(caps.SignatureHelpProvider)
	case FeatureCodeAction:
		return capabilityEnabled(caps.CodeActionProvider)
	case FeatureFormatting:
		return capabilityEnabled(caps.DocumentFormattingProvider)
	case FeatureRename:
		return capabilityEnabled(caps.RenameProvider)
	case FeaturePullDiagnostics:
		return capabilityEnabled(caps.DiagnosticProvider)
	default:
		return false
	}
}

func capabilityEnabled(capability interface{}) bool {
	switch v := capability.(type) {
	case nil:
		return false
	case bool:
		return v
	case map[string]interface{}:
		return true
	default:
		return true
	}
}

// DiagnosticMode tells callers which diagnostics model a server uses
type DiagnosticMode int

const (
	// DiagnosticModePush means the server publishes diagnostics on its own;
	// WaitForDiagnostics is meaningful.
	DiagnosticModePush DiagnosticMode = iota
	// DiagnosticModePull means diagnostics must be requested via
	// textDocument/diagnostic; the push event never fires.
	DiagnosticModePull
)

// DiagnosticSupport reports the diagnostics model the server advertises.
// Servers that offer a diagnostic provider are pull-model; everything else
// publishes.
func DiagnosticSupport(caps ServerCapabilities) DiagnosticMode {
	if capabilityEnabled(caps.DiagnosticProvider) {
		return DiagnosticModePull
	}
	return DiagnosticModePush
}
