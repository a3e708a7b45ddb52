// Package lsp implements a process-owning Language Server Protocol client:
// it spawns a language server, frames its stdout into JSON-RPC messages,
// correlates concurrent requests by id, and tracks document and
// diagnostics state.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.lsp.dev/protocol"

	"lsp-bridge/internal/common"
	"lsp-bridge/internal/config"
	"lsp-bridge/internal/event"
	"lsp-bridge/internal/fsys"
	"lsp-bridge/internal/jsonrpc"
)

// State is the client lifecycle state
type State int32

const (
	StateUnstarted State = iota
	StateStarting
	StateInitializing
	StateReady
	StateShuttingDown
	StateStopped
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateStarting:
		return "starting"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting-down"
	case StateStopped:
		return "stopped"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyStarted is returned by Start on a client that is not unstarted
	ErrAlreadyStarted = errors.New("client already started")
	// ErrNotRunning is returned when an operation requires a ready client
	ErrNotRunning = errors.New("language server not running")
	// ErrStopped rejects in-flight requests when Stop is called
	ErrStopped = errors.New("client stopped")
)

// TimeoutError reports a request that received no response in time
type TimeoutError struct {
	Method  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request %s timed out after %s", e.Method, e.Timeout)
}

// DiagnosticsEvent is published whenever a server pushes diagnostics
type DiagnosticsEvent struct {
	URI         string
	Diagnostics []protocol.Diagnostic
}

type pendingRequest struct {
	method string
	respCh chan *jsonrpc.Message
}

type openDocument struct {
	languageID string
	version    int32
	text       string
}

// Client drives one language server process over stdio
type Client struct {
	language string
	cfg      *config.ServerConfig
	rootPath string
	fs       fsys.FileSystem

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	writeMu sync.Mutex

	state atomic.Int32

	nextID  atomic.Int64
	pendMu  sync.Mutex
	pending map[int64]*pendingRequest

	capsMu sync.RWMutex
	caps   ServerCapabilities

	docsMu sync.Mutex
	docs   map[string]*openDocument

	diagMu      sync.RWMutex
	diagnostics map[string][]protocol.Diagnostic

	diagnosticsStream *event.Stream[DiagnosticsEvent]
	messageStream     *event.Stream[*jsonrpc.Message]

	stderr *tailBuffer

	stopOnce sync.Once
	stopCh   chan struct{}
	exited   chan struct{}
	exitErr  error
	stopMu   sync.Mutex
}

// NewClient creates an unstarted client for the given language. A nil fs
// falls back to the real file system.
func NewClient(language string, cfg *config.ServerConfig, rootPath string, fs fsys.FileSystem) *Client {
	if fs == nil {
		fs = fsys.NewOSFileSystem()
	}
	return &Client{
		language:          language,
		cfg:               cfg,
		rootPath:          rootPath,
		fs:                fs,
		pending:           make(map[int64]*pendingRequest),
		docs:              make(map[string]*openDocument),
		diagnostics:       make(map[string][]protocol.Diagnostic),
		diagnosticsStream: event.NewStream[DiagnosticsEvent](),
		messageStream:     event.NewStream[*jsonrpc.Message](),
		stderr:            newTailBuffer(16 * 1024),
		stopCh:            make(chan struct{}),
		exited:            make(chan struct{}),
	}
}

// Language returns the language this client serves
func (c *Client) Language() string { return c.language }

// State returns the current lifecycle state
func (c *Client) State() State { return State(c.state.Load()) }

// IsInitialized reports whether the client is ready for requests
func (c *Client) IsInitialized() bool { return c.State() == StateReady }

// Capabilities returns the server capabilities parsed during initialize
func (c *Client) Capabilities() ServerCapabilities {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.caps
}

// DiagnosticsEvents returns the stream of pushed diagnostics
func (c *Client) DiagnosticsEvents() *event.Stream[DiagnosticsEvent] {
	return c.diagnosticsStream
}

// MessageEvents returns the stream of every inbound parsed message
func (c *Client) MessageEvents() *event.Stream[*jsonrpc.Message] {
	return c.messageStream
}

// Stderr returns the captured tail of the server's stderr output
func (c *Client) Stderr() string { return c.stderr.String() }

// Start spawns the language server and performs the initialize handshake,
// racing it against unexpected process exit. If the process exits first,
// Start fails with the captured stderr. On a non-unstarted client it
// returns ErrAlreadyStarted.
func (c *Client) Start(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateUnstarted), int32(StateStarting)) {
		return ErrAlreadyStarted
	}

	cmd := exec.Command(c.cfg.Command, c.cfg.Args...)
	if c.cfg.WorkingDir != "" {
		cmd.Dir = c.cfg.WorkingDir
	} else {
		cmd.Dir = c.rootPath
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.state.Store(int32(StateCrashed))
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.state.Store(int32(StateCrashed))
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		c.state.Store(int32(StateCrashed))
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		c.state.Store(int32(StateCrashed))
		return fmt.Errorf("failed to start language server: %w", err)
	}

	c.cmd = cmd
	c.stdin = stdin

	stderrDone := make(chan struct{})
	go func() {
		c.captureStderr(stderr)
		close(stderrDone)
	}()
	go c.readLoop(stdout)
	go func() {
		// Drain stderr to EOF first so Wait closing the pipe cannot drop
		// the output a crash report needs.
		<-stderrDone
		c.exitErr = cmd.Wait()
		close(c.exited)
		c.onProcessExit()
	}()

	c.state.Store(int32(StateInitializing))

	if err := c.initialize(ctx); err != nil {
		c.state.Store(int32(StateCrashed))
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return err
	}

	c.state.Store(int32(StateReady))
	common.LSPLogger.Info("%s server ready (pid %d)", c.language, cmd.Process.Pid)
	return nil
}

// initialize runs the handshake: initialize request, capability parse,
// initialized notification, settle delay.
func (c *Client) initialize(ctx context.Context) error {
	params := map[string]interface{}{
		"processId": os.Getpid(),
		"rootUri":   common.FilePathToURI(c.rootPath),
		"rootPath":  c.rootPath,
		"capabilities": map[string]interface{}{
			"textDocument": map[string]interface{}{
				"synchronization": map[string]interface{}{
					"didSave": true,
				},
				"publishDiagnostics": map[string]interface{}{
					"relatedInformation": true,
				},
				"documentSymbol": map[string]interface{}{
					"hierarchicalDocumentSymbolSupport": true,
				},
				"hover":          map[string]interface{}{},
				"definition":     map[string]interface{}{},
				"references":     map[string]interface{}{},
				"completion":     map[string]interface{}{},
				"signatureHelp":  map[string]interface{}{},
				"codeAction":     map[string]interface{}{},
				"formatting":     map[string]interface{}{},
				"rename":         map[string]interface{}{},
				"diagnostic":     map[string]interface{}{},
			},
			"workspace": map[string]interface{}{
				"applyEdit":     true,
				"configuration": true,
				"symbol":        map[string]interface{}{},
			},
		},
	}
	if c.cfg.InitializationOptions != nil {
		params["initializationOptions"] = c.cfg.InitializationOptions
	}

	type initResult struct {
		raw json.RawMessage
		err error
	}
	resCh := make(chan initResult, 1)
	go func() {
		raw, err := c.roundTrip(ctx, "initialize", params, c.cfg.Timeout(), true)
		resCh <- initResult{raw, err}
	}()

	// Race the handshake against process exit: whichever resolves first wins.
	var raw json.RawMessage
	select {
	case res := <-resCh:
		if res.err != nil {
			// A write against a dying process fails with a pipe error before
			// Wait observes the exit; give the exit a moment to win so the
			// caller sees the stderr tail instead.
			select {
			case <-c.exited:
				return fmt.Errorf("language server exited during startup: %v; stderr: %s",
					c.exitErr, c.stderr.String())
			case <-time.After(200 * time.Millisecond):
			}
			return fmt.Errorf("initialize failed: %w", res.err)
		}
		raw = res.raw
	case <-c.exited:
		return fmt.Errorf("language server exited during startup: %v; stderr: %s",
			c.exitErr, c.stderr.String())
	case <-ctx.Done():
		return ctx.Err()
	}

	var parsed struct {
		Capabilities ServerCapabilities `json:"capabilities"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("failed to parse initialize result: %w", err)
	}
	c.capsMu.Lock()
	c.caps = parsed.Capabilities
	c.capsMu.Unlock()

	if err := c.notify("initialized", map[string]interface{}{}); err != nil {
		return fmt.Errorf("failed to send initialized notification: %w", err)
	}

	if c.cfg.SettleDelay > 0 {
		select {
		case <-time.After(c.cfg.SettleDelay):
		case <-c.exited:
			return fmt.Errorf("language server exited during settle: %v; stderr: %s",
				c.exitErr, c.stderr.String())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Stop shuts the client down: in-flight requests are rejected immediately,
// a best-effort shutdown/exit handshake runs with a short deadline, and the
// process is killed if it lingers. Stop always reaches StateStopped.
func (c *Client) Stop() error {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()

	switch c.State() {
	case StateStopped:
		return nil
	case StateUnstarted:
		c.state.Store(int32(StateStopped))
		return nil
	}

	wasReady := c.State() == StateReady
	c.state.Store(int32(StateShuttingDown))

	// Reject in-flight callers before the handshake so nobody waits out a
	// long timeout against a dying server.
	c.stopOnce.Do(func() { close(c.stopCh) })

	if wasReady {
		if _, err := c.roundTrip(context.Background(), "shutdown", nil, 2*time.Second, true); err != nil {
			common.LSPLogger.Debug("shutdown request: %v", err)
		}
		if err := c.notify("exit", nil); err != nil {
			common.LSPLogger.Debug("exit notification: %v", err)
		}
	}

	if c.stdin != nil {
		_ = c.stdin.Close()
	}

	if c.cmd != nil && c.cmd.Process != nil {
		select {
		case <-c.exited:
		case <-time.After(5 * time.Second):
			common.LSPLogger.Warn("%s server did not exit, killing", c.language)
			_ = c.cmd.Process.Kill()
			select {
			case <-c.exited:
			case <-time.After(2 * time.Second):
			}
		}
	}

	c.state.Store(int32(StateStopped))
	return nil
}

// onProcessExit handles unexpected termination. During shutdown the exit is
// expected; any other state transitions to Crashed and fails pending callers.
func (c *Client) onProcessExit() {
	s := c.State()
	if s == StateShuttingDown || s == StateStopped {
		return
	}
	c.state.Store(int32(StateCrashed))
	common.LSPLogger.Error("%s server exited unexpectedly: %v; stderr: %s",
		c.language, c.exitErr, c.stderr.String())
	c.failAllPending()
}

func (c *Client) failAllPending() {
	c.pendMu.Lock()
	pending := c.pending
	c.pending = make(map[int64]*pendingRequest)
	c.pendMu.Unlock()

	for _, p := range pending {
		msg := &jsonrpc.Message{
			JSONRPC: jsonrpc.Version,
			Error:   &jsonrpc.ResponseError{Code: jsonrpc.InternalError, Message: "server process exited"},
		}
		select {
		case p.respCh <- msg:
		default:
		}
	}
}

// AttachForTesting wires the client to in-memory pipes and marks it ready,
// so correlation and document behavior can be tested without a real server
// process.
func (c *Client) AttachForTesting(stdin io.WriteCloser, stdout io.Reader) {
	c.stdin = stdin
	c.state.Store(int32(StateReady))
	go c.readLoop(stdout)
}

// SendRequest issues a request with the server's default timeout
func (c *Client) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	return c.SendRequestTimeout(ctx, method, params, c.cfg.Timeout())
}

// SendRequestTimeout issues a request with an explicit timeout. The timeout
// rejects only this caller; a late response for the same id is discarded.
func (c *Client) SendRequestTimeout(ctx context.Context, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	if c.State() != StateReady {
		return nil, ErrNotRunning
	}
	return c.roundTrip(ctx, method, params, timeout, false)
}

// SendNotification sends a fire-and-forget notification
func (c *Client) SendNotification(method string, params interface{}) error {
	if c.State() != StateReady {
		return ErrNotRunning
	}
	return c.notify(method, params)
}

// roundTrip allocates an id, registers a pending entry, writes the request,
// and waits for settle, timeout, or stop. ignoreStop lets the lifecycle
// methods (initialize, shutdown) run while stopCh is in play.
func (c *Client) roundTrip(ctx context.Context, method string, params interface{}, timeout time.Duration, ignoreStop bool) (json.RawMessage, error) {
	id := c.nextID.Add(1)

	msg, err := jsonrpc.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	p := &pendingRequest{method: method, respCh: make(chan *jsonrpc.Message, 1)}
	c.pendMu.Lock()
	c.pending[id] = p
	c.pendMu.Unlock()

	defer func() {
		c.pendMu.Lock()
		delete(c.pending, id)
		c.pendMu.Unlock()
	}()

	if err := c.writeMessage(msg); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	stopCh := c.stopCh
	if ignoreStop {
		stopCh = nil
	}

	select {
	case resp := <-p.respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-timer.C:
		return nil, &TimeoutError{Method: method, Timeout: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-stopCh:
		return nil, ErrStopped
	}
}

func (c *Client) notify(method string, params interface{}) error {
	msg, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return err
	}
	return c.writeMessage(msg)
}

func (c *Client) writeMessage(msg *jsonrpc.Message) error {
	data, err := jsonrpc.Encode(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.stdin == nil {
		return ErrNotRunning
	}
	if _, err := c.stdin.Write(data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// readLoop feeds stdout through the stream decoder and dispatches every
// complete message. Messages are handled one at a time; all state the
// handlers touch is owned by this loop plus the corresponding accessors.
func (c *Client) readLoop(stdout io.Reader) {
	decoder := jsonrpc.NewStreamDecoder()
	buf := make([]byte, 32*1024)

	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			decoder.Feed(buf[:n])
			for {
				msg, ok := decoder.Next()
				if !ok {
					break
				}
				c.dispatch(msg)
			}
		}
		if err != nil {
			if err != io.EOF {
				common.LSPLogger.Debug("%s stdout read: %v", c.language, err)
			}
			return
		}
	}
}

func (c *Client) dispatch(msg *jsonrpc.Message) {
	c.messageStream.Publish(msg)

	switch {
	case msg.IsResponse():
		c.handleResponse(msg)
	case msg.IsRequest():
		c.handleServerRequest(msg)
	case msg.IsNotification():
		c.handleNotification(msg)
	default:
		common.LSPLogger.Warn("malformed message from %s: no id and no method", c.language)
	}
}

func (c *Client) handleResponse(msg *jsonrpc.Message) {
	id, ok := msg.IntID()
	if !ok {
		common.LSPLogger.Warn("response with non-integer id from %s: %s", c.language, msg.ID)
		return
	}

	c.pendMu.Lock()
	p, found := c.pending[id]
	if found {
		delete(c.pending, id)
	}
	c.pendMu.Unlock()

	if !found {
		// Caller already timed out or was rejected; drop silently.
		common.LSPLogger.Debug("late response for id %d dropped", id)
		return
	}

	p.respCh <- msg
}

// handleServerRequest answers the small set of server-to-client requests
func (c *Client) handleServerRequest(msg *jsonrpc.Message) {
	switch msg.Method {
	case "workspace/configuration":
		c.replyConfiguration(msg)
	case "workspace/applyEdit":
		c.replyApplyEdit(msg)
	case "window/workDoneProgress/create", "client/registerCapability", "client/unregisterCapability":
		c.reply(msg, nil, nil)
	default:
		c.reply(msg, nil, &jsonrpc.ResponseError{
			Code:    jsonrpc.MethodNotFound,
			Message: fmt.Sprintf("method %s not supported", msg.Method),
		})
	}
}

// replyConfiguration answers workspace/configuration with the fixed
// per-section values from the server config; unknown sections get null.
func (c *Client) replyConfiguration(msg *jsonrpc.Message) {
	var params struct {
		Items []struct {
			Section string `json:"section"`
		} `json:"items"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		c.reply(msg, nil, &jsonrpc.ResponseError{Code: jsonrpc.InvalidParams, Message: err.Error()})
		return
	}

	results := make([]interface{}, len(params.Items))
	for i, item := range params.Items {
		if v, ok := c.cfg.Sections[item.Section]; ok {
			results[i] = v
		}
	}
	c.reply(msg, results, nil)
}

func (c *Client) replyApplyEdit(msg *jsonrpc.Message) {
	var params struct {
		Edit protocol.WorkspaceEdit `json:"edit"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		c.reply(msg, nil, &jsonrpc.ResponseError{Code: jsonrpc.InvalidParams, Message: err.Error()})
		return
	}

	result := map[string]interface{}{"applied": true}
	if err := ApplyWorkspaceEdit(c.fs, &params.Edit); err != nil {
		result["applied"] = false
		result["failureReason"] = err.Error()
	}
	c.reply(msg, result, nil)
}

func (c *Client) reply(req *jsonrpc.Message, result interface{}, respErr *jsonrpc.ResponseError) {
	resp, err := jsonrpc.NewResponse(req.ID, result, respErr)
	if err != nil {
		common.LSPLogger.Error("failed to build response for %s: %v", req.Method, err)
		return
	}
	if err := c.writeMessage(resp); err != nil {
		common.LSPLogger.Debug("failed to answer %s: %v", req.Method, err)
	}
}

func (c *Client) handleNotification(msg *jsonrpc.Message) {
	switch msg.Method {
	case "textDocument/publishDiagnostics":
		c.handlePublishDiagnostics(msg.Params)
	case "window/logMessage", "window/showMessage":
		common.LSPLogger.Debug("%s message: %s", c.language, msg.Params)
	default:
		common.LSPLogger.Debug("notification %s from %s ignored", msg.Method, c.language)
	}
}

func (c *Client) captureStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		c.stderr.WriteLine(line)
		common.LSPLogger.Debug("%s stderr: %s", c.language, line)
	}
}

// tailBuffer keeps the last max bytes of stderr for crash reports
type tailBuffer struct {
	mu   sync.Mutex
	max  int
	data []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) WriteLine(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, line...)
	b.data = append(b.data, '\n')
	if len(b.data) > b.max {
		b.data = b.data[len(b.data)-b.max:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}
