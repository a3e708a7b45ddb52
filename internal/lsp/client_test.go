package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lsp-bridge/internal/config"
	"lsp-bridge/internal/jsonrpc"
)

// fakeServer talks the wire protocol over in-memory pipes so client behavior
// can be exercised without spawning a process.
type fakeServer struct {
	t        *testing.T
	inbound  chan *jsonrpc.Message
	toClient *io.PipeWriter
}

func newTestClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()

	cfg := &config.ServerConfig{
		Command:        "fake",
		RequestTimeout: 2 * time.Second,
		Sections: map[string]interface{}{
			"gopls": map[string]interface{}{"staticcheck": true},
		},
	}
	client := NewClient("go", cfg, t.TempDir(), nil)

	stdinR, stdinW := io.Pipe()
	outR, outW := io.Pipe()
	client.AttachForTesting(stdinW, outR)

	srv := &fakeServer{
		t:        t,
		inbound:  make(chan *jsonrpc.Message, 64),
		toClient: outW,
	}
	go func() {
		decoder := jsonrpc.NewStreamDecoder()
		buf := make([]byte, 4096)
		for {
			n, err := stdinR.Read(buf)
			if n > 0 {
				decoder.Feed(buf[:n])
				for {
					msg, ok := decoder.Next()
					if !ok {
						break
					}
					srv.inbound <- msg
				}
			}
			if err != nil {
				close(srv.inbound)
				return
			}
		}
	}()
	t.Cleanup(func() {
		_ = outW.Close()
		_ = stdinR.Close()
	})
	return client, srv
}

func (s *fakeServer) recv() *jsonrpc.Message {
	s.t.Helper()
	select {
	case msg, ok := <-s.inbound:
		if !ok {
			s.t.Fatal("client closed its write side")
		}
		return msg
	case <-time.After(2 * time.Second):
		s.t.Fatal("timed out waiting for a client message")
	}
	return nil
}

func (s *fakeServer) send(msg *jsonrpc.Message) {
	s.t.Helper()
	data, err := jsonrpc.Encode(msg)
	require.NoError(s.t, err)
	_, err = s.toClient.Write(data)
	require.NoError(s.t, err)
}

func (s *fakeServer) respond(id json.RawMessage, result interface{}) {
	s.t.Helper()
	msg, err := jsonrpc.NewResponse(id, result, nil)
	require.NoError(s.t, err)
	s.send(msg)
}

func TestRequestCorrelationWithReorderedResponses(t *testing.T) {
	client, srv := newTestClient(t)

	type outcome struct {
		raw json.RawMessage
		err error
	}
	first := make(chan outcome, 1)
	second := make(chan outcome, 1)

	go func() {
		raw, err := client.SendRequest(context.Background(), "test/first", nil)
		first <- outcome{raw, err}
	}()
	reqA := srv.recv()

	go func() {
		raw, err := client.SendRequest(context.Background(), "test/second", nil)
		second <- outcome{raw, err}
	}()
	reqB := srv.recv()

	// Answer in reverse arrival order; correlation is by id, not order.
	srv.respond(reqB.ID, map[string]string{"for": "second"})
	srv.respond(reqA.ID, map[string]string{"for": "first"})

	resA := <-first
	require.NoError(t, resA.err)
	assert.JSONEq(t, `{"for":"first"}`, string(resA.raw))

	resB := <-second
	require.NoError(t, resB.err)
	assert.JSONEq(t, `{"for":"second"}`, string(resB.raw))
}

func TestRequestIDsIncrease(t *testing.T) {
	client, srv := newTestClient(t)

	done := make(chan struct{})
	go func() {
		_, _ = client.SendRequest(context.Background(), "test/a", nil)
		_, _ = client.SendRequest(context.Background(), "test/b", nil)
		close(done)
	}()

	reqA := srv.recv()
	idA, ok := reqA.IntID()
	require.True(t, ok)
	srv.respond(reqA.ID, nil)

	reqB := srv.recv()
	idB, ok := reqB.IntID()
	require.True(t, ok)
	srv.respond(reqB.ID, nil)

	assert.Greater(t, idB, idA)
	<-done
}

func TestTimeoutIsPerRequestAndLateResponseIsDropped(t *testing.T) {
	client, srv := newTestClient(t)

	slow := make(chan error, 1)
	go func() {
		_, err := client.SendRequestTimeout(context.Background(), "test/slow", nil, 30*time.Millisecond)
		slow <- err
	}()
	slowReq := srv.recv()

	answered := make(chan error, 1)
	go func() {
		_, err := client.SendRequestTimeout(context.Background(), "test/fast", nil, 5*time.Second)
		answered <- err
	}()
	fastReq := srv.recv()

	// The slow request times out alone.
	err := <-slow
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "test/slow", timeoutErr.Method)

	// Its late response must be discarded without disturbing the other call.
	srv.respond(slowReq.ID, map[string]string{"late": "yes"})
	srv.respond(fastReq.ID, map[string]string{"ok": "yes"})
	require.NoError(t, <-answered)
}

func TestServerErrorResponseSurfaced(t *testing.T) {
	client, srv := newTestClient(t)

	result := make(chan error, 1)
	go func() {
		_, err := client.SendRequest(context.Background(), "test/fails", nil)
		result <- err
	}()
	req := srv.recv()

	msg, err := jsonrpc.NewResponse(req.ID, nil, &jsonrpc.ResponseError{
		Code:    jsonrpc.InvalidParams,
		Message: "bad params",
	})
	require.NoError(t, err)
	srv.send(msg)

	err = <-result
	var respErr *jsonrpc.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, jsonrpc.InvalidParams, respErr.Code)
	assert.Contains(t, respErr.Message, "bad params")
}

func TestRequestRejectedWhenNotReady(t *testing.T) {
	client := NewClient("go", &config.ServerConfig{Command: "fake"}, t.TempDir(), nil)

	_, err := client.SendRequest(context.Background(), "test/x", nil)
	assert.ErrorIs(t, err, ErrNotRunning)

	err = client.SendNotification("test/y", nil)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestStartTwiceReturnsAlreadyStarted(t *testing.T) {
	client, _ := newTestClient(t)
	err := client.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestStopRejectsInFlightRequests(t *testing.T) {
	client, srv := newTestClient(t)

	inFlight := make(chan error, 1)
	go func() {
		_, err := client.SendRequest(context.Background(), "test/pending", nil)
		inFlight <- err
	}()
	srv.recv()

	// Answer the shutdown handshake so Stop does not wait out its deadline.
	go func() {
		for msg := range srv.inbound {
			if msg.IsRequest() && msg.Method == "shutdown" {
				srv.respond(msg.ID, nil)
			}
		}
	}()

	stopped := make(chan error, 1)
	go func() { stopped <- client.Stop() }()

	select {
	case err := <-inFlight:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request was not rejected by Stop")
	}

	require.NoError(t, <-stopped)
	assert.Equal(t, StateStopped, client.State())

	_, err := client.SendRequest(context.Background(), "test/after", nil)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestStopIsIdempotent(t *testing.T) {
	client := NewClient("go", &config.ServerConfig{Command: "fake"}, t.TempDir(), nil)
	require.NoError(t, client.Stop())
	require.NoError(t, client.Stop())
	assert.Equal(t, StateStopped, client.State())
}

func TestStartFailureCapturesStderr(t *testing.T) {
	cfg := &config.ServerConfig{
		Command:        "sh",
		Args:           []string{"-c", "echo boom >&2; exit 3"},
		RequestTimeout: 5 * time.Second,
	}
	client := NewClient("go", cfg, t.TempDir(), nil)

	err := client.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, StateCrashed, client.State())
}

func TestStartUnknownCommandFails(t *testing.T) {
	cfg := &config.ServerConfig{Command: "definitely-not-a-real-binary-xyz"}
	client := NewClient("go", cfg, t.TempDir(), nil)

	err := client.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateCrashed, client.State())
}

func TestWorkspaceConfigurationAnsweredFromConfig(t *testing.T) {
	client, srv := newTestClient(t)
	_ = client

	req, err := jsonrpc.NewRequest(900, "workspace/configuration", map[string]interface{}{
		"items": []map[string]string{
			{"section": "gopls"},
			{"section": "unknown"},
		},
	})
	require.NoError(t, err)
	srv.send(req)

	resp := srv.recv()
	require.True(t, resp.IsResponse())
	assert.JSONEq(t, `[{"staticcheck":true},null]`, string(resp.Result))
}

func TestUnknownServerRequestGetsMethodNotFound(t *testing.T) {
	_, srv := newTestClient(t)

	req, err := jsonrpc.NewRequest(901, "window/showMessageRequest", map[string]interface{}{})
	require.NoError(t, err)
	srv.send(req)

	resp := srv.recv()
	require.True(t, resp.IsResponse())
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.MethodNotFound, resp.Error.Code)
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := &TimeoutError{Method: "textDocument/hover", Timeout: time.Second}
	assert.Contains(t, err.Error(), "textDocument/hover")
	assert.True(t, errors.As(error(err), new(*TimeoutError)))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unstarted", StateUnstarted.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "crashed", StateCrashed.String())
	assert.Equal(t, "unknown", State(99).String())
}
