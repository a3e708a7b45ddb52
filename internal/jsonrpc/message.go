// Package jsonrpc implements the JSON-RPC 2.0 message model and the
// Content-Length stream framing used by the Language Server Protocol.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version sent with every message
const Version = "2.0"

// JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Message represents a single JSON-RPC 2.0 message. Exactly one of the
// request, response, or notification shapes matches any given message.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError represents a JSON-RPC error object
type ResponseError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("LSP error %d: %s", e.Code, e.Message)
}

// IsRequest reports whether the message is a request (method and id present)
func (m *Message) IsRequest() bool {
	return m.Method != "" && len(m.ID) > 0
}

// IsResponse reports whether the message is a response (id present, no method)
func (m *Message) IsResponse() bool {
	return m.Method == "" && len(m.ID) > 0
}

// IsNotification reports whether the message is a notification (method, no id)
func (m *Message) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

// IntID returns the message id as an int64. Servers echo back the ids we
// send, which are always integers; anything else returns ok=false.
func (m *Message) IntID() (int64, bool) {
	if len(m.ID) == 0 {
		return 0, false
	}
	var id int64
	if err := json.Unmarshal(m.ID, &id); err != nil {
		return 0, false
	}
	return id, true
}

// NewRequest builds a request message with the given integer id
func NewRequest(id int64, method string, params interface{}) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	idRaw, _ := json.Marshal(id)
	return &Message{JSONRPC: Version, ID: idRaw, Method: method, Params: raw}, nil
}

// NewNotification builds a notification message (no id)
func NewNotification(method string, params interface{}) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: Version, Method: method, Params: raw}, nil
}

// NewResponse builds a response to the request carrying the given raw id
func NewResponse(id json.RawMessage, result interface{}, respErr *ResponseError) (*Message, error) {
	msg := &Message{JSONRPC: Version, ID: id, Error: respErr}
	if respErr == nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshal result: %w", err)
		}
		msg.Result = raw
	}
	return msg, nil
}

func marshalParams(params interface{}) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return raw, nil
}
