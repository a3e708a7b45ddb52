package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"lsp-bridge/internal/common"
)

const headerTerminator = "\r\n\r\n"

// Encode serializes a message to the LSP wire format:
// "Content-Length: <N>\r\n\r\n" followed by exactly N bytes of JSON.
func Encode(msg *Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Content-Length: %d%s", len(body), headerTerminator)
	buf.Write(body)
	return buf.Bytes(), nil
}

// StreamDecoder converts an arbitrarily-chunked byte stream into complete
// JSON-RPC messages. Feed appends raw bytes; Next drains complete messages
// in arrival order. Malformed headers and unparsable bodies are dropped and
// framing resumes; they are never fatal.
type StreamDecoder struct {
	buf           []byte
	contentLength int // -1 when the next body length is unknown
}

// NewStreamDecoder creates an empty decoder
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{contentLength: -1}
}

// Feed appends raw bytes from the wire to the decoder's buffer
func (d *StreamDecoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next returns the next complete message, or ok=false when the buffer
// cannot yield one. Call repeatedly after each Feed, since multiple
// messages may have arrived together.
func (d *StreamDecoder) Next() (*Message, bool) {
	for {
		if d.contentLength < 0 {
			idx := bytes.Index(d.buf, []byte(headerTerminator))
			if idx < 0 {
				// Incomplete header block, wait for more bytes
				return nil, false
			}

			header := string(d.buf[:idx])
			d.buf = d.buf[idx+len(headerTerminator):]

			length, err := parseContentLength(header)
			if err != nil {
				// Drop the malformed header span and keep scanning
				common.LSPLogger.Warn("dropping malformed header block: %v", err)
				continue
			}
			d.contentLength = length
		}

		if len(d.buf) < d.contentLength {
			// Body not fully arrived yet
			return nil, false
		}

		body := d.buf[:d.contentLength]
		d.buf = d.buf[d.contentLength:]
		d.contentLength = -1

		var msg Message
		if err := json.Unmarshal(body, &msg); err != nil {
			common.LSPLogger.Warn("dropping unparsable message body: %v", err)
			continue
		}
		return &msg, true
	}
}

// Buffered returns the number of bytes waiting in the decoder
func (d *StreamDecoder) Buffered() int {
	return len(d.buf)
}

func parseContentLength(header string) (int, error) {
	for _, line := range strings.Split(header, "\r\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToLower(line), "content-length:") {
			continue
		}
		value := strings.TrimSpace(line[len("content-length:"):])
		length, err := strconv.Atoi(value)
		if err != nil || length < 0 {
			return 0, fmt.Errorf("invalid Content-Length %q", value)
		}
		return length, nil
	}
	return 0, fmt.Errorf("no Content-Length header in %q", header)
}
