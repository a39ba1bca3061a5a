// Package protocol defines the message envelope exchanged between the dispatcher
// and its execution contexts.
package protocol

import (
	"bytes"
	"encoding/json"
	"io"
)

// TypeReady marks the startup handshake message a context emits once,
// before it handles any request.
const TypeReady = "ready"

// Request is a single operation addressed to an execution context.
type Request struct {
	// ID is the correlation ID the context must echo verbatim.
	ID string `json:"id"`

	// Operation names an entry in the context's function table.
	Operation string `json:"operation"`

	// Data is the operation input (JSON encoded).
	Data json.RawMessage `json:"data,omitempty"`
}

// Response is the outcome of a Request, or the out-of-band ready signal.
type Response struct {
	// ID is the correlation ID of the originating request (empty for ready).
	ID string `json:"id,omitempty"`

	// Type is set only for out-of-band signals.
	Type string `json:"type,omitempty"`

	// Success reports whether Result or Error is meaningful.
	Success bool `json:"success"`

	// Result is the operation output (JSON encoded).
	Result json.RawMessage `json:"result,omitempty"`

	// Error is the failure message if the operation failed.
	Error string `json:"error,omitempty"`
}

// Ready returns the startup handshake message.
func Ready() Response {
	return Response{Type: TypeReady}
}

// IsReady returns true if the response is the ready signal.
func (r Response) IsReady() bool {
	return r.Type == TypeReady && r.ID == ""
}

// Success creates a successful response carrying result.
func Success(id string, result json.RawMessage) Response {
	return Response{
		ID:      id,
		Success: true,
		Result:  result,
	}
}

// Failure creates a failed response with an error message.
func Failure(id, message string) Response {
	return Response{
		ID:      id,
		Success: false,
		Error:   message,
	}
}

// Marshal encodes v like json.Marshal but leaves <, > and & unescaped, so
// raw JSON embedded in v keeps its bytes.
func Marshal(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// NewEncoder returns a newline-delimited stream encoder with the escaping
// rules of Marshal.
func NewEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}
