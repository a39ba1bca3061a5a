// Package processor defines execution contexts: stateless function tables
// driven by a message loop.
// This package is public and can be imported to build custom processors.
package processor

import (
	"encoding/json"
	"errors"
	"fmt"

	"task-offload/pkg/protocol"
)

// Operation is a pure function over JSON-encoded input.
type Operation func(data json.RawMessage) (any, error)

// Table maps operation names to their implementation.
type Table map[string]Operation

// Processor defines the contract for all execution contexts.
type Processor interface {
	// Name returns the processor name (e.g., "text", "geometry").
	Name() string

	// Operations returns the function table served by this processor.
	Operations() Table
}

type tableProcessor struct {
	name  string
	table Table
}

// New creates a processor serving table under name.
func New(name string, table Table) Processor {
	return &tableProcessor{name: name, table: table}
}

func (p *tableProcessor) Name() string      { return p.name }
func (p *tableProcessor) Operations() Table { return p.table }

// Bind adapts a typed function into an Operation by decoding data into T.
func Bind[T, R any](fn func(T) (R, error)) Operation {
	return func(data json.RawMessage) (any, error) {
		var in T
		if len(data) > 0 {
			if err := json.Unmarshal(data, &in); err != nil {
				return nil, fmt.Errorf("invalid payload: %w", err)
			}
		}
		return fn(in)
	}
}

// Handle runs a single request against p and always produces a response.
func Handle(p Processor, req protocol.Request) (resp protocol.Response) {
	op, ok := p.Operations()[req.Operation]
	if !ok {
		return protocol.Failure(req.ID, "Unknown operation: "+req.Operation)
	}

	defer func() {
		if r := recover(); r != nil {
			resp = protocol.Failure(req.ID, panicMessage(r))
		}
	}()

	result, err := op(req.Data)
	if err != nil {
		return protocol.Failure(req.ID, err.Error())
	}

	encoded, err := protocol.Marshal(result)
	if err != nil {
		return protocol.Failure(req.ID, fmt.Sprintf("encode result: %v", err))
	}
	return protocol.Success(req.ID, encoded)
}

func panicMessage(r any) string {
	switch v := r.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// ErrUnknownEntryPoint is returned when no processor is registered for an entry point.
var ErrUnknownEntryPoint = errors.New("unknown entry point")
