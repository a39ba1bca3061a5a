// Package builtin wires the bundled processors into a registry.
package builtin

import (
	"task-offload/pkg/processor"
	"task-offload/pkg/processor/collection"
	"task-offload/pkg/processor/geometry"
	"task-offload/pkg/processor/text"
)

// NewRegistry returns a registry with the text, collection and geometry
// processors registered under their entry points.
func NewRegistry() *processor.Registry {
	r := processor.NewRegistry()
	r.Register(text.EntryPoint, text.New)
	r.Register(collection.EntryPoint, collection.New)
	r.Register(geometry.EntryPoint, geometry.New)
	return r
}
