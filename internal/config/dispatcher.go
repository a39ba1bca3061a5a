package config

import (
	"fmt"
	"time"

	"task-offload/pkg/processor/collection"
	"task-offload/pkg/processor/geometry"
	"task-offload/pkg/processor/text"
)

// Dispatcher holds task dispatcher and daemon configuration.
type Dispatcher struct {
	// OperationTimeout bounds a single offloaded operation.
	OperationTimeout time.Duration `envconfig:"OPERATION_TIMEOUT" default:"30s"`

	// ReadyTimeout bounds the readiness handshake of a new context.
	ReadyTimeout time.Duration `envconfig:"READY_TIMEOUT" default:"10s"`

	// CacheSize is the maximum number of cached responses.
	CacheSize int `envconfig:"CACHE_SIZE" default:"100"`

	// EagerContexts are created at daemon startup.
	EagerContexts []string `envconfig:"EAGER_CONTEXTS" default:"textProcessor,collectionProcessor,geometryProcessor"`

	// ProcessorBinary, when set, runs contexts as subprocesses of this binary.
	ProcessorBinary string `envconfig:"PROCESSOR_BINARY"`

	// HealthAddress is the gRPC health listen address.
	HealthAddress string `envconfig:"HEALTH_ADDRESS" default:":50061"`

	// HealthInterval is how often context readiness is mirrored into health.
	HealthInterval time.Duration `envconfig:"HEALTH_INTERVAL" default:"5s"`

	Log
}

// Log holds logging configuration.
type Log struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	File       string `envconfig:"LOG_FILE"`
	MaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"100"`
	MaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
	MaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"28"`
}

// LoadDispatcher loads dispatcher configuration from environment variables.
func LoadDispatcher() (Dispatcher, error) {
	var cfg Dispatcher
	if err := Load("", &cfg); err != nil {
		return cfg, err
	}
	if cfg.CacheSize < 0 {
		return cfg, fmt.Errorf("config load failed: CACHE_SIZE must not be negative")
	}
	return cfg, nil
}

var processorForKey = map[string]struct {
	name       string
	entryPoint string
}{
	text.ContextKey:       {text.Name, text.EntryPoint},
	collection.ContextKey: {collection.Name, collection.EntryPoint},
	geometry.ContextKey:   {geometry.Name, geometry.EntryPoint},
}

// EntryPointFor returns the entry point used to launch the context key.
// With ProcessorBinary set it is an exec: entry point naming the processor.
func (c Dispatcher) EntryPointFor(key string) (string, error) {
	p, ok := processorForKey[key]
	if !ok {
		return "", fmt.Errorf("no processor for context %q", key)
	}
	if c.ProcessorBinary != "" {
		return "exec:" + c.ProcessorBinary + " " + p.name, nil
	}
	return p.entryPoint, nil
}
