// Command processor serves one builtin processor over stdin and stdout as
// newline-delimited JSON. The offload daemon launches it for exec: entry
// points.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"task-offload/internal/config"
	"task-offload/internal/logging"
	"task-offload/pkg/processor"
	"task-offload/pkg/processor/builtin"
)

func main() {
	registry := builtin.NewRegistry()
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <%v>\n", os.Args[0], registry.Names())
		os.Exit(2)
	}

	var logCfg config.Log
	if err := config.Load("", &logCfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// Stdout carries the protocol, so logs go to stderr only.
	closer := logging.Setup(logCfg)
	defer closer.Close()

	p, err := registry.ByName(os.Args[1])
	if err != nil {
		log.Fatal().Err(err).Msg("unknown processor")
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Debug().Str("processor", p.Name()).Int("pid", os.Getpid()).Msg("processor serving")
	if err := processor.ServeStream(ctx, p, os.Stdin, os.Stdout); err != nil {
		log.Fatal().Err(err).Str("processor", p.Name()).Msg("processor stopped")
	}
}
