package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"task-offload/internal/config"
	"task-offload/internal/dispatcher"
	"task-offload/internal/health"
	"task-offload/internal/logging"
	"task-offload/pkg/processor/builtin"
)

func main() {
	// Load config
	cfg, err := config.LoadDispatcher()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	closer := logging.Setup(cfg.Log)
	defer closer.Close()

	log.Info().
		Str("health_address", cfg.HealthAddress).
		Strs("eager_contexts", cfg.EagerContexts).
		Dur("operation_timeout", cfg.OperationTimeout).
		Int("cache_size", cfg.CacheSize).
		Msg("starting offload daemon")

	manager := dispatcher.New(dispatcher.ConfigFrom(cfg), dispatcher.DefaultLauncher(builtin.NewRegistry()))
	healthSrv := health.NewServer(cfg.HealthAddress)
	manager.OnContextRemoved(healthSrv.Forget)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := createContexts(ctx, manager, cfg); err != nil {
		manager.Terminate()
		log.Fatal().Err(err).Msg("failed to create contexts")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthSrv.Run(ctx)
	})
	g.Go(func() error {
		healthSrv.Watch(ctx, manager, cfg.HealthInterval)
		return nil
	})

	err = g.Wait()
	manager.Terminate()
	if err != nil {
		log.Fatal().Err(err).Msg("server error")
	}

	log.Info().Msg("offload daemon stopped")
}

// createContexts starts every eager context concurrently.
func createContexts(ctx context.Context, m *dispatcher.Manager, cfg config.Dispatcher) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, key := range cfg.EagerContexts {
		entryPoint, err := cfg.EntryPointFor(key)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := m.CreateContext(ctx, key, entryPoint); err != nil {
				return err
			}
			log.Info().Str("context", key).Str("entry_point", entryPoint).Msg("context ready")
			return nil
		})
	}
	return g.Wait()
}
