// Package health exposes execution context readiness over the standard
// gRPC health checking protocol.
package health

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// StatusSource reports each registered context and whether it is ready.
type StatusSource interface {
	ContextStatus() map[string]bool
}

// Server is the daemon's gRPC health server. Every execution context key
// is a health service name; "" covers the daemon as a whole.
type Server struct {
	address    string
	grpcServer *grpc.Server
	healthSrv  *health.Server

	mu    sync.Mutex
	known map[string]bool
}

// NewServer creates a health server that will listen on address.
func NewServer(address string) *Server {
	s := &Server{
		address:    address,
		grpcServer: grpc.NewServer(),
		healthSrv:  health.NewServer(),
		known:      make(map[string]bool),
	}
	grpc_health_v1.RegisterHealthServer(s.grpcServer, s.healthSrv)
	reflection.Register(s.grpcServer)
	s.healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	return s
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	log.Info().Str("address", lis.Addr().String()).Msg("health server starting")

	go func() {
		<-ctx.Done()
		log.Info().Msg("health server shutting down")
		s.healthSrv.Shutdown()
		s.grpcServer.GracefulStop()
	}()

	return s.grpcServer.Serve(lis)
}

// Sync applies one readiness snapshot. Keys that disappeared since the
// previous snapshot become SERVICE_UNKNOWN.
func (s *Server) Sync(status map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, ready := range status {
		s.setLocked(key, ready)
	}
	for key := range s.known {
		if _, ok := status[key]; !ok {
			s.forgetLocked(key)
		}
	}
}

// Forget marks key as SERVICE_UNKNOWN, typically because its context was
// terminated.
func (s *Server) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forgetLocked(key)
}

func (s *Server) setLocked(key string, ready bool) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ready {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	if prev, ok := s.known[key]; !ok || prev != ready {
		log.Debug().Str("context", key).Str("status", st.String()).Msg("health status changed")
	}
	s.known[key] = ready
	s.healthSrv.SetServingStatus(key, st)
}

func (s *Server) forgetLocked(key string) {
	if _, ok := s.known[key]; !ok {
		return
	}
	delete(s.known, key)
	s.healthSrv.SetServingStatus(key, grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN)
	log.Debug().Str("context", key).Msg("health status cleared")
}

// Watch mirrors source into health statuses every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, source StatusSource, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Sync(source.ContextStatus())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sync(source.ContextStatus())
		}
	}
}
