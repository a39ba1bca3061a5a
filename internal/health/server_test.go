package health

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

type staticSource struct {
	mu     sync.Mutex
	status map[string]bool
}

func (s *staticSource) ContextStatus() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.status))
	for k, v := range s.status {
		out[k] = v
	}
	return out
}

func (s *staticSource) set(status map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func startServer(t *testing.T) (*Server, grpc_health_v1.HealthClient) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(lis.Addr().String())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, lis)
	}()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		<-done
	})
	return srv, grpc_health_v1.NewHealthClient(conn)
}

func check(t *testing.T, client grpc_health_v1.HealthClient, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

// statusOf is safe to call from Eventually conditions.
func statusOf(client grpc_health_v1.HealthClient, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN
	}
	return resp.GetStatus()
}

func TestServer_Sync(t *testing.T) {
	srv, client := startServer(t)

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, client, ""))

	srv.Sync(map[string]bool{"textProcessor": true, "geometryProcessor": false})
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, client, "textProcessor"))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(t, client, "geometryProcessor"))

	srv.Sync(map[string]bool{"geometryProcessor": true})
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN, check(t, client, "textProcessor"))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, client, "geometryProcessor"))

	srv.Forget("geometryProcessor")
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN, check(t, client, "geometryProcessor"))
}

func TestServer_Watch(t *testing.T) {
	srv, client := startServer(t)
	source := &staticSource{status: map[string]bool{"collectionProcessor": false}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Watch(ctx, source, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return statusOf(client, "collectionProcessor") == grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 5*time.Millisecond)

	source.set(map[string]bool{"collectionProcessor": true})
	require.Eventually(t, func() bool {
		return statusOf(client, "collectionProcessor") == grpc_health_v1.HealthCheckResponse_SERVING
	}, 2*time.Second, 5*time.Millisecond)

	source.set(map[string]bool{})
	require.Eventually(t, func() bool {
		return statusOf(client, "collectionProcessor") == grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN
	}, 2*time.Second, 5*time.Millisecond)
}
