package health_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/BrandonDHaskell/shiftledger/internal/health"
	"github.com/BrandonDHaskell/shiftledger/internal/ledger/types"
)

func newServer(t *testing.T) (*health.Server, grpc_health_v1.HealthClient) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := health.NewWithListener(lis, slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { _ = srv.Start() }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return srv, grpc_health_v1.NewHealthClient(conn)
}

func check(t *testing.T, c grpc_health_v1.HealthClient) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := c.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: health.Service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealth_UnknownBeforeFirstReport(t *testing.T) {
	_, c := newServer(t)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_UNKNOWN, check(t, c))
}

func TestHealth_FollowsIntegrityReports(t *testing.T) {
	srv, c := newServer(t)

	srv.Observe(types.IntegrityReport{Overall: types.CheckPass})
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, c))

	srv.Observe(types.IntegrityReport{Overall: types.CheckWarning})
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, c))

	srv.Observe(types.IntegrityReport{Overall: types.CheckFail})
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(t, c))
}

func TestHealth_OverallServerServing(t *testing.T) {
	_, c := newServer(t)
	resp, err := c.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}
