// Package grpc holds gRPC server and client helpers shared by commands.
package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/louisbranch/shopkeeper/internal/platform/logging"
	"go.uber.org/zap"
	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const healthCallTimeout = time.Second

// WaitForHealth polls the health service until service reports SERVING or
// ctx ends.
func WaitForHealth(ctx context.Context, conn gogrpc.ClientConnInterface, service string, logger *zap.Logger) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger = logging.OrNop(logger)
	client := grpc_health_v1.NewHealthClient(conn)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = time.Second

	_, err := backoff.Retry(ctx, func() (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
		callCtx, cancel := context.WithTimeout(ctx, healthCallTimeout)
		defer cancel()
		response, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		if err != nil {
			logger.Debug("waiting for gRPC health", zap.String("service", service), zap.Error(err))
			return grpc_health_v1.HealthCheckResponse_UNKNOWN, err
		}
		if status := response.GetStatus(); status != grpc_health_v1.HealthCheckResponse_SERVING {
			logger.Debug("waiting for gRPC health", zap.String("service", service), zap.Stringer("status", status))
			return status, fmt.Errorf("health status %s", status)
		}
		return grpc_health_v1.HealthCheckResponse_SERVING, nil
	}, backoff.WithBackOff(bo))
	if err != nil {
		return fmt.Errorf("wait for gRPC health: %w", err)
	}
	logger.Debug("gRPC health check is SERVING", zap.String("service", service))
	return nil
}
