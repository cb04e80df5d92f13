package grpc

import (
	"context"

	"github.com/psdstocks-cloud/creo-cache/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// HealthChecker is satisfied by application.Service.
type HealthChecker interface {
	Health(ctx context.Context) domain.HealthStatus
}

type CacheHealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	checker HealthChecker
}

func NewCacheHealthServer(checker HealthChecker) *CacheHealthServer {
	return &CacheHealthServer{checker: checker}
}

func Register(server grpc.ServiceRegistrar, svc *CacheHealthServer) {
	grpc_health_v1.RegisterHealthServer(server, svc)
}

// Check reports SERVING for healthy and degraded backends. Only the empty
// service name and "cache" are known.
func (s *CacheHealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	switch req.GetService() {
	case "", "cache":
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	if s.checker.Health(ctx).Status == domain.HealthUnhealthy {
		return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
}
