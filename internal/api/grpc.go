package api

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the name the checkout reports under grpc.health.v1.
const HealthServiceName = "upgrade-checkout"

// NewGRPCServer returns a gRPC server exposing the standard health service.
// The checkout starts NOT_SERVING; flip it with the returned health server.
func NewGRPCServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}
