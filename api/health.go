package api

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// SessionServiceName is the health service name of the maze session.
const SessionServiceName = "keymaze.Session"

// Health reports the session over the standard gRPC health protocol. The
// session is SERVING until it is won.
type Health struct {
	server *health.Server
}

// RegisterHealth registers the health and reflection services on gs.
func RegisterHealth(gs *grpc.Server) *Health {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.SetServingStatus(SessionServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, h)
	reflection.Register(gs)
	return &Health{server: h}
}

// SessionOver marks the session NOT_SERVING.
func (h *Health) SessionOver() {
	h.server.SetServingStatus(SessionServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Shutdown marks every service NOT_SERVING ahead of stopping the server.
func (h *Health) Shutdown() {
	h.server.Shutdown()
}
