package server

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name probed by orchestrators through grpc_health_v1.
const ServiceName = "chat-live"

// HealthServer reports whether the chat is ready to accept connections.
type HealthServer struct {
	server *health.Server
	log    *slog.Logger
}

func NewHealthServer(log *slog.Logger) *HealthServer {
	s := health.NewServer()
	s.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{server: s, log: log}
}

func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Serving flips the chat service status. The empty service name follows the overall status.
func (h *HealthServer) Serving(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus(ServiceName, status)
	h.server.SetServingStatus("", status)
	h.log.Info("Health status changed", "service", ServiceName, "status", status.String())
}

// Shutdown reports NOT_SERVING for every service and ignores later updates.
func (h *HealthServer) Shutdown() {
	h.server.Shutdown()
}
