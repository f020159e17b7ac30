package health

import (
	"context"
	"log"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported alongside "".
const ServiceName = "sweetshop.Catalog"

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker mirrors catalog database reachability into a grpc health server.
type Checker struct {
	srv      *health.Server
	db       Pinger
	interval time.Duration
	timeout  time.Duration
}

func NewChecker(db Pinger, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Checker{srv: health.NewServer(), db: db, interval: interval, timeout: 2 * time.Second}
}

func (c *Checker) Server() *health.Server { return c.srv }

// Check pings the database once and publishes the result.
func (c *Checker) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := c.db.PingContext(ctx); err != nil {
		log.Printf("[health] catalog db ping failed: %v", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.srv.SetServingStatus("", status)
	c.srv.SetServingStatus(ServiceName, status)
	return status
}

// Run re-checks on every interval until ctx is done, then marks the
// service as shutting down.
func (c *Checker) Run(ctx context.Context) {
	c.Check(ctx)
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			c.srv.Shutdown()
			return
		case <-t.C:
			c.Check(ctx)
		}
	}
}

// NewServer returns a grpc server exposing only the health service.
func NewServer(c *Checker) *grpc.Server {
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, c.Server())
	return s
}

// Serve runs s on lis until it is stopped.
func Serve(s *grpc.Server, lis net.Listener) {
	log.Printf("[health] gRPC health listening on %s", lis.Addr())
	if err := s.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		log.Printf("[health] gRPC server error: %v", err)
	}
}
