package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	http_middleware "github.com/lltxwdk/minimars-server/internal/middleware/http"
	"github.com/lltxwdk/minimars-server/internal/worker"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HttpHandlerRegister defines a function that registers custom HTTP handlers.
type HttpHandlerRegister func(mux *http.ServeMux)

// App serves gRPC health checks and the HTTP API on one port and runs the background workers.
type App struct {
	httpServer *http.Server
	gRPCServer *grpc.Server
	health     *health.Server
	workers    []worker.Worker
	port       int
	logger     *zap.Logger
	// stopWorkers cancels the context handed to the workers.
	stopWorkers context.CancelFunc
}

// NewApp wires the mux, middleware and the gRPC server. The returned cleanup stops the
// workers first, then drains gRPC and HTTP.
func NewApp(port int, logger *zap.Logger, register HttpHandlerRegister, unaryInterceptors []grpc.UnaryServerInterceptor, workers []worker.Worker, tp trace.TracerProvider) (*App, func(), error) {
	if register == nil {
		return nil, nil, errors.New("http handler register is nil")
	}
	logger = logger.Named("App")

	// 1. gRPC only carries health and reflection.
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryInterceptors...))
	healthcheck := health.NewServer()
	healthcheck.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	grpc_health_v1.RegisterHealthServer(s, healthcheck)
	reflection.Register(s)

	// 2. HTTP routes, wrapped so that recovery also covers the tracing middleware.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	register(mux)

	var handler http.Handler = mux
	handler = http_middleware.NewTracingMiddleware(tp)(handler)
	handler = http_middleware.NewRecoveryMiddleware(logger)(handler)

	a := &App{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           grpcHandlerFunc(s, handler),
			ReadHeaderTimeout: 10 * time.Second,
		},
		gRPCServer:  s,
		health:      healthcheck,
		workers:     workers,
		port:        port,
		logger:      logger,
		stopWorkers: func() {},
	}

	cleanup := func() {
		a.logger.Info("Stopping server and workers")
		a.stopWorkers()
		a.health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.gRPCServer.GracefulStop()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP server shutdown failed", zap.Error(err))
		}
	}

	return a, cleanup, nil
}

const shutdownTimeout = 10 * time.Second

// Run serves until ctx is done or the listener fails.
func (a *App) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", a.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", a.port, err)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	a.stopWorkers = cancel
	for _, w := range a.workers {
		go w.Start(workerCtx)
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := a.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	a.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	a.logger.Info("Server started", zap.Int("port", a.port), zap.Int("workers", len(a.workers)))

	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
		return nil
	case err := <-serveErr:
		return fmt.Errorf("http server stopped: %w", err)
	}
}

func grpcHandlerFunc(grpcServer *grpc.Server, otherHandler http.Handler) http.Handler {
	return h2c.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ProtoMajor == 2 && strings.Contains(r.Header.Get("Content-Type"), "application/grpc") {
			grpcServer.ServeHTTP(w, r)
		} else {
			otherHandler.ServeHTTP(w, r)
		}
	}), &http2.Server{})
}
