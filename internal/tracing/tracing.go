package tracing

import (
	"context"
	"fmt"

	"github.com/lltxwdk/minimars-server/internal/conf"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// InstrumentationName is the tracer name used by settlement and gateway spans.
const InstrumentationName = "github.com/lltxwdk/minimars-server"

// NewTracerProvider exports spans over OTLP/gRPC when tracing is enabled.
// When disabled it installs nothing and the global no-op provider stays in place.
func NewTracerProvider(app *conf.AppConfig, logger *zap.Logger) (trace.TracerProvider, func(), error) {
	cfg := app.TracingConfig
	if cfg == nil || !cfg.Enabled {
		return otel.GetTracerProvider(), func() {}, nil
	}

	conn, err := grpc.NewClient(cfg.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial otlp endpoint: %w", err)
	}
	exp, err := otlptracegrpc.New(context.Background(), otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to create otlp exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(app.Name),
			semconv.ServiceVersionKey.String(app.Version),
			semconv.DeploymentEnvironmentKey.String(app.Mode),
		),
	)
	if err != nil {
		logger.Warn("tracing: resource create failed", zap.Error(err))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Error("tracing: shutdown failed", zap.Error(err))
		}
		_ = conn.Close()
	}
	return tp, cleanup, nil
}

// Tracer returns the settlement tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
