package grpc

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/lltxwdk/minimars-server/internal/service"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const DefaultRequestTimeout = 5 * time.Second

// NewUnaryInterceptors returns the server's interceptor chain, outermost first.
func NewUnaryInterceptors(parser TokenParser, trustHeaders bool, logger *zap.Logger) []grpc.UnaryServerInterceptor {
	timeoutOverrides := map[string]time.Duration{
		//設定特定路徑的請求允許秒數
	}

	return []grpc.UnaryServerInterceptor{
		NewUnaryPanicInterceptor(logger),
		AuthInterceptor(parser, trustHeaders),
		NewUnaryTimeoutInterceptor(timeoutOverrides),
		UnaryErrorInterceptor,
	}
}

// NewUnaryTimeoutInterceptor sets a deadline on the context. Methods in overrides get their own timeout.
func NewUnaryTimeoutInterceptor(overrides map[string]time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		timeout := DefaultRequestTimeout
		if t, ok := overrides[info.FullMethod]; ok {
			timeout = t
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return handler(ctx, req)
	}
}

// UnaryErrorInterceptor turns domain errors into gRPC statuses with the same classification as HTTP.
func UnaryErrorInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	resp, err := handler(ctx, req)
	if err == nil {
		return resp, nil
	}
	if _, ok := status.FromError(err); ok {
		return resp, err
	}
	body := service.ErrorBodyOf(err)
	return resp, status.Error(service.GRPCCode(err), body.Code+": "+body.Message)
}

// NewUnaryPanicInterceptor recovers from panics in handlers.
func NewUnaryPanicInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	l := logger.Named("GrpcPanic")
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				l.Error("Recovered from panic",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())),
				)
				err = status.Error(codes.Internal, "Internal server error")
			}
		}()
		return handler(ctx, req)
	}
}
