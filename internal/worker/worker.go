package worker

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// Worker defines the interface for a background process that can be started.
// Start blocks until ctx is done.
type Worker interface {
	Start(ctx context.Context)
}

// tick runs fn every interval until ctx is done. A panic in one run is logged and the loop goes on.
func tick(ctx context.Context, interval time.Duration, logger *zap.Logger, fn func(ctx context.Context)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Worker shutting down")
			return
		case <-ticker.C:
			runSafely(ctx, logger, fn)
		}
	}
}

func runSafely(ctx context.Context, logger *zap.Logger, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered in worker",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()
	fn(ctx)
}

func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
