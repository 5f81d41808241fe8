package main

import (
	"github.com/lltxwdk/minimars-server/internal/app"
	grpc_middleware "github.com/lltxwdk/minimars-server/internal/middleware/grpc"
	http_middleware "github.com/lltxwdk/minimars-server/internal/middleware/http"
	"github.com/lltxwdk/minimars-server/internal/provider"
	"github.com/lltxwdk/minimars-server/internal/worker"

	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func provideAuthMiddleware(parser http_middleware.TokenParser, trust provider.TrustHeaders, logger *zap.Logger) http_middleware.AuthMiddleware {
	return http_middleware.NewAuthMiddleware(parser, bool(trust), logger)
}

func provideUnaryInterceptors(parser http_middleware.TokenParser, trust provider.TrustHeaders, logger *zap.Logger) []grpc.UnaryServerInterceptor {
	return grpc_middleware.NewUnaryInterceptors(parser, bool(trust), logger)
}

// provideFrontendWorkers 前端不跑背景任務
func provideFrontendWorkers() []worker.Worker {
	return []worker.Worker{}
}

func provideFrontendRegister(r app.FrontendRegister) app.HttpHandlerRegister {
	return app.HttpHandlerRegister(r)
}

// provideConsoleWorkers 將 OutboxProcessor 包裝成 Worker 切片
func provideConsoleWorkers(p *worker.OutboxProcessor) []worker.Worker {
	return []worker.Worker{p}
}

func provideConsoleRegister(r app.ConsoleRegister) app.HttpHandlerRegister {
	return app.HttpHandlerRegister(r)
}
